package reports

import (
	"encoding/csv"
	"io"
	"time"
)

// WriteStatementCSV serialises a supplier statement.
func WriteStatementCSV(w io.Writer, st Statement) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Date", "Kind", "Number", "Debit", "Credit", "Balance"}); err != nil {
		return err
	}
	if err := writer.Write([]string{st.From.Format(time.DateOnly), "OPENING", "", "", "", st.Opening.StringFixed(2)}); err != nil {
		return err
	}
	for _, e := range st.Entries {
		if err := writer.Write([]string{
			e.Date.Format(time.DateOnly),
			e.Kind,
			e.Number,
			e.Debit.StringFixed(2),
			e.Credit.StringFixed(2),
			e.Balance.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteValuationCSV serialises the stock valuation with a closing total row.
func WriteValuationCSV(w io.Writer, v Valuation) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Code", "Name", "Quantity", "Cost", "Value"}); err != nil {
		return err
	}
	for _, row := range v.Rows {
		if err := writer.Write([]string{row.Code, row.Name, row.Quantity.String(), row.Cost.StringFixed(2), row.Value.StringFixed(2)}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "TOTAL", "", "", v.Total.StringFixed(2)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
