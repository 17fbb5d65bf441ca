package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last allocated value of every counter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		admin, err := adminFor(e.seq.Store(e.pool))
		if err != nil {
			return err
		}
		counters, err := admin.Counters(cmd.Context())
		if err != nil {
			return err
		}
		return renderCounters(cmd.OutOrStdout(), format, counters)
	},
}

var reseedCmd = &cobra.Command{
	Use:   "reseed <scope>",
	Short: "Set a counter to the highest identifier stored in its table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := sequence.Lookup(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		var value int64
		err = e.runner.WithTx(cmd.Context(), "seqctl.reseed", func(tx pgx.Tx) error {
			v, rerr := reseed(cmd.Context(), e.seq.Store(tx), scope)
			value = v
			return rerr
		})
		if err != nil {
			return err
		}
		e.logger.Info("counter reseeded", slog.String("scope", scope.Name), slog.Int64("value", value))
		fmt.Fprintf(cmd.OutOrStdout(), "%s reseeded to %d, next %s\n", scope.Name, value, nextDisplay(scope, value))
		return nil
	},
}

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List known sequence scopes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderScopes(cmd.OutOrStdout(), sequence.All())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		if err := db.ApplySchema(cmd.Context(), e.pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare stored balances and stock with their documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		drifts, err := ledger.Reconcile(cmd.Context(), e.pool)
		if err != nil {
			return err
		}
		if err := renderDrifts(cmd.OutOrStdout(), format, drifts); err != nil {
			return err
		}
		if len(drifts) > 0 {
			return fmt.Errorf("%d drifting rows", len(drifts))
		}
		return nil
	},
}

func adminFor(store sequence.Store) (sequence.Admin, error) {
	admin, ok := store.(sequence.Admin)
	if !ok {
		return nil, errors.New("sequence store does not support administration")
	}
	return admin, nil
}

func reseed(ctx context.Context, store sequence.Store, scope sequence.Scope) (int64, error) {
	admin, err := adminFor(store)
	if err != nil {
		return 0, err
	}
	return sequence.Reseed(ctx, store, admin, scope)
}

func nextDisplay(scope sequence.Scope, value int64) string {
	next, err := scope.Format.Render(value + 1)
	if err != nil {
		return "(" + err.Error() + ")"
	}
	return next
}

func renderCounters(w io.Writer, format string, counters []sequence.CounterState) error {
	sort.Slice(counters, func(i, j int) bool { return counters[i].Scope < counters[j].Scope })
	switch format {
	case "yaml":
		return yaml.NewEncoder(w).Encode(counters)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCOPE\tLAST\tNEXT")
		for _, c := range counters {
			next := "-"
			if scope, err := sequence.Lookup(c.Scope); err == nil {
				next = nextDisplay(scope, c.LastValue)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Scope, c.LastValue, next)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderScopes(w io.Writer, scopes []sequence.Scope) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tFORMAT\tTABLE")
	for _, s := range scopes {
		sample, _ := s.Format.Render(1)
		fmt.Fprintf(tw, "%s\t%s\t%s.%s\n", s.Name, sample, s.Table, s.Column)
	}
	return tw.Flush()
}

func renderDrifts(w io.Writer, format string, drifts []ledger.Drift) error {
	if format == "yaml" {
		type row struct {
			Kind     string `yaml:"kind"`
			Code     string `yaml:"code"`
			Stored   string `yaml:"stored"`
			Expected string `yaml:"expected"`
		}
		rows := make([]row, 0, len(drifts))
		for _, d := range drifts {
			rows = append(rows, row{Kind: d.Kind, Code: d.Code, Stored: d.Stored.String(), Expected: d.Expected.String()})
		}
		return yaml.NewEncoder(w).Encode(rows)
	}
	if len(drifts) == 0 {
		_, err := fmt.Fprintln(w, "no drift")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCODE\tSTORED\tEXPECTED\tDIFF")
	for _, d := range drifts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Kind, d.Code, d.Stored, d.Expected, d.Difference())
	}
	return tw.Flush()
}
