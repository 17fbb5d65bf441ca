package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/app"
	"github.com/odyssey-erp/bizdesk/internal/customers"
	"github.com/odyssey-erp/bizdesk/internal/inventory"
	"github.com/odyssey-erp/bizdesk/internal/payments"
	"github.com/odyssey-erp/bizdesk/internal/platform/cache"
	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/purchasing"
	"github.com/odyssey-erp/bizdesk/internal/receipts"
	"github.com/odyssey-erp/bizdesk/internal/sales"
	"github.com/odyssey-erp/bizdesk/internal/shared"
	"github.com/odyssey-erp/bizdesk/internal/suppliers"
	"github.com/odyssey-erp/bizdesk/internal/users"
)

// services bundles everything the seed phases call. Seeding goes through the
// services so every code and number is allocated the way the server does it.
type services struct {
	users      *users.Service
	suppliers  *suppliers.Service
	customers  *customers.Service
	inventory  *inventory.Service
	purchasing *purchasing.Service
	payments   *payments.Service
	sales      *sales.Service
	receipts   *receipts.Service
}

type catalog struct {
	warehouses []int64
	items      []inventory.Item
	suppliers  []int64
	customers  []int64
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	if err := db.ApplySchema(ctx, pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil && cfg.SequenceBackend == app.BackendRedis {
		log.Fatalf("connect redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	seq, err := app.NewSequencer(cfg, redisClient, nil)
	if err != nil {
		log.Fatalf("init sequencer: %v", err)
	}
	runner := db.NewRunner(pool, nil)
	audit := shared.NewAuditLogger(pool)

	svc := services{
		users:      users.NewService(users.NewRepository(pool, runner, seq), audit, cfg.BcryptCost),
		suppliers:  suppliers.NewService(suppliers.NewRepository(pool, runner, seq), audit),
		customers:  customers.NewService(customers.NewRepository(pool, runner, seq), audit),
		inventory:  inventory.NewService(inventory.NewRepository(pool, runner, seq), audit, inventory.ServiceConfig{}),
		purchasing: purchasing.NewService(purchasing.NewRepository(pool, runner, seq), audit, purchasing.ServiceConfig{}),
		payments:   payments.NewService(payments.NewRepository(pool, runner, seq), audit),
		sales:      sales.NewService(sales.NewRepository(pool, runner, seq), audit, sales.ServiceConfig{}),
		receipts:   receipts.NewService(receipts.NewRepository(pool, runner, seq), audit),
	}

	fmt.Println("→ Seeding users...")
	if err := seedUsers(ctx, svc); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	_, total, err := svc.suppliers.List(ctx, suppliers.ListFilters{Limit: 1})
	if err != nil {
		log.Fatalf("check existing data: %v", err)
	}
	if total > 0 {
		fmt.Println("✓ Master data already present, skipping demo documents")
		return
	}

	fmt.Println("→ Seeding master data...")
	cat, err := seedMasterData(ctx, svc)
	if err != nil {
		log.Fatalf("seed master data: %v", err)
	}

	fmt.Println("→ Seeding purchases and payments...")
	if err := seedPurchasing(ctx, svc, cat); err != nil {
		log.Fatalf("seed purchasing: %v", err)
	}

	fmt.Println("→ Seeding sales and receipts...")
	if err := seedSales(ctx, svc, cat); err != nil {
		log.Fatalf("seed sales: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedUsers(ctx context.Context, svc services) error {
	list := []users.CreateInput{
		{Name: "Administrator", Email: "admin@bizdesk.local", Role: users.RoleAdmin, Password: "admin12345"},
		{Name: "Store Manager", Email: "manager@bizdesk.local", Role: users.RoleManager, Password: "manager12345"},
		{Name: "Front Till", Email: "cashier@bizdesk.local", Role: users.RoleCashier, Password: "cashier12345"},
		{Name: "Back Store", Email: "store@bizdesk.local", Role: users.RoleStorekeeper, Password: "store12345"},
	}
	for _, in := range list {
		u, err := svc.users.Create(ctx, in)
		if errors.Is(err, shared.ErrDuplicate) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", in.Email, err)
		}
		fmt.Printf("  %s %s (%s)\n", u.Code, u.Email, u.Role)
	}
	return nil
}

func seedMasterData(ctx context.Context, svc services) (catalog, error) {
	var cat catalog
	for _, in := range []inventory.WarehouseInput{
		{Name: "Main Store", Location: "Ground floor"},
		{Name: "Back Room", Location: "Rear"},
	} {
		wh, err := svc.inventory.CreateWarehouse(ctx, in)
		if err != nil {
			return cat, err
		}
		cat.warehouses = append(cat.warehouses, wh.ID)
	}
	for _, in := range []inventory.ItemInput{
		{Name: "Mineral Water 600ml", Unit: "btl", Cost: dec("2500"), Price: dec("4000"), ReorderLevel: dec("24")},
		{Name: "Instant Noodles", Unit: "pcs", Cost: dec("2800"), Price: dec("3500"), ReorderLevel: dec("40")},
		{Name: "Cooking Oil 1L", Unit: "btl", Cost: dec("14000"), Price: dec("17500"), ReorderLevel: dec("10")},
		{Name: "Rice 5kg", Unit: "bag", Cost: dec("62000"), Price: dec("71000"), ReorderLevel: dec("5")},
	} {
		item, err := svc.inventory.CreateItem(ctx, in)
		if err != nil {
			return cat, err
		}
		cat.items = append(cat.items, item)
	}
	for _, in := range []suppliers.CreateInput{
		{Name: "Sumber Makmur", Phone: "021-555-0101", OpeningBalance: dec("150000")},
		{Name: "Tirta Abadi", Phone: "021-555-0202"},
	} {
		s, err := svc.suppliers.Create(ctx, in)
		if err != nil {
			return cat, err
		}
		cat.suppliers = append(cat.suppliers, s.ID)
	}
	for _, in := range []customers.CreateInput{
		{Name: "Warung Bu Sri", Phone: "0812-0000-1111", CreditLimit: dec("500000")},
		{Name: "Kantin Sekolah", Phone: "0812-0000-2222", CreditLimit: dec("1000000"), OpeningBalance: dec("75000")},
	} {
		c, err := svc.customers.Create(ctx, in)
		if err != nil {
			return cat, err
		}
		cat.customers = append(cat.customers, c.ID)
	}
	return cat, nil
}

func seedPurchasing(ctx context.Context, svc services, cat catalog) error {
	lines := make([]purchasing.LineInput, 0, len(cat.items))
	for _, item := range cat.items {
		lines = append(lines, purchasing.LineInput{ItemID: item.ID, Qty: dec("50"), UnitCost: item.Cost})
	}
	p, err := svc.purchasing.Create(ctx, purchasing.CreateInput{
		SupplierID:  cat.suppliers[0],
		WarehouseID: cat.warehouses[0],
		Received:    true,
		Paid:        dec("1000000"),
		Lines:       lines,
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s total %s due %s\n", p.Number, p.Total.StringFixed(0), p.Due.StringFixed(0))

	ordered, err := svc.purchasing.Create(ctx, purchasing.CreateInput{
		SupplierID:  cat.suppliers[1],
		WarehouseID: cat.warehouses[1],
		Lines:       []purchasing.LineInput{{ItemID: cat.items[0].ID, Qty: dec("120"), UnitCost: dec("2400")}},
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s ordered\n", ordered.Number)

	pay, err := svc.payments.Create(ctx, payments.CreateInput{
		SupplierID: cat.suppliers[0],
		Amount:     dec("500000"),
		Method:     payments.MethodTransfer,
		Note:       "partial settlement",
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s paid %s\n", pay.Number, pay.Amount.StringFixed(0))
	return nil
}

func seedSales(ctx context.Context, svc services, cat catalog) error {
	customer := cat.customers[0]
	inv, err := svc.sales.Create(ctx, sales.CreateInput{
		Channel:     sales.ChannelInvoice,
		CustomerID:  &customer,
		WarehouseID: cat.warehouses[0],
		Lines: []sales.LineInput{
			{ItemID: cat.items[1].ID, Qty: dec("20"), UnitPrice: cat.items[1].Price},
			{ItemID: cat.items[2].ID, Qty: dec("4"), UnitPrice: cat.items[2].Price, Discount: dec("2000")},
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s due %s\n", inv.Number, inv.Due.StringFixed(0))

	for i := 0; i < 3; i++ {
		item := cat.items[i%len(cat.items)]
		total := item.Price.Mul(dec("2"))
		pos, err := svc.sales.Create(ctx, sales.CreateInput{
			Channel:     sales.ChannelPOS,
			WarehouseID: cat.warehouses[0],
			Paid:        total,
			Lines:       []sales.LineInput{{ItemID: item.ID, Qty: dec("2"), UnitPrice: item.Price}},
		})
		if err != nil {
			return err
		}
		fmt.Printf("  %s cash %s\n", pos.Number, pos.Total.StringFixed(0))
	}

	rcv, err := svc.receipts.Create(ctx, receipts.CreateInput{
		CustomerID: customer,
		Amount:     dec("50000"),
		Method:     receipts.MethodCash,
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s received %s\n", rcv.Number, rcv.Amount.StringFixed(0))
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
