// Package seed generates synthetic marble and granite trade history so the
// forecast endpoints have something to work with in development.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tradeway/forecast-service/internal/models"
)

var (
	Categories = []string{"Carrara", "Travertine", "Emperador", "Calacatta", "Onyx", "Granite"}
	Grades     = []string{"A", "B", "C"}
	Types      = []string{"raw", "processed"}
	Regions    = []string{"Punjab", "Sindh", "KPK", "Balochistan", "Islamabad"}
	Statuses   = []string{
		models.OrderStatusDelivered,
		models.OrderStatusCancelled,
		models.OrderStatusPlaced,
		models.OrderStatusConfirmed,
	}

	nouns = []string{"slab", "tile", "block", "panel", "sheet", "countertop"}
)

// Options sizes the generated data set.
type Options struct {
	Sellers    int
	Buyers     int
	Products   int
	Orders     int
	MonthsBack int
}

// DefaultOptions matches the volume of the original demo data set.
func DefaultOptions() Options {
	return Options{
		Sellers:    50,
		Buyers:     200,
		Products:   100,
		Orders:     5000,
		MonthsBack: 24,
	}
}

// Generator produces products and orders from a seeded PCG source.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed+1)),
		now: now.UTC(),
	}
}

// intBetween returns a uniform integer in [lo, hi].
func (g *Generator) intBetween(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}

func (g *Generator) ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

// monthsBack returns a day between the 1st and 28th, m months before now,
// never later than today.
func (g *Generator) monthsBack(m int) time.Time {
	t := time.Date(g.now.Year(), g.now.Month()-time.Month(m), g.intBetween(1, 28), 0, 0, 0, 0, time.UTC)
	if t.After(g.now) {
		return g.now.Truncate(24 * time.Hour)
	}
	return t
}

// Products creates n listings owned by sellers.
func (g *Generator) Products(n int, sellers []uuid.UUID) []models.Product {
	products := make([]models.Product, n)
	for i := range products {
		products[i] = models.Product{
			ID:           uuid.New(),
			SellerID:     sellers[g.rng.IntN(len(sellers))],
			Title:        fmt.Sprintf("%s %s %s", g.pick(Categories), g.pick(Types), g.pick(nouns)),
			Type:         g.pick(Types),
			Category:     g.pick(Categories),
			Grade:        g.pick(Grades),
			PricePerUnit: decimal.NewFromInt(int64(g.intBetween(40, 200))),
			CreatedAt:    g.now,
		}
	}
	return products
}

// Orders creates n orders spread over the last monthsBack months. Unit
// prices deviate from the list price by -10 to +20.
func (g *Generator) Orders(n int, products []models.Product, buyers []uuid.UUID, monthsBack int) []models.Order {
	orders := make([]models.Order, n)
	for i := range orders {
		p := products[g.rng.IntN(len(products))]
		createdAt := g.monthsBack(g.intBetween(0, monthsBack))
		orders[i] = models.Order{
			ID:                uuid.New(),
			ProductID:         p.ID,
			BuyerID:           buyers[g.rng.IntN(len(buyers))],
			SellerID:          p.SellerID,
			Quantity:          int32(g.intBetween(5, 100)),
			UnitPrice:         p.PricePerUnit.Add(decimal.NewFromInt(int64(g.intBetween(-10, 20)))),
			Status:            g.pick(Statuses),
			OriginRegion:      g.pick(Regions),
			DestinationRegion: g.pick(Regions),
			CreatedAt:         createdAt,
			UpdatedAt:         createdAt,
		}
	}
	return orders
}

// Dataset is one generated batch.
type Dataset struct {
	Products []models.Product
	Orders   []models.Order
}

// Generate builds a full data set according to opts.
func (g *Generator) Generate(opts Options) Dataset {
	sellers := g.ids(opts.Sellers)
	buyers := g.ids(opts.Buyers)
	products := g.Products(opts.Products, sellers)
	return Dataset{
		Products: products,
		Orders:   g.Orders(opts.Orders, products, buyers, opts.MonthsBack),
	}
}

// CopyFromer bulk-loads rows. *database.TracedDB satisfies it.
type CopyFromer interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var (
	productColumns = []string{"id", "seller_id", "title", "type", "category", "grade", "price_per_unit", "created_at"}
	orderColumns   = []string{"id", "product_id", "buyer_id", "seller_id", "quantity", "unit_price", "status", "origin_region", "destination_region", "created_at", "updated_at"}
)

// Load copies products and then orders into the database.
func Load(ctx context.Context, db CopyFromer, ds Dataset) error {
	n, err := db.CopyFrom(ctx, pgx.Identifier{"products"}, productColumns,
		pgx.CopyFromSlice(len(ds.Products), func(i int) ([]any, error) {
			p := ds.Products[i]
			return []any{p.ID, p.SellerID, p.Title, p.Type, p.Category, p.Grade, numeric(p.PricePerUnit), p.CreatedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("failed to copy products: %w", err)
	}
	if n != int64(len(ds.Products)) {
		return fmt.Errorf("copied %d of %d products", n, len(ds.Products))
	}

	n, err = db.CopyFrom(ctx, pgx.Identifier{"orders"}, orderColumns,
		pgx.CopyFromSlice(len(ds.Orders), func(i int) ([]any, error) {
			o := ds.Orders[i]
			return []any{o.ID, o.ProductID, o.BuyerID, o.SellerID, o.Quantity, numeric(o.UnitPrice), o.Status, o.OriginRegion, o.DestinationRegion, o.CreatedAt, o.UpdatedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("failed to copy orders: %w", err)
	}
	if n != int64(len(ds.Orders)) {
		return fmt.Errorf("copied %d of %d orders", n, len(ds.Orders))
	}
	return nil
}

// numeric converts d without rounding. COPY uses the binary protocol, which
// cannot encode decimal.Decimal's text form into a NUMERIC column.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
