package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a stone listing. Category drives the forecast filter.
type Product struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	SellerID     uuid.UUID       `json:"seller_id" db:"seller_id"`
	Title        string          `json:"title" db:"title"`
	Type         string          `json:"type" db:"type"`
	Category     string          `json:"category" db:"category"`
	Grade        string          `json:"grade" db:"grade"`
	PricePerUnit decimal.Decimal `json:"price_per_unit" db:"price_per_unit"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Order statuses.
const (
	OrderStatusPlaced    = "placed"
	OrderStatusConfirmed = "confirmed"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is a single purchase of a product.
type Order struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	ProductID         uuid.UUID       `json:"product_id" db:"product_id"`
	BuyerID           uuid.UUID       `json:"buyer_id" db:"buyer_id"`
	SellerID          uuid.UUID       `json:"seller_id" db:"seller_id"`
	Quantity          int32           `json:"quantity" db:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price" db:"unit_price"`
	Status            string          `json:"status" db:"status"`
	OriginRegion      string          `json:"origin_region" db:"origin_region"`
	DestinationRegion string          `json:"destination_region" db:"destination_region"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}
