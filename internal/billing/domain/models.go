// Package domain contains persistence models for orders, subscriptions and
// billing entries. The reconciliation repository reads these; nothing in
// this module writes them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	oracledomain "github.com/polarsource/polar-sub007/internal/oracle/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product is the minimal product projection the oracle needs for labels.
type Product struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

// Price captures one pricing variant attached to a product.
type Price struct {
	ID          snowflake.ID           `gorm:"primaryKey"`
	ProductID   snowflake.ID           `gorm:"not null;index"`
	Kind        oracledomain.PriceKind `gorm:"type:text;not null"`
	Currency    string                 `gorm:"type:text;not null"`
	AmountCents int64                  `gorm:"not null;default:0"`
	UnitAmount  decimal.Decimal        `gorm:"type:numeric"`
	CapCents    *int64                 `gorm:""`
	CreatedAt   time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Price) TableName() string { return "prices" }

// Discount is a stored discount definition.
type Discount struct {
	ID               snowflake.ID                   `gorm:"primaryKey"`
	Kind             oracledomain.DiscountKind      `gorm:"type:text;not null"`
	AmountCents      int64                          `gorm:"not null;default:0"`
	Currency         string                         `gorm:"type:text"`
	BasisPoints      int32                          `gorm:"not null;default:0"`
	Duration         oracledomain.DiscountDuration  `gorm:"type:text;not null"`
	DurationInMonths int32                          `gorm:"not null;default:0"`
	ProductID        *snowflake.ID                  `gorm:"index"`
	CreatedAt        time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Discount) TableName() string { return "discounts" }

// Customer carries the standing balance used during balance application.
// Negative balance is credit owed to the customer.
type Customer struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	BalanceCents int64        `gorm:"not null;default:0"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// Subscription captures a customer's recurring billing agreement.
type Subscription struct {
	ID                 snowflake.ID                    `gorm:"primaryKey"`
	CustomerID         snowflake.ID                    `gorm:"not null;index"`
	ProductID          snowflake.ID                    `gorm:"not null;index"`
	Status             oracledomain.SubscriptionStatus `gorm:"type:text;not null"`
	Currency           string                          `gorm:"type:text;not null"`
	AmountCents        int64                           `gorm:"not null;default:0"`
	CurrentPeriodStart time.Time                       `gorm:"not null"`
	CurrentPeriodEnd   time.Time                       `gorm:"not null"`
	CancelAtPeriodEnd  bool                            `gorm:"not null;default:false"`
	TrialStart         *time.Time                      `gorm:""`
	TrialEnd           *time.Time                      `gorm:""`
	DiscountID         *snowflake.ID                   `gorm:"index"`
	DiscountAppliedAt  *time.Time                      `gorm:""`
	Metadata           datatypes.JSONMap               `gorm:"type:jsonb"`
	CreatedAt          time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Order is one produced invoice. SubscriptionID is nil for one-time
// purchases, which the oracle does not simulate.
type Order struct {
	ID                  snowflake.ID               `gorm:"primaryKey"`
	SubscriptionID      *snowflake.ID              `gorm:"index"`
	CustomerID          snowflake.ID               `gorm:"not null;index"`
	ProductID           snowflake.ID               `gorm:"not null;index"`
	BillingReason       oracledomain.BillingReason `gorm:"type:text;not null"`
	Currency            string                     `gorm:"type:text;not null"`
	SubtotalCents       int64                      `gorm:"not null;default:0"`
	DiscountCents       int64                      `gorm:"not null;default:0"`
	TaxCents            int64                      `gorm:"not null;default:0"`
	TotalCents          int64                      `gorm:"not null;default:0"`
	AppliedBalanceCents int64                      `gorm:"not null;default:0"`
	DueCents            int64                      `gorm:"not null;default:0"`
	PeriodStart         *time.Time                 `gorm:""`
	PeriodEnd           *time.Time                 `gorm:""`
	CreatedAt           time.Time                  `gorm:"not null;index;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// OrderItem is one persisted invoice line.
type OrderItem struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	OrderID     snowflake.ID  `gorm:"not null;index"`
	PriceID     *snowflake.ID `gorm:"index"`
	Label       string        `gorm:"type:text;not null"`
	AmountCents int64         `gorm:"not null;default:0"`
	TaxCents    int64         `gorm:"not null;default:0"`
	Proration   bool          `gorm:"not null;default:false"`
	PeriodStart *time.Time    `gorm:""`
	PeriodEnd   *time.Time    `gorm:""`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderItem) TableName() string { return "order_items" }

// BillingEntry is an atomic unbilled usage/charge/credit record. A non-nil
// OrderItemID marks it as consumed into that order item.
type BillingEntry struct {
	ID             snowflake.ID                `gorm:"primaryKey"`
	SubscriptionID snowflake.ID                `gorm:"not null;index"`
	CustomerID     snowflake.ID                `gorm:"not null;index"`
	Type           oracledomain.EntryType      `gorm:"type:text;not null"`
	Direction      oracledomain.EntryDirection `gorm:"type:text;not null"`
	AmountCents    int64                       `gorm:"not null;default:0"`
	Currency       string                      `gorm:"type:text;not null"`
	PriceID        snowflake.ID                `gorm:"not null;index"`
	PeriodStart    time.Time                   `gorm:"not null"`
	PeriodEnd      time.Time                   `gorm:"not null"`
	OrderItemID    *snowflake.ID               `gorm:"index"`
	CreatedAt      time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingEntry) TableName() string { return "billing_entries" }
