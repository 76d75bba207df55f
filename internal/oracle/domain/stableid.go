package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Stable IDs are deterministic join keys derived purely from the inputs that
// caused an artifact to exist. They let the reconciler distinguish "missing
// line item" from "amount differs" instead of collapsing everything into a
// single totals signal.

// LineItemStableID derives the stable key for a line item. The segment is
// appended only when non-empty (proration entries carry their direction so
// a charge/credit pair in the same period stays distinguishable).
func LineItemStableID(subscriptionID snowflake.ID, periodStart time.Time, priceID *snowflake.ID, entryType EntryType, segment string) string {
	price := "none"
	if priceID != nil {
		price = priceID.String()
	}
	id := fmt.Sprintf("li:%s:%s:%s:%s",
		subscriptionID.String(),
		periodStart.UTC().Format(time.RFC3339),
		price,
		entryType,
	)
	if segment != "" {
		id += ":" + segment
	}
	return id
}

// OrderStableID derives the stable key for an order.
func OrderStableID(subscriptionID snowflake.ID, periodStart time.Time, reason BillingReason) string {
	return fmt.Sprintf("o:%s:%s:%s",
		subscriptionID.String(),
		periodStart.UTC().Format(time.RFC3339),
		reason,
	)
}
