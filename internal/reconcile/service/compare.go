package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	oracledomain "github.com/polarsource/polar-sub007/internal/oracle/domain"
	"github.com/polarsource/polar-sub007/internal/reconcile/domain"
)

func absCents(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// classifyAmountMismatch is the single magnitude-to-severity policy for
// subtotal, total and line-item amount differences. Boundaries are
// inclusive-low: 1¢ is rounding noise, 100¢ is still a warning.
func classifyAmountMismatch(difference int64) (domain.MismatchSeverity, domain.MismatchClassification) {
	abs := absCents(difference)
	switch {
	case abs <= domain.RoundingToleranceCents:
		return domain.SeverityInfo, domain.ClassificationRoundingDifference
	case abs <= domain.SignificantAmountThresholdCents:
		return domain.SeverityWarning, domain.ClassificationAmountMismatch
	default:
		return domain.SeverityError, domain.ClassificationAmountMismatch
	}
}

func (s *Service) compareOrderTotals(result *domain.ReconciliationResult, expected oracledomain.ExpectedOrder, actual domain.ActualOrder, now time.Time) {
	fields := []struct {
		kind     string
		expected int64
		actual   int64
		// fixed pins the classification for discount/tax; magnitude never
		// escalates those beyond error.
		fixed domain.MismatchClassification
	}{
		{kind: "subtotal", expected: expected.SubtotalCents, actual: actual.SubtotalCents},
		{kind: "discount", expected: expected.DiscountCents, actual: actual.DiscountCents, fixed: domain.ClassificationDiscountMismatch},
		{kind: "tax", expected: expected.TaxCents, actual: actual.TaxCents, fixed: domain.ClassificationTaxMismatch},
		{kind: "total", expected: expected.TotalCents, actual: actual.TotalCents},
	}

	orderID := actual.OrderID
	subID := expected.SubscriptionID
	periodStart := expected.PeriodStart
	periodEnd := expected.PeriodEnd

	for _, field := range fields {
		if field.expected == field.actual {
			continue
		}
		difference := field.actual - field.expected

		var severity domain.MismatchSeverity
		classification := field.fixed
		if classification != "" {
			severity = domain.SeverityError
			if absCents(difference) <= domain.RoundingToleranceCents {
				severity = domain.SeverityWarning
			}
		} else {
			severity, classification = classifyAmountMismatch(difference)
		}

		result.AddMismatch(domain.OracleMismatch{
			ID:             domain.MismatchID(result.RunID, field.kind+"_mismatch", expected.StableID),
			Classification: classification,
			Severity:       severity,
			Message:        fmt.Sprintf("order %s %s differs: expected %d, billed %d", orderID, field.kind, field.expected, field.actual),
			SubscriptionID: &subID,
			OrderID:        &orderID,
			Expected:       field.expected,
			Actual:         field.actual,
			Difference:     difference,
			DetectedAt:     now,
			PeriodStart:    &periodStart,
			PeriodEnd:      &periodEnd,
		})
	}
}

// compareLineItems groups both sides by price ID (nil is a valid group) and
// pairs items positionally within each group. Actual items carry no entry
// type, so exact stable-ID matching is not possible; index pairing is the
// best available heuristic and misfires when item order differs between the
// two sides for the same price.
func (s *Service) compareLineItems(result *domain.ReconciliationResult, expected oracledomain.ExpectedOrder, actual domain.ActualOrder, now time.Time) {
	result.LineItemsChecked += len(expected.LineItems) + len(actual.LineItems)

	expGroups := make(map[string][]oracledomain.ExpectedLineItem)
	actGroups := make(map[string][]domain.ActualLineItem)
	for _, item := range expected.LineItems {
		key := priceKey(item.PriceID)
		expGroups[key] = append(expGroups[key], item)
	}
	for _, item := range actual.LineItems {
		key := priceKey(item.PriceID)
		actGroups[key] = append(actGroups[key], item)
	}

	keys := make([]string, 0, len(expGroups)+len(actGroups))
	seen := make(map[string]struct{}, len(expGroups)+len(actGroups))
	for key := range expGroups {
		keys = append(keys, key)
		seen[key] = struct{}{}
	}
	for key := range actGroups {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	orderID := actual.OrderID
	subID := expected.SubscriptionID

	for _, key := range keys {
		exp := expGroups[key]
		act := actGroups[key]

		paired := len(exp)
		if len(act) < paired {
			paired = len(act)
		}

		for i := 0; i < paired; i++ {
			s.compareLineItemPair(result, exp[i], act[i], subID, orderID, now)
		}

		// Unbilled expected work is urgent; an unexpected billed item is
		// noteworthy but less so.
		for _, item := range exp[paired:] {
			itemStart := item.PeriodStart
			itemEnd := item.PeriodEnd
			result.AddMismatch(domain.OracleMismatch{
				ID:               domain.MismatchID(result.RunID, "missing_line_item", item.StableID),
				Classification:   domain.ClassificationMissingLineItem,
				Severity:         domain.SeverityError,
				Message:          fmt.Sprintf("expected line item %q (%d) was not billed", item.Label, item.AmountCents),
				SubscriptionID:   &subID,
				OrderID:          &orderID,
				LineItemStableID: item.StableID,
				Expected:         item.AmountCents,
				DetectedAt:       now,
				PeriodStart:      &itemStart,
				PeriodEnd:        &itemEnd,
			})
		}
		for _, item := range act[paired:] {
			result.AddMismatch(domain.OracleMismatch{
				ID:             domain.MismatchID(result.RunID, "extra_line_item", item.OrderItemID.String()),
				Classification: domain.ClassificationExtraLineItem,
				Severity:       domain.SeverityWarning,
				Message:        fmt.Sprintf("billed line item %q (%d) has no simulated counterpart", item.Label, item.AmountCents),
				SubscriptionID: &subID,
				OrderID:        &orderID,
				Actual:         item.AmountCents,
				DetectedAt:     now,
				PeriodStart:    item.PeriodStart,
				PeriodEnd:      item.PeriodEnd,
			})
		}
	}
}

func (s *Service) compareLineItemPair(result *domain.ReconciliationResult, exp oracledomain.ExpectedLineItem, act domain.ActualLineItem, subID, orderID snowflake.ID, now time.Time) {
	if exp.AmountCents != act.AmountCents {
		difference := act.AmountCents - exp.AmountCents
		severity, classification := classifyAmountMismatch(difference)
		itemStart := exp.PeriodStart
		itemEnd := exp.PeriodEnd
		result.AddMismatch(domain.OracleMismatch{
			ID:               domain.MismatchID(result.RunID, "line_item_amount", exp.StableID),
			Classification:   classification,
			Severity:         severity,
			Message:          fmt.Sprintf("line item %q amount differs: expected %d, billed %d", exp.Label, exp.AmountCents, act.AmountCents),
			SubscriptionID:   &subID,
			OrderID:          &orderID,
			LineItemStableID: exp.StableID,
			Expected:         exp.AmountCents,
			Actual:           act.AmountCents,
			Difference:       difference,
			DetectedAt:       now,
			PeriodStart:      &itemStart,
			PeriodEnd:        &itemEnd,
		})
	}

	if exp.Proration != act.Proration {
		result.AddMismatch(domain.OracleMismatch{
			ID:               domain.MismatchID(result.RunID, "line_item_proration", exp.StableID),
			Classification:   domain.ClassificationUnknown,
			Severity:         domain.SeverityWarning,
			Message:          fmt.Sprintf("line item %q proration flag differs: expected %t, billed %t", exp.Label, exp.Proration, act.Proration),
			SubscriptionID:   &subID,
			OrderID:          &orderID,
			LineItemStableID: exp.StableID,
			Expected:         exp.Proration,
			Actual:           act.Proration,
			DetectedAt:       now,
		})
	}
}

func priceKey(priceID *snowflake.ID) string {
	if priceID == nil {
		return "none"
	}
	return priceID.String()
}
