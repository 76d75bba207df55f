package domain

// Simulator recomputes what billing should have produced. Implementations
// must be pure: no I/O, no clock, no randomness. Output depends only on
// arguments, so calls are safe from any number of goroutines.
type Simulator interface {
	// SimulateCycleOrder computes the expected order for one billing cycle
	// given the subscription's state and its billing entries. customerBalance
	// follows the ledger sign convention: negative means standing credit.
	SimulateCycleOrder(sub Subscription, entries []BillingEntry, reason BillingReason, customerBalance int64, tax *TaxRate) ExpectedOrder

	// SimulateSubscriptionState projects the expected subscription snapshot.
	SimulateSubscriptionState(sub Subscription) ExpectedSubscriptionState

	// Invariant predicates over simulated orders. Exposed for tests and for
	// the reconciler's self-check; a conservation failure means the engine
	// itself cannot be trusted for that subscription.
	CheckConservation(order ExpectedOrder) bool
	CheckNonNegativeDue(order ExpectedOrder) bool
	CheckBalanceApplication(order ExpectedOrder) bool
}
