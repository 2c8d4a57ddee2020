package service

import "errors"

// Domain errors surfaced by the audit pipeline. Handlers and batch results
// match them with errors.Is; lower layers wrap them with %w.
var (
	// ErrSupplierLookupFailed means neither the store nor the CNPJ registry
	// could produce a usable supplier record.
	ErrSupplierLookupFailed = errors.New("supplier lookup failed")

	// ErrRateRuleNotFound means no retention rate matches the supplier's
	// activity code. The payment cannot be audited with a fabricated default.
	ErrRateRuleNotFound = errors.New("retention rate not found for activity code")

	// ErrInvalidRateRule means the rule's percentages sum above 100% (or the
	// rounded decomposition would yield a negative net value).
	ErrInvalidRateRule = errors.New("invalid retention rate rule")

	// ErrAlreadyAudited means an audit record already exists for the payment.
	ErrAlreadyAudited = errors.New("payment already audited")

	// ErrPersistenceFailed means the audit record and payment status update
	// could not be committed.
	ErrPersistenceFailed = errors.New("failed to persist audit record")
)
