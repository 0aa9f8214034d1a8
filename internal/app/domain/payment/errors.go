package payment

import "errors"

// Error kinds shared by the ledger services. Operations wrap these with
// descriptive reasons via fmt.Errorf("...: %w", Err...); callers classify
// with errors.Is. Arithmetic overflow is reported as amount.ErrOverflow.
var (
	// ErrValidation marks malformed input: empty payment lists, invalid
	// list ids, zero record counts.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a caller that is not the recorded submitter.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrState marks a transition requested in the wrong list status.
	ErrState = errors.New("invalid list state")

	// ErrInsufficientCredit marks an admission debit exceeding the balance.
	ErrInsufficientCredit = errors.New("insufficient storage credit")

	// ErrFundingMismatch marks an attached or transferred value that does
	// not exactly equal the required total.
	ErrFundingMismatch = errors.New("funding mismatch")

	// ErrNotFound marks a missing payment list.
	ErrNotFound = errors.New("payment list not found")
)
