package sales

import "errors"

// ValidationError reports a malformed request; nothing was touched when
// it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(msg string) error { return &ValidationError{Msg: msg} }

// ErrMedicationNotFound is wrapped with the offending id when a sale
// references a medication that does not exist.
var ErrMedicationNotFound = errors.New("medication not found")

// ErrConflict means the sale lost a race for the stock it needed (lock
// wait timed out or a lot moved underneath the allocation). The whole
// sale was rolled back and may be retried as-is.
var ErrConflict = errors.New("concurrent stock contention, retry the sale")
