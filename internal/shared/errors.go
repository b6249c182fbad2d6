package shared

import "errors"

// Error kinds shared by every domain package. Domain errors wrap one of these
// so transports can classify them with errors.Is.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state conflict such as a duplicate row.
	ErrConflict = errors.New("conflict")
	// ErrTransaction indicates a storage commit failure.
	ErrTransaction = errors.New("transaction failed")
)

// UserSafeMessage returns a message that can be shown to API callers.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
