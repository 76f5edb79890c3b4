package rules

import "errors"

// ValidationError kinds.
const (
	KindNameConflict     = "name_conflict"
	KindContentDuplicate = "content_duplicate"
	KindQuotaExceeded    = "quota_exceeded"
	KindMalformedDomain  = "malformed_domain"
	KindUnknownCategory  = "unknown_category"
)

// ValidationError is a user-correctable input error: duplicate preset
// name, quota exceeded, malformed domain token, and so on.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is a ValidationError, returning it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ErrLocked is returned by every mutating entry point while the strict
// mode lock is active. Handlers reject with no side effects; the UI's
// primary prevention is disabled controls, this is the backstop.
var ErrLocked = errors.New("configuration is locked by strict mode")
