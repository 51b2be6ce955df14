package services

import "errors"

// Machine-readable error causes carried in the response envelope and in
// message_send_error events so clients can branch without parsing text.
const (
	CauseUnauthenticated   = "unauthenticated"
	CauseValidation        = "validation"
	CauseBlocked           = "blocked"
	CauseBlockedByYou      = "blocked_by_you"
	CauseBanned            = "banned"
	CauseForbidden         = "forbidden"
	CauseNotFound          = "not_found"
	CauseEditWindowExpired = "edit_window_expired"
	CauseConflict          = "conflict"
	CauseInternal          = "internal"
)

// ErrorCause maps a service error to its envelope cause.
func ErrorCause(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CauseValidation
	case errors.Is(err, ErrUserBlocked):
		return CauseBlockedByYou
	case errors.Is(err, ErrBlockedByUser):
		return CauseBlocked
	case errors.Is(err, ErrBanned):
		return CauseBanned
	case errors.Is(err, ErrForbidden):
		return CauseForbidden
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMessageNotFound):
		return CauseNotFound
	case errors.Is(err, ErrEditWindowExpired):
		return CauseEditWindowExpired
	case errors.Is(err, ErrAlreadyBlocked), errors.Is(err, ErrBlockNotFound):
		return CauseConflict
	default:
		return CauseInternal
	}
}
