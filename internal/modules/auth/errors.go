package auth

import "net/http"

// Kind classifies a flow failure. Each kind maps to one HTTP status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicateUser
	KindInvalidCredentials
	KindUserNotFound
	KindInvalidToken
	KindInternal
)

const (
	MsgDuplicateUser      = "User with this email already exists"
	MsgInvalidCredentials = "Invalid credentials"
	MsgUserNotFound       = "No user found with this email address"
	MsgInvalidResetToken  = "Invalid reset token"
	MsgInternal           = "Internal Server Error"
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindDuplicateUser:
		return "DuplicateUser"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindUserNotFound:
		return "UserNotFound"
	case KindInvalidToken:
		return "InvalidToken"
	default:
		return "InternalError"
	}
}

func (k Kind) Status() int {
	if k == KindInternal || k == 0 {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Error is returned by every flow. Message is safe to show the caller;
// Cause is for operators only.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(cause error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Cause: cause}
}
