package locks

import "fmt"

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error reports a protocol violation on a lock. Protocol violations indicate
// that client and coordinator disagree about the lock state; they are never
// retried.
type Error struct {
	Code   RetCode // The return code
	LockID LockID  // The lock the violation happened on (may be empty)
	Msg    string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.LockID == "" {
		return fmt.Sprintf("LockError (code %s): %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("LockError (code %s) on %s: %s", e.Code, e.LockID, e.Msg)
}

// Is matches any *Error with the same return code, so that the sentinel
// values below can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, lockID LockID, format string, args ...any) *Error {
	return &Error{
		Code:   code,
		LockID: lockID,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// Sentinels for errors.Is
var (
	ErrUpgrade             = &Error{Code: RetCUpgrade}
	ErrAlreadyHeld         = &Error{Code: RetCAlreadyHeld}
	ErrNotHeld             = &Error{Code: RetCNotHeld}
	ErrAlreadyWaiting      = &Error{Code: RetCAlreadyWaiting}
	ErrIllegalMonitorState = &Error{Code: RetCIllegalMonitorState}
	ErrInvalidState        = &Error{Code: RetCInvalidState}
	ErrNoGreedyHolder      = &Error{Code: RetCNoGreedyHolder}
	ErrDuplicateContext    = &Error{Code: RetCDuplicateContext}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies a lock protocol violation
type RetCode int

const (
	RetCUpgrade             RetCode = iota + 1 // READ holder asked for WRITE
	RetCAlreadyHeld                            // requested level is already held by the same thread
	RetCNotHeld                                // unlock without a hold
	RetCAlreadyWaiting                         // the thread is already waiting on the lock
	RetCIllegalMonitorState                    // wait/notify without a WRITE hold
	RetCInvalidState                           // a state that is not allowed for the operation
	RetCNoGreedyHolder                         // recall commit from a client without a greedy lease
	RetCDuplicateContext                       // reestablish of a (client, thread) pair that is already known
)

func (c RetCode) String() string {
	switch c {
	case RetCUpgrade:
		return "Upgrade"
	case RetCAlreadyHeld:
		return "AlreadyHeld"
	case RetCNotHeld:
		return "NotHeld"
	case RetCAlreadyWaiting:
		return "AlreadyWaiting"
	case RetCIllegalMonitorState:
		return "IllegalMonitorState"
	case RetCInvalidState:
		return "InvalidState"
	case RetCNoGreedyHolder:
		return "NoGreedyHolder"
	case RetCDuplicateContext:
		return "DuplicateContext"
	default:
		return "Unknown"
	}
}
