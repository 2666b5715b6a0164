package errors

import (
	"strconv"
)

// Status is the result code of every operation exposed across the native
// boundary. Values are contiguous from StatusOK to LastStatus.
type Status int32

const (
	StatusOK Status = iota
	StatusInvalidArg
	StatusObjectExpected
	StatusStringExpected
	StatusNameExpected
	StatusFunctionExpected
	StatusNumberExpected
	StatusBooleanExpected
	StatusArrayExpected
	StatusGenericFailure
	StatusPendingException
	StatusCancelled
	StatusEscapeCalledTwice
	StatusHandleScopeMismatch
	StatusCallbackScopeMismatch
	StatusQueueFull
	StatusClosing
	StatusBigintExpected
	StatusDateExpected
	StatusArraybufferExpected
	StatusDetachableArraybufferExpected
	StatusWouldDeadlock

	LastStatus = StatusWouldDeadlock
)

// messages is indexed by Status. StatusOK has no message.
var messages = [...]string{
	StatusOK:                            "",
	StatusInvalidArg:                    "Invalid argument",
	StatusObjectExpected:                "An object was expected",
	StatusStringExpected:                "A string was expected",
	StatusNameExpected:                  "A string or symbol was expected",
	StatusFunctionExpected:              "A function was expected",
	StatusNumberExpected:                "A number was expected",
	StatusBooleanExpected:               "A boolean was expected",
	StatusArrayExpected:                 "An array was expected",
	StatusGenericFailure:                "Unknown failure",
	StatusPendingException:              "An exception is pending",
	StatusCancelled:                     "The async work item was cancelled",
	StatusEscapeCalledTwice:             "napi_escape_handle already called on scope",
	StatusHandleScopeMismatch:           "Invalid handle scope usage",
	StatusCallbackScopeMismatch:         "Invalid callback scope usage",
	StatusQueueFull:                     "Thread-safe function queue is full",
	StatusClosing:                       "Thread-safe function handle is closing",
	StatusBigintExpected:                "A bigint was expected",
	StatusDateExpected:                  "A date was expected",
	StatusArraybufferExpected:           "An arraybuffer was expected",
	StatusDetachableArraybufferExpected: "A detachable arraybuffer was expected",
	StatusWouldDeadlock:                 "Main thread would deadlock",
}

// compile-time check that the table covers every status
var _ = [1]struct{}{}[len(messages)-int(LastStatus)-1]

// Message returns the fixed message for s. StatusOK and codes outside
// [StatusOK, LastStatus] have no message.
func Message(s Status) (string, bool) {
	if s <= StatusOK || s > LastStatus {
		return "", false
	}
	return messages[s], true
}

// Valid reports whether s is a defined status.
func (s Status) Valid() bool {
	return s >= StatusOK && s <= LastStatus
}

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	if msg, ok := Message(s); ok {
		return msg
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}
