package events

import "github.com/usedplus/core/internal/domain"

// Response is the universal TransactionResponseEvent (spec.md §4.7/§6):
// sent to the requesting client on every request, success or failure.
type Response struct {
	FarmID     domain.FarmId
	Success    bool
	MessageKey string
	Arg1, Arg2 string
}

// Ok builds a success response.
func Ok(farmID domain.FarmId, messageKey string, args ...string) Response {
	r := Response{FarmID: farmID, Success: true, MessageKey: messageKey}
	if len(args) > 0 {
		r.Arg1 = args[0]
	}
	if len(args) > 1 {
		r.Arg2 = args[1]
	}
	return r
}

// Fail builds a failure response from an *Error.
func Fail(farmID domain.FarmId, err *Error) Response {
	return Response{FarmID: farmID, Success: false, MessageKey: err.MessageKey, Arg1: err.Arg1, Arg2: err.Arg2}
}

// Notification is a server-to-all-clients broadcast (spec.md §4.7's
// "UsedItemFound", optionally farm-scoped).
type Notification struct {
	Kind      string
	FarmID    *domain.FarmId // nil means broadcast to every farm
	MessageKey string
	Arg1, Arg2 string
}
