package entity

import "github.com/google/uuid"

// CallContext carries per-call user attribution explicitly through the
// enricher and fetcher call chain, per the redesign note in spec §9:
// thread-locals are forbidden because they don't compose with
// task-based schedulers, so every enricher.Provider method (right after
// ctx) and fetcher.Fetcher.Fetch take one of these as an explicit
// argument instead of reading ambient state. The web-body fetcher takes
// none.
type CallContext struct {
	UserID  string
	TraceID string
}

// NewCallContext mints a CallContext for a unit of work attributed to
// userID, with a fresh trace id for correlating logs and token-usage
// records across the call.
func NewCallContext(userID string) CallContext {
	return CallContext{UserID: userID, TraceID: uuid.NewString()}
}
