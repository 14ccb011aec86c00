package session

// State is the session lifecycle state.
type State int

const (
	// StateInitializing means the startup identity check has not resolved yet.
	StateInitializing State = iota
	// StateAuthenticated means the backend confirmed the stored credential.
	StateAuthenticated
	// StateUnauthenticated means there is no credential, or the last check failed.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}
