package domain

// SessionState tracks where the current session is in its lifecycle.
type SessionState string

const (
	SessionUnauthenticated SessionState = "UNAUTHENTICATED"
	SessionAuthenticating  SessionState = "AUTHENTICATING"
	SessionAuthenticated   SessionState = "AUTHENTICATED"
	SessionExpiringSoon    SessionState = "EXPIRING_SOON"
	SessionExpired         SessionState = "EXPIRED"
)

// Active reports whether the state carries a usable credential.
func (s SessionState) Active() bool {
	return s == SessionAuthenticated || s == SessionExpiringSoon
}

func (s SessionState) String() string {
	return string(s)
}
