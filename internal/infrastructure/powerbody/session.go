package powerbody

import "time"

// Session is an authenticated API session. The zero value is an absent
// session.
type Session struct {
	// Token is the session ID returned by login
	Token string
	// ObtainedAt is when the token was issued
	ObtainedAt time.Time
}

// Fresh reports whether the session can still be used at the given time.
// PowerBody sessions silently expire server-side, so a token past its
// lifetime is treated as absent rather than tried and failed.
func (s Session) Fresh(now time.Time, lifetime time.Duration) bool {
	if s.Token == "" {
		return false
	}
	return now.Sub(s.ObtainedAt) < lifetime
}
