package domain

import "time"

// RefreshToken is one row of the persistent token ledger: a durable record
// of a refresh token issuance. Only the sha256 digest of the raw signed
// token is ever stored; the record is mutated exactly once, at revocation,
// and deleted only by the periodic expired-token sweep.
type RefreshToken struct {
	ID         string     `json:"id"` // token identifier, matches the token_id claim
	UserID     string     `json:"user_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	DeviceInfo string     `json:"device_info,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
}

// Active reports whether the record is usable at the given instant:
// not revoked and not expired. This is a computed predicate, never a
// stored state.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// TokenPair holds an access and refresh token pair as returned to a client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"-"` // delivered only via HttpOnly cookie
}
