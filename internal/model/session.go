package model

import "time"

// Session models a row in the `sessions` table.  The ID is the refresh
// token value itself, so a session is live exactly as long as its row
// exists.  A row is single-use: redeeming it deletes it.
//
// Fields:
//
//	ID        – opaque random refresh token value (primary key).
//	UserID    – owner of the session.
//	Role      – snapshot of the user's role when the session was issued.
//	ExpiresAt – after this instant the row can no longer be redeemed.
//	CreatedAt – timestamp of creation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the session can still be redeemed at now.
func (s Session) Live(now time.Time) bool { return s.ExpiresAt.After(now) }
