package domain

import "time"

// Session is a server-side session created by a successful passcode exchange.
// Secret is the signed credential handed to the browser; it is never stored.
type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	AccountID string    `json:"accountId" dynamodbav:"account_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	ExpiresAt time.Time `json:"expire" dynamodbav:"expires_at"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
	Secret    string    `json:"-" dynamodbav:"-"`
	User      *User     `json:"user,omitempty" dynamodbav:"-"`
}

// Active reports whether the session is enabled and unexpired at now.
func (s *Session) Active(now time.Time) bool {
	return s.Enable && now.Before(s.ExpiresAt)
}
