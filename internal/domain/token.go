package domain

// EmailToken is an in-flight passcode exchange.
// PK: user_id (the OTP correlation id). ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type EmailToken struct {
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	Email     string `json:"email" dynamodbav:"email"`
	CodeHash  string `json:"-" dynamodbav:"code_hash"`
	Attempts  int    `json:"attempts" dynamodbav:"attempts"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
