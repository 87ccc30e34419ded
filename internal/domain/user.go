package domain

import "time"

// User is the account document. Email is unique across the users table;
// AccountID is the id issued by the OTP issuer at signup.
type User struct {
	UserID    string    `json:"id" dynamodbav:"user_id"`
	FullName  string    `json:"fullName" dynamodbav:"full_name"`
	Email     string    `json:"email" dynamodbav:"email"`
	Avatar    string    `json:"avatar" dynamodbav:"avatar"`
	AccountID string    `json:"accountId" dynamodbav:"account_id"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

type CreateAccountRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifySecretRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	Password  string `json:"password" validate:"required"`
}
