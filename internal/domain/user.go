package domain

import "time"

// VerificationStatus tracks how far a user got through onboarding.
type VerificationStatus string

const (
	StatusUnverified       VerificationStatus = "unverified"
	StatusPhoneVerified    VerificationStatus = "phone_verified"
	StatusAdvancedVerified VerificationStatus = "advanced_verified"
)

type User struct {
	ID                 string             `json:"id" dynamodbav:"user_id"`
	Email              string             `json:"email" dynamodbav:"email"`
	EmailVerified      bool               `json:"email_verified" dynamodbav:"email_verified"`
	Phone              *string            `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	PhoneVerified      bool               `json:"phone_verified" dynamodbav:"phone_verified"`
	PasswordHash       string             `json:"-" dynamodbav:"password_hash"`
	VerificationStatus VerificationStatus `json:"verification_status" dynamodbav:"verification_status"`
	IsExpert           bool               `json:"is_expert" dynamodbav:"is_expert"`
	ReputationScore    int                `json:"reputation_score" dynamodbav:"reputation_score"`
	CreatedAt          time.Time          `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password,max=128"`
}

type SendSMSCodeRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Phone  string `json:"phone" validate:"required,e164"`
}

type VerifyPhoneRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Phone  string `json:"phone" validate:"required,e164"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}
