package domain

import "time"

// Flow identifies which verification flow a record belongs to.
type Flow string

const (
	FlowEmail Flow = "email"
	FlowPhone Flow = "phone"
)

// VerificationRecord is one issued secret.
// Secret holds the plaintext token for the email flow and the SHA-256 hex of
// the code for the phone flow. Channel is empty for email and holds the E.164
// number for phone.
type VerificationRecord struct {
	ID         string     `json:"id"`
	SubjectID  string     `json:"user_id"`
	Channel    string     `json:"phone,omitempty"`
	Secret     string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Pending reports whether the record has not been consumed yet.
func (r *VerificationRecord) Pending() bool { return r.VerifiedAt == nil }

// ExpiredAt reports whether the record is past its expiry at now.
// A record is still valid at exactly ExpiresAt.
func (r *VerificationRecord) ExpiredAt(now time.Time) bool { return now.After(r.ExpiresAt) }
