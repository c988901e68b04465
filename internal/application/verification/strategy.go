package verification

import (
	"time"

	"github.com/go-api-verify/internal/domain"
	"github.com/go-api-verify/internal/pkg/secret"
)

// Lookup selects how Consume finds its candidate record.
type Lookup int

const (
	// LookupBySecret finds the record whose stored secret equals the submitted one.
	LookupBySecret Lookup = iota
	// LookupLatestByChannel takes the newest record for the channel and compares sealed secrets.
	LookupLatestByChannel
)

const (
	EmailTokenTTL = 24 * time.Hour
	PhoneCodeTTL  = 10 * time.Minute
)

// Strategy parameterizes a Manager with one flow's secret shape and TTL.
type Strategy struct {
	Flow     domain.Flow
	TTL      time.Duration
	Generate func() (string, error)
	// Seal maps a plaintext secret to its stored form.
	Seal   func(string) string
	Lookup Lookup
}

// EmailToken issues 64-char hex tokens stored in plaintext, valid for 24h.
func EmailToken() Strategy {
	return Strategy{
		Flow:     domain.FlowEmail,
		TTL:      EmailTokenTTL,
		Generate: secret.NewToken,
		Seal:     func(s string) string { return s },
		Lookup:   LookupBySecret,
	}
}

// PhoneCode issues 6-digit codes stored as SHA-256 hex, valid for 10 minutes.
func PhoneCode() Strategy {
	return Strategy{
		Flow:     domain.FlowPhone,
		TTL:      PhoneCodeTTL,
		Generate: secret.NewCode,
		Seal:     secret.Hash,
		Lookup:   LookupLatestByChannel,
	}
}
