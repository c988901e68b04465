package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces a new unique identifier.
type Generator func() string

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewUUID generates a random (v4) UUID string for uuid-typed SQL columns.
func NewUUID() string {
	return uuid.NewString()
}
