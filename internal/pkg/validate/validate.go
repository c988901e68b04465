package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-api-verify/internal/domain"
	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 12

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

func init() {
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
}

// Error lists every failed field. It unwraps to domain.ErrBadRequest.
type Error struct {
	Fields []string
}

func (e *Error) Error() string { return strings.Join(e.Fields, "; ") }

func (e *Error) Unwrap() error { return domain.ErrBadRequest }

// Struct validates the given struct using its validate tags.
// Returns a *Error listing field failures, or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return &Error{Fields: msgs}
	}
	return nil
}

// StrongPassword requires MinPasswordLength characters with at least one
// uppercase letter, lowercase letter, digit and symbol.
func StrongPassword(p string) bool {
	if len([]rune(p)) < MinPasswordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
