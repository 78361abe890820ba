package user

import (
	"strings"
	"unicode/utf8"
)

const (
	PasswordMinLength = 8
	// PasswordMaxBytes is the longest input bcrypt accepts.
	PasswordMaxBytes = 72
	passwordSpecials = `!@#$%^&*(),.?":{}|<>`
)

// password strength reasons
const (
	ReasonTooShort         = "too_short"
	ReasonMissingUppercase = "missing_uppercase"
	ReasonMissingLowercase = "missing_lowercase"
	ReasonMissingDigit     = "missing_digit"
	ReasonMissingSpecial   = "missing_special"

	// ReasonMaxBytes is a malformed_field reason, not a strength reason.
	ReasonMaxBytes = "max_bytes"
)

type passwordRule struct {
	reason  string
	message string
	ok      func(string) bool
}

// The strength check is exactly the conjunction of these predicates.
var passwordRules = []passwordRule{
	{ReasonTooShort, "must be at least 8 characters long", hasMinLength},
	{ReasonMissingUppercase, "must contain an uppercase letter", hasUpper},
	{ReasonMissingLowercase, "must contain a lowercase letter", hasLower},
	{ReasonMissingDigit, "must contain a digit", hasDigit},
	{ReasonMissingSpecial, `must contain one of !@#$%^&*(),.?":{}|<>`, hasSpecial},
}

// PasswordWeaknesses returns the reasons the password fails, empty when it is strong.
func PasswordWeaknesses(password string) []string {
	var out []string
	for _, r := range passwordRules {
		if !r.ok(password) {
			out = append(out, r.reason)
		}
	}
	return out
}

func hasMinLength(s string) bool {
	return utf8.RuneCountInString(s) >= PasswordMinLength
}

func hasUpper(s string) bool {
	return containsByte(s, func(b byte) bool { return b >= 'A' && b <= 'Z' })
}

func hasLower(s string) bool {
	return containsByte(s, func(b byte) bool { return b >= 'a' && b <= 'z' })
}

func hasDigit(s string) bool {
	return containsByte(s, func(b byte) bool { return b >= '0' && b <= '9' })
}

func hasSpecial(s string) bool {
	return strings.ContainsAny(s, passwordSpecials)
}

// ASCII classes only, so scanning bytes is enough.
func containsByte(s string, pred func(byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if pred(s[i]) {
			return true
		}
	}
	return false
}
