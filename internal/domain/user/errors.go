package user

import (
	"errors"
	"strings"
)

// store errors
var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrStoreUnavailable   = errors.New("user store unavailable")
)

// ErrValidation matches every *ValidationError through errors.Is.
var ErrValidation = errors.New("validation failed")

type Kind string

const (
	KindMalformedField     Kind = "malformed_field"
	KindWeakPassword       Kind = "weak_password"
	KindInvalidEmailDomain Kind = "invalid_email_domain"
	KindMissingStudentID   Kind = "missing_student_id"
)

type Violation struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type ValidationError struct {
	Violations []Violation
	// Role is the resolved role when the policy stage ran, empty after a shape failure.
	Role Role
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Has reports whether any violation is of kind k.
func (e *ValidationError) Has(k Kind) bool {
	for _, v := range e.Violations {
		if v.Kind == k {
			return true
		}
	}
	return false
}

// Reasons returns the reasons recorded for kind k, in evaluation order.
func (e *ValidationError) Reasons(k Kind) []string {
	var out []string
	for _, v := range e.Violations {
		if v.Kind == k {
			out = append(out, v.Reason)
		}
	}
	return out
}

// Kinds lists distinct kinds in first-seen order.
func (e *ValidationError) Kinds() []Kind {
	seen := make(map[Kind]struct{}, len(e.Violations))
	out := make([]Kind, 0, len(e.Violations))
	for _, v := range e.Violations {
		if _, ok := seen[v.Kind]; ok {
			continue
		}
		seen[v.Kind] = struct{}{}
		out = append(out, v.Kind)
	}
	return out
}
