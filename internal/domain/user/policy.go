package user

import "strings"

const (
	institutionSuffix = ".ac.ke"
	gmailMarker       = "@gmail.com"
)

// Validate runs the shape stage, applies defaults, then the registration policy.
// All policy violations are collected rather than stopping at the first one.
// It does no I/O and is safe for concurrent use.
func Validate(req RegisterRequest) (NormalizedUser, error) {
	req = req.trimmed()

	if err := ValidateShape(req); err != nil {
		return NormalizedUser{}, err
	}

	n := applyDefaults(req)

	var violations []Violation

	for _, reason := range PasswordWeaknesses(n.Password) {
		violations = append(violations, Violation{
			Kind:    KindWeakPassword,
			Field:   "password",
			Reason:  reason,
			Message: passwordMessage(reason),
		})
	}

	if !EmailDomainAllowed(n.Email, n.Role) {
		violations = append(violations, Violation{
			Kind:    KindInvalidEmailDomain,
			Field:   "email",
			Reason:  "domain_not_allowed_for_role",
			Message: emailDomainMessage(n.Role),
		})
	}

	// depends on the resolved role, so it is checked on the whole record
	if n.Role == RoleStudent && n.StudentID == nil {
		violations = append(violations, Violation{
			Kind:    KindMissingStudentID,
			Field:   "student_id",
			Reason:  "required_for_students",
			Message: "is required for students",
		})
	}

	if len(violations) > 0 {
		return NormalizedUser{}, &ValidationError{Violations: violations, Role: n.Role}
	}

	return n, nil
}

// EmailDomainAllowed applies the role's domain rule. Comparison is case-insensitive.
// Non-student roles accept any address containing "@gmail.com", including
// look-alikes such as user@gmail.com.example.org.
func EmailDomainAllowed(email string, role Role) bool {
	e := strings.ToLower(email)
	institutional := strings.HasSuffix(e, institutionSuffix)

	if role == RoleStudent {
		return institutional
	}
	return institutional || strings.Contains(e, gmailMarker)
}

func applyDefaults(req RegisterRequest) NormalizedUser {
	role := req.Role
	if role == "" {
		role = RoleStudent
	}

	return NormalizedUser{
		Profile: Profile{
			Email:        NormalizeEmail(req.Email),
			FullName:     strings.TrimSpace(req.FullName),
			StudentID:    optional(req.StudentID),
			Department:   strings.TrimSpace(req.Department),
			YearOfStudy:  optional(req.YearOfStudy),
			Points:       req.Points,
			Role:         role,
			Bio:          optional(req.Bio),
			Expertise:    optional(req.Expertise),
			Availability: optional(req.Availability),
			IsVerified:   req.IsVerified,
		},
		Password: req.Password,
	}
}

func passwordMessage(reason string) string {
	for _, r := range passwordRules {
		if r.reason == reason {
			return r.message
		}
	}
	return "is too weak"
}

func emailDomainMessage(role Role) string {
	if role == RoleStudent {
		return "students must register with an institutional .ac.ke address"
	}
	return "must be an institutional .ac.ke address or a gmail.com address"
}
