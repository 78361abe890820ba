package user

import "time"

// PartialUser is a stored row as the store returned it. Any column the table
// does not (yet) have decodes as nil.
type PartialUser struct {
	ID           *string    `json:"id"`
	Email        *string    `json:"email"`
	FullName     *string    `json:"full_name"`
	StudentID    *string    `json:"student_id"`
	Department   *string    `json:"department"`
	YearOfStudy  *string    `json:"year_of_study"`
	Points       *int       `json:"points"`
	Role         *string    `json:"role"`
	Bio          *string    `json:"bio"`
	Expertise    *string    `json:"expertise"`
	Availability *string    `json:"availability"`
	IsVerified   *bool      `json:"is_verified"`
	JoinedAt     *time.Time `json:"joined_at"`
}

// NormalizePartial fills the canonical defaults for columns the row lacks.
// bio, expertise and availability default to null, so nil is already canonical.
// It is idempotent.
func NormalizePartial(p PartialUser) PartialUser {
	if p.Role == nil || *p.Role == "" {
		role := string(RoleStudent)
		p.Role = &role
	}
	if p.Points == nil {
		points := 0
		p.Points = &points
	}
	if p.IsVerified == nil {
		verified := false
		p.IsVerified = &verified
	}
	return p
}

// User normalizes p and converts it to the output shape.
func (p PartialUser) User() User {
	n := NormalizePartial(p)

	u := User{
		ID: deref(n.ID),
		Profile: Profile{
			Email:        deref(n.Email),
			FullName:     deref(n.FullName),
			StudentID:    n.StudentID,
			Department:   deref(n.Department),
			YearOfStudy:  n.YearOfStudy,
			Points:       *n.Points,
			Role:         Role(*n.Role),
			Bio:          n.Bio,
			Expertise:    n.Expertise,
			Availability: n.Availability,
			IsVerified:   *n.IsVerified,
		},
	}
	if n.JoinedAt != nil {
		u.JoinedAt = *n.JoinedAt
	}
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
