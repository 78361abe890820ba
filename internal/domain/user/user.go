package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
	RoleStaff   Role = "staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleStaff:
		return true
	}
	return false
}

// MentorRoles are the roles listed on the mentors page.
var MentorRoles = []Role{RoleMentor, RoleStaff}

// Profile is every user field a client may set, minus the password.
type Profile struct {
	Email        string  `json:"email"`
	FullName     string  `json:"full_name"`
	StudentID    *string `json:"student_id"`
	Department   string  `json:"department"`
	YearOfStudy  *string `json:"year_of_study"`
	Points       int     `json:"points"`
	Role         Role    `json:"role"`
	Bio          *string `json:"bio"`
	Expertise    *string `json:"expertise"`
	Availability *string `json:"availability"`
	IsVerified   bool    `json:"is_verified"`
}

// User is the persisted record as returned to clients. The password never leaves the store.
type User struct {
	ID string `json:"id"`
	Profile
	JoinedAt time.Time `json:"joined_at"`
}

// NormalizedUser is an accepted registration with defaults applied.
type NormalizedUser struct {
	Profile
	Password string `json:"-"`
}

// NewUser is what the store inserts: the profile plus a password hash.
type NewUser struct {
	Profile
	PasswordHash string `json:"-"`
}

func (n NormalizedUser) WithPasswordHash(hash string) NewUser {
	return NewUser{Profile: n.Profile, PasswordHash: hash}
}

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	FullName     string `json:"full_name" binding:"required"`
	StudentID    string `json:"student_id" binding:"omitempty,max=64"`
	Department   string `json:"department" binding:"required,max=120"`
	YearOfStudy  string `json:"year_of_study" binding:"omitempty,max=20"`
	Points       int    `json:"points" binding:"min=0"`
	Role         Role   `json:"role" binding:"omitempty,oneof=student mentor staff"`
	Bio          string `json:"bio" binding:"omitempty,max=2000"`
	Expertise    string `json:"expertise" binding:"omitempty,max=500"`
	Availability string `json:"availability" binding:"omitempty,max=500"`
	IsVerified   bool   `json:"is_verified"`
}

// trimmed strips surrounding whitespace from every text field except the password.
func (r RegisterRequest) trimmed() RegisterRequest {
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Department = strings.TrimSpace(r.Department)
	r.YearOfStudy = strings.TrimSpace(r.YearOfStudy)
	r.Role = Role(strings.TrimSpace(string(r.Role)))
	r.Bio = strings.TrimSpace(r.Bio)
	r.Expertise = strings.TrimSpace(r.Expertise)
	r.Availability = strings.TrimSpace(r.Availability)
	return r
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
