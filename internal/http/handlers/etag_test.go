package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/younginnovators/internal/domain/user"
	"github.com/stretchr/testify/assert"
)

func TestEtagMatches(t *testing.T) {
	const tag = `W/"user-u1-abc"`

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"empty header", "", false},
		{"wildcard", "*", true},
		{"exact", `W/"user-u1-abc"`, true},
		{"strong form of weak tag", `"user-u1-abc"`, true},
		{"one of a list", `"other", W/"user-u1-abc"`, true},
		{"different tag", `W/"user-u2-abc"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, etagMatches(tt.header, tag))
		})
	}
}

func TestUserETag(t *testing.T) {
	u := user.User{ID: "u1", Profile: user.Profile{Email: "s1@uni.ac.ke", Points: 1}}

	tag := userETag(u)
	assert.True(t, strings.HasPrefix(tag, `W/"user-u1-`), tag)
	assert.Equal(t, tag, userETag(u))

	u.Points = 2
	assert.NotEqual(t, tag, userETag(u), "a changed record needs a new tag")
}

func TestListETag(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mentor := func(id string, joined time.Time) user.User {
		return user.User{ID: id, JoinedAt: joined, Profile: user.Profile{Role: user.RoleMentor}}
	}

	one := []user.User{mentor("m1", base)}
	two := append([]user.User{}, one[0], mentor("m2", base.Add(time.Minute)))

	assert.Equal(t, listETag(one), listETag([]user.User{mentor("m1", base)}))
	assert.NotEqual(t, listETag(one), listETag(two))
	assert.Contains(t, listETag(two), "users-2-")
	assert.Contains(t, listETag(nil), "users-0-")
}
