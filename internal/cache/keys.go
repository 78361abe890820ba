package cache

import (
	"slices"
	"strings"

	"github.com/geocoder89/younginnovators/internal/domain/user"
)

// UsersByRolesKey is stable regardless of the order roles are given in.
func UsersByRolesKey(roles []user.Role) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, strings.ToLower(string(r)))
	}
	slices.Sort(names)
	names = slices.Compact(names)

	return "users:list:v1:roles=" + strings.Join(names, ",")
}

// MentorsKey is the cache key of the mentors listing.
func MentorsKey() string {
	return UsersByRolesKey(user.MentorRoles)
}
