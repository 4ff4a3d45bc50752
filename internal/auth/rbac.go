package auth

import "strings"

// Role is the role claim carried in access tokens and stored on users.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:  1,
	RoleAdmin: 2,
}

// NormalizeRole lower-cases role and maps anything unrecognised to
// RoleUser.
func NormalizeRole(role string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	if _, ok := roleRank[r]; !ok {
		return RoleUser
	}
	return r
}

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool {
	return roleRank[NormalizeRole(string(r))] >= roleRank[min]
}

func IsAdmin(role string) bool {
	return Role(role).AtLeast(RoleAdmin)
}
