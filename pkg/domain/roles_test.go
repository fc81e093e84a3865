package domain

import "testing"

func TestRoleAtLeast(t *testing.T) {
	cases := []struct {
		role UserRole
		min  UserRole
		want bool
	}{
		{RoleAuthor, RoleAuthor, true},
		{RoleAuthor, RoleReviewer, false},
		{RoleReviewer, RoleAuthor, true},
		{RoleReviewer, RoleAdministrator, false},
		{RoleAdministrator, RoleReviewer, true},
		{UserRole("INTERN"), RoleAuthor, false},
		{RoleAdministrator, UserRole("INTERN"), false},
	}
	for _, tc := range cases {
		if got := tc.role.AtLeast(tc.min); got != tc.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tc.role, tc.min, got, tc.want)
		}
	}
}

func TestRoleKnown(t *testing.T) {
	for _, role := range []UserRole{RoleAuthor, RoleReviewer, RoleAdministrator} {
		if !role.Known() {
			t.Errorf("%s should be known", role)
		}
	}
	if UserRole("INTERN").Known() {
		t.Errorf("INTERN should not be known")
	}
}
