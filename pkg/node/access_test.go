package node

import "testing"

func TestAccessCanRead(t *testing.T) {
	cases := []struct {
		name   string
		access Access
		roles  RoleSet
		want   bool
	}{
		{"user role reads user-read property", AccessUserRead, RoleSetUser, true},
		{"expert role cannot read user-only property", AccessUserRead, RoleSetExpert, false},
		{"any-read grants every role", AccessAnyRead, RoleSetManufacturer, true},
		{"write-only bit grants no read", AccessUserWrite, RoleSetUser, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.access.CanRead(c.roles); got != c.want {
				t.Errorf("CanRead(%v) with access %v = %v, want %v", c.roles, c.access, got, c.want)
			}
		})
	}
}

func TestAccessCanWrite(t *testing.T) {
	cases := []struct {
		name   string
		access Access
		roles  RoleSet
		want   bool
	}{
		{"user role writes user-write property", AccessUserWrite, RoleSetUser, true},
		{"user role cannot write expert-only property", AccessExpertWrite, RoleSetUser, false},
		{"any-write grants every role", AccessAnyWrite, RoleSetUser, true},
		{"read-only bit grants no write", AccessUserRead, RoleSetUser, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.access.CanWrite(c.roles); got != c.want {
				t.Errorf("CanWrite(%v) with access %v = %v, want %v", c.roles, c.access, got, c.want)
			}
		})
	}
}

func TestSubsetContains(t *testing.T) {
	both := SubsetPersisted | SubsetLive
	if !both.Contains(SubsetPersisted) {
		t.Error("expected combined subset to contain SubsetPersisted")
	}
	if !both.Contains(SubsetLive) {
		t.Error("expected combined subset to contain SubsetLive")
	}
	if SubsetLive.Contains(SubsetPersisted) {
		t.Error("expected SubsetLive alone to not contain SubsetPersisted")
	}
}
