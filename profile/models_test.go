package profile

import "testing"

func ptr(s string) *string { return &s }

func TestRoleLink_Valid(t *testing.T) {
	cases := []struct {
		name string
		link RoleLink
		want bool
		id   string
	}{
		{"owner", RoleLink{Role: RoleOwner, OwnerID: ptr("o1")}, true, "o1"},
		{"agent", RoleLink{Role: RoleAgent, AgentID: ptr("a1")}, true, "a1"},
		{"owner role with agent ref", RoleLink{Role: RoleOwner, AgentID: ptr("a1")}, false, ""},
		{"both refs", RoleLink{Role: RoleOwner, OwnerID: ptr("o1"), AgentID: ptr("a1")}, false, "o1"},
		{"no refs", RoleLink{Role: RoleAgent}, false, ""},
		{"empty ref", RoleLink{Role: RoleAgent, AgentID: ptr("")}, false, ""},
		{"unknown role", RoleLink{Role: "broker_admin", OwnerID: ptr("o1")}, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.link.Valid(); got != tc.want {
				t.Fatalf("Valid() = %v, want %v", got, tc.want)
			}
			if got := tc.link.ProfileID(); got != tc.id {
				t.Fatalf("ProfileID() = %q, want %q", got, tc.id)
			}
		})
	}
}
