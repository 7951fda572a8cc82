package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RolePlayer, ActionRead, true},
		{RolePlayer, ActionPropose, true},
		{RolePlayer, ActionVote, true},
		{RolePlayer, ActionAccept, false},
		{RolePlayer, ActionReject, false},
		{RolePlayer, ActionForce, false},
		{RolePlayer, ActionAdmin, false},
		{RoleGameMaster, ActionAccept, true},
		{RoleGameMaster, ActionReject, true},
		{RoleGameMaster, ActionForce, true},
		{RoleGameMaster, ActionAdmin, false},
		{RoleAdmin, ActionAdmin, true},
		{RoleAdmin, ActionForce, true},
		{Role("spectator"), ActionRead, false},
	}

	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("gamemaster") != RoleGameMaster {
		t.Error("expected gamemaster to normalize to itself")
	}
	if Normalize("") != RolePlayer {
		t.Error("expected empty role to default to player")
	}
	if Normalize("root") != RolePlayer {
		t.Error("expected unknown role to default to player")
	}
}
