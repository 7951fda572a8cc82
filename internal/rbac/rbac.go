package rbac

type Role string
type Action string

const (
	RolePlayer     Role = "player"
	RoleGameMaster Role = "gamemaster"
	RoleAdmin      Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionPropose Action = "propose"
	ActionVote    Action = "vote"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionForce   Action = "force"
	ActionAdmin   Action = "admin"
)

// Can gates every session operation. The admin console bypasses the
// consensus protocol but never the role check.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleGameMaster:
		return action == ActionRead || action == ActionPropose || action == ActionVote ||
			action == ActionAccept || action == ActionReject || action == ActionForce
	case RolePlayer:
		return action == ActionRead || action == ActionPropose || action == ActionVote
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RolePlayer, RoleGameMaster, RoleAdmin:
		return Role(role)
	default:
		return RolePlayer
	}
}
