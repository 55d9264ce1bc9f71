package rbac

type Role string
type Action string

const (
	RoleGuest     Role = "guest"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead      Action = "read"
	ActionProfile   Action = "profile"
	ActionModerate  Action = "moderate"
	ActionConfigure Action = "configure"
	ActionAdmin     Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action == ActionRead || action == ActionModerate || action == ActionProfile
	case RoleUser:
		return action == ActionRead || action == ActionProfile
	case RoleGuest:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps anything unrecognized, including an empty role, to guest.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleGuest, RoleUser, RoleModerator, RoleAdmin:
		return Role(role)
	default:
		return RoleGuest
	}
}
