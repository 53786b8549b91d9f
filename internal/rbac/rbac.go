package rbac

type Role string
type Action string

const (
	RoleCustomer Role = "customer"
	RoleAttorney Role = "attorney"
	RoleAdmin    Role = "admin"
)

const (
	ActionChat               Action = "chat"
	ActionFileCase           Action = "file_case"
	ActionTakeCase           Action = "take_case"
	ActionSubmitVerification Action = "submit_verification"
	ActionManagePrompts      Action = "manage_prompts"
	ActionManageUsers        Action = "manage_users"
	ActionReviewVerification Action = "review_verification"
	ActionAdmin              Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAttorney:
		return action == ActionChat || action == ActionTakeCase || action == ActionSubmitVerification
	case RoleCustomer:
		return action == ActionChat || action == ActionFileCase
	default:
		return false
	}
}

// Normalize maps unknown roles to customer, the least privileged.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleCustomer, RoleAttorney, RoleAdmin:
		return Role(role)
	default:
		return RoleCustomer
	}
}
