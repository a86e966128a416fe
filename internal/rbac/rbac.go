// Package rbac decides which account roles may perform which document
// actions. Ownership is enforced separately by owner-scoped queries.
package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionExport  Action = "export"
	ActionUpload  Action = "upload"
	ActionAnalyze Action = "analyze"
	ActionChat    Action = "chat"
	ActionDelete  Action = "delete"
	ActionAdmin   Action = "admin"
)

// Can reports whether role may perform action. Viewers are read-only
// accounts: they keep access to existing analyses but cannot spend model
// calls.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return action != ActionAdmin
	case RoleViewer:
		return action == ActionRead || action == ActionExport
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
