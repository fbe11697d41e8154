package core

// Roles used by persisted turns and by prompt context messages. Persisted
// assistant turns carry RoleAgent; prompt context messages use RoleAssistant.
const (
	RoleUser      = "user"
	RoleAgent     = "agent"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ContextRole maps a persisted turn role onto the role label used in the
// prompt context.
func ContextRole(role string) string {
	if role == RoleAgent {
		return RoleAssistant
	}
	return role
}
