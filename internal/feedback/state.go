package feedback

type State int

const (
	StateIdle State = iota
	StateComposing
	StateAwaitingPermission
	StateAwaitingLogin
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}
