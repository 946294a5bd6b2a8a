package health

// Role classifies a dependency by how the system must react when it
// stops working.
type Role int

const (
	// RoleStore is the durable relational store. Required, no fallback.
	RoleStore Role = iota
	// RoleCache is the cache backend. Optional.
	RoleCache
	// RoleGeneration is the generative backend. Optional, has a
	// deterministic substitute.
	RoleGeneration
	// RoleAuxiliary is supplemental context such as weather. Optional.
	RoleAuxiliary
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleStore:
		return "store"
	case RoleCache:
		return "cache"
	case RoleGeneration:
		return "generation"
	case RoleAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// Action is the behavior required at a dependency boundary.
type Action int

const (
	// ActionProceed means use the dependency normally.
	ActionProceed Action = iota
	// ActionFail means surface a hard failure to the caller.
	ActionFail
	// ActionBypass means skip the dependency and take the direct path.
	ActionBypass
	// ActionFallback means substitute the deterministic fallback.
	ActionFallback
	// ActionOmit means leave the dependency's contribution out.
	ActionOmit
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionFail:
		return "fail"
	case ActionBypass:
		return "bypass"
	case ActionFallback:
		return "fallback"
	case ActionOmit:
		return "omit"
	default:
		return "unknown"
	}
}

// ActionFor is the degradation policy: a pure lookup from a dependency's
// role and capability to the required behavior. It performs no I/O and is
// consulted at each dependency boundary rather than polled centrally.
func ActionFor(role Role, c Capability) Action {
	if c != Unavailable {
		return ActionProceed
	}

	switch role {
	case RoleStore:
		return ActionFail
	case RoleCache:
		return ActionBypass
	case RoleGeneration:
		return ActionFallback
	case RoleAuxiliary:
		return ActionOmit
	default:
		return ActionFail
	}
}
