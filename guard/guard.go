package guard

import (
	"slices"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Outcome is the result class of a navigation decision.
type Outcome int

const (
	// Indeterminate means the session is still loading; show a placeholder
	// and do not redirect.
	Indeterminate Outcome = iota
	// Denied means the navigation must be redirected.
	Denied
	// Granted means the requested view may be shown.
	Granted
)

func (o Outcome) String() string {
	switch o {
	case Indeterminate:
		return "indeterminate"
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return "unknown"
	}
}

// Requirement is what a route demands of the session. A route that is
// not Protected is public. Empty Roles admits any authenticated user.
type Requirement struct {
	Protected bool
	Roles     []string
}

// Policy holds the redirect targets and the missing-role rule.
type Policy struct {
	LoginRoute        string
	UnauthorizedRoute string
	// AllowMissingRole admits a user with an empty role to role-gated routes.
	AllowMissingRole bool
}

// DefaultPolicy redirects to "/" for login and "/unauthorized" for a
// failed role check.
func DefaultPolicy() Policy {
	return Policy{LoginRoute: "/", UnauthorizedRoute: "/unauthorized"}
}

// PolicyFromConfig reads the redirect targets from a session config.
func PolicyFromConfig(cfg goSession.RoutesConfig) Policy {
	return Policy{
		LoginRoute:        cfg.LoginRoute,
		UnauthorizedRoute: cfg.UnauthorizedRoute,
		AllowMissingRole:  cfg.AllowMissingRole,
	}
}

// Decision is the outcome of one navigation attempt. Redirect and From
// are set only when Outcome is Denied; From carries the requested
// location so a login can return to it.
type Decision struct {
	Outcome  Outcome
	Redirect string
	From     string
}

// Decide evaluates a navigation to location.
func Decide(state goSession.State, req Requirement, location string, p Policy) Decision {
	if state.IsLoading {
		return Decision{Outcome: Indeterminate}
	}
	if !req.Protected {
		return Decision{Outcome: Granted}
	}
	if !state.IsAuthenticated || state.User == nil {
		return Decision{Outcome: Denied, Redirect: p.LoginRoute, From: location}
	}
	if len(req.Roles) == 0 {
		return Decision{Outcome: Granted}
	}

	role := strings.TrimSpace(state.User.Role)
	if role == "" && p.AllowMissingRole {
		return Decision{Outcome: Granted}
	}
	if role != "" && slices.Contains(req.Roles, role) {
		return Decision{Outcome: Granted}
	}
	return Decision{Outcome: Denied, Redirect: p.UnauthorizedRoute}
}
