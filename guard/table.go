package guard

import (
	"errors"
	"maps"
	"slices"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// ErrUnknownRoute is returned by Table.Lookup and Navigator.Navigate for
// paths the table does not declare.
var ErrUnknownRoute = errors.New("unknown route")

// Table maps route paths to their requirements.
type Table map[string]Requirement

// DefaultTable declares the application's routes: the home page and the
// unauthorized page are public, the student registry is admin-only.
func DefaultTable() Table {
	return Table{
		"/":             {},
		"/unauthorized": {},
		"/students":     {Protected: true, Roles: []string{"admin"}},
	}
}

// Lookup returns the requirement for path. A trailing slash is ignored.
func (t Table) Lookup(path string) (Requirement, error) {
	if path != "/" {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	req, ok := t[path]
	if !ok {
		return Requirement{}, ErrUnknownRoute
	}
	return req, nil
}

// Paths lists the declared routes in sorted order.
func (t Table) Paths() []string {
	return slices.Sorted(maps.Keys(t))
}

// StateSource yields the current session state. *goSession.Manager
// satisfies it.
type StateSource interface {
	State() goSession.State
}

// Navigator evaluates navigations against a live session.
type Navigator struct {
	source StateSource
	table  Table
	policy Policy
}

func NewNavigator(source StateSource, table Table, policy Policy) *Navigator {
	if table == nil {
		table = DefaultTable()
	}
	return &Navigator{source: source, table: table, policy: policy}
}

// Navigate decides a navigation to path using the session's current state.
func (n *Navigator) Navigate(path string) (Decision, error) {
	req, err := n.table.Lookup(path)
	if err != nil {
		return Decision{}, err
	}
	return Decide(n.source.State(), req, path, n.policy), nil
}
