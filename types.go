package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/notify"
	"github.com/MrEthical07/goSession/session"
)

// User is the signed-in user's profile.
type User = session.User

// State is a snapshot of the session as observers see it.
//
// IsAuthenticated is true exactly when User is non-nil. While IsLoading is
// set, route decisions are deferred.
type State struct {
	User              *User
	IsAuthenticated   bool
	IsLoading         bool
	IsLoginPromptOpen bool
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Backend is the subset of the REST API the Manager drives. *api.Client
// satisfies it.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

var _ Backend = (*api.Client)(nil)

// Notification is a user-facing message emitted on session transitions.
type Notification = notify.Notification

// NotificationKind classifies a Notification.
type NotificationKind = notify.Kind

const (
	NotifySuccess = notify.KindSuccess
	NotifyInfo    = notify.KindInfo
	NotifyWarning = notify.KindWarning
	NotifyError   = notify.KindError
)

// NotificationSink receives notifications. Implementations must be safe
// for concurrent use.
type NotificationSink = notify.Sink

type (
	NoOpSink       = notify.NoOpSink
	FuncSink       = notify.FuncSink
	ChannelSink    = notify.ChannelSink
	JSONWriterSink = notify.JSONWriterSink
	Tray           = notify.Tray
)

var (
	NewChannelSink    = notify.NewChannelSink
	NewJSONWriterSink = notify.NewJSONWriterSink
	NewTray           = notify.NewTray
)
