package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricRestore, Name: "gosession_restore_total", Help: "Session restore runs."},
	{ID: goSession.MetricBackgroundCheck, Name: "gosession_background_check_total", Help: "Periodic expiration checks."},
	{ID: goSession.MetricSessionRestored, Name: "gosession_session_restored_total", Help: "Checks that found a valid persisted session."},
	{ID: goSession.MetricSessionExpired, Name: "gosession_session_expired_total", Help: "Checks that found an expired token."},
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginRejected, Name: "gosession_login_rejected_total", Help: "Logins refused for an invalid token or user."},
	{ID: goSession.MetricAuthRequestFailure, Name: "gosession_auth_request_failure_total", Help: "Sign-in and sign-up requests rejected by the backend."},
	{ID: goSession.MetricLogoutExplicit, Name: "gosession_logout_explicit_total", Help: "User-initiated logouts."},
	{ID: goSession.MetricLogoutSilent, Name: "gosession_logout_silent_total", Help: "Silent logouts (expiry, unauthorized, deletion)."},
	{ID: goSession.MetricUnauthorizedSignal, Name: "gosession_unauthorized_signal_total", Help: "Unauthorized signals received."},
	{ID: goSession.MetricBackendLogoutFailure, Name: "gosession_backend_logout_failure_total", Help: "Backend logout calls that failed."},
	{ID: goSession.MetricDeleteAccountSuccess, Name: "gosession_delete_account_success_total", Help: "Successful account deletions."},
	{ID: goSession.MetricDeleteAccountFailure, Name: "gosession_delete_account_failure_total", Help: "Failed account deletions."},
	{ID: goSession.MetricStorageError, Name: "gosession_storage_error_total", Help: "Persisted session store failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricBackendLatency, Name: "gosession_backend_latency_seconds", Help: "Latency of backend calls made by the session manager."},
}

// NotificationsDroppedName is the counter for notifications the async
// dispatcher dropped.
const (
	NotificationsDroppedName = "gosession_notifications_dropped_total"
	NotificationsDroppedHelp = "Notifications dropped due to dispatcher backpressure."
)

// HistogramBounds are the bucket upper bounds in seconds.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument-name suffixes.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
