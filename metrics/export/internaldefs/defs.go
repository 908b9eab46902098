package internaldefs

import (
	authcore "github.com/wokengineers/tezdm-authcore"
)

// CounterDef binds a core counter to its exported metric name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram to its exported metric name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in a stable order shared by all
// exporters.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricOTPGenerateSuccess, Name: "authcore_otp_generate_success_total", Help: "Successful passcode requests."},
	{ID: authcore.MetricOTPGenerateFailure, Name: "authcore_otp_generate_failure_total", Help: "Failed passcode requests."},
	{ID: authcore.MetricOTPValidateSuccess, Name: "authcore_otp_validate_success_total", Help: "Completed OTP login sequences."},
	{ID: authcore.MetricOTPValidateFailure, Name: "authcore_otp_validate_failure_total", Help: "OTP login sequences that failed at any step."},
	{ID: authcore.MetricNoGroups, Name: "authcore_no_groups_total", Help: "Logins rejected for an empty group list."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful password logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed password logins."},
	{ID: authcore.MetricSignupSuccess, Name: "authcore_signup_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricSignupFailure, Name: "authcore_signup_failure_total", Help: "Failed registrations."},
	{ID: authcore.MetricSignout, Name: "authcore_signout_total", Help: "Signout operations."},
	{ID: authcore.MetricSessionRestored, Name: "authcore_session_restored_total", Help: "Sessions restored at startup."},
	{ID: authcore.MetricIntegrityWipe, Name: "authcore_integrity_wipe_total", Help: "Credential wipes after failed integrity validation."},
	{ID: authcore.MetricGlobalLogout, Name: "authcore_global_logout_total", Help: "Forced resets from the global logout signal."},
	{ID: authcore.MetricProfileUpdated, Name: "authcore_profile_updated_total", Help: "Partial profile merges."},
	{ID: authcore.MetricPollStarted, Name: "authcore_poll_started_total", Help: "Connection attempts that entered polling."},
	{ID: authcore.MetricPollSuccess, Name: "authcore_poll_success_total", Help: "Connection attempts that observed a completed authorization."},
	{ID: authcore.MetricPollError, Name: "authcore_poll_error_total", Help: "Connection attempts terminated by a status query failure."},
	{ID: authcore.MetricPollTimeout, Name: "authcore_poll_timeout_total", Help: "Connection attempts terminated by the countdown."},
	{ID: authcore.MetricPollCancelled, Name: "authcore_poll_cancelled_total", Help: "Connection attempts abandoned before a terminal state."},
	{ID: authcore.MetricRedirectSuccess, Name: "authcore_redirect_success_total", Help: "Completed redirect exchanges."},
	{ID: authcore.MetricRedirectFailure, Name: "authcore_redirect_failure_total", Help: "Failed redirect resolutions."},
	{ID: authcore.MetricRedirectReplay, Name: "authcore_redirect_replay_total", Help: "Redirect resolutions served from the one-shot cache."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateOTPLatency, Name: "authcore_validate_otp_latency_seconds", Help: "OTP validation sequence latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the core's
// millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds bound labels usable inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
