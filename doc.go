// Package authcore implements the client-side authentication and connection
// core of tezdm: the multi-step OTP login sequence, token lifecycle and
// session restoration, the bounded OAuth connection poller, and the one-shot
// OAuth redirect resolver.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [Poller] connection state machine, and value types (Session,
// ConnectionSnapshot, RedirectOutcome, MetricsSnapshot). Protocol sequencing
// lives under internal/flows and is never exported; the credential store and
// the gateway client are the credstore and gateway sub-packages.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Session mutation is serialized
// internally; the only suspension points are remote calls, and within
// [Engine.ValidateOTP] the gateway calls are strictly sequential because
// each consumes the previous call's output.
//
// # What this package must NOT do
//
//   - Expose redis clients, store encodings, or gateway wire details in its
//     public API.
//   - Persist a token set whose expiry cannot be derived from its access
//     token.
//   - Leave a background poller or watcher goroutine running after Close.
package authcore
