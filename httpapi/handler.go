// Package httpapi exposes the auth core over HTTP: the OAuth redirect
// landing, session introspection, and a Prometheus metrics endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authcore "github.com/wokengineers/tezdm-authcore"
	"github.com/wokengineers/tezdm-authcore/gateway"
	"github.com/wokengineers/tezdm-authcore/metrics/export/prometheus"
)

// Handler serves the HTTP surface over one engine.
type Handler struct {
	engine *authcore.Engine
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger discards.
func NewHandler(engine *authcore.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{engine: engine, logger: logger}
}

// Router mounts all routes on a fresh chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.Health)
	r.Get("/session", h.Session)
	r.Get("/oauth/redirect", h.OAuthRedirect)
	r.Get("/connect/status", h.ConnectStatus)
	r.Method(http.MethodGet, "/metrics", prometheus.NewPrometheusExporter(h.engine).Handler())

	return r
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionResponse struct {
	Status    string            `json:"status"`
	Step      string            `json:"step"`
	Email     string            `json:"email,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	User      *authcore.Profile `json:"user,omitempty"`
}

// Session returns the current session snapshot.
// GET /session
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, http.StatusOK, sessionResponse{
		Status:    snap.Status.String(),
		Step:      snap.Step.String(),
		Email:     snap.Email,
		LastError: snap.LastError,
		User:      snap.User,
	})
}

type redirectResponse struct {
	Platform      string `json:"platform"`
	Handle        string `json:"handle,omitempty"`
	GroupID       string `json:"group_id"`
	Target        string `json:"target"`
	Notice        string `json:"notice,omitempty"`
	NavigateAfter int64  `json:"navigate_after_ms"`
}

// OAuthRedirect lands the browser returning from the third-party
// authorization page.
// GET /oauth/redirect?code=xxx&state=yyy
func (h *Handler) OAuthRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	outcome, err := h.engine.ResolveRedirect(r.Context(), code, state)
	if err != nil {
		status := redirectErrorStatus(err)
		h.logger.Warn("redirect resolution failed",
			slog.String("error", err.Error()),
			slog.Int("status", status))
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, redirectResponse{
		Platform:      outcome.Account.Platform,
		Handle:        outcome.Account.Handle,
		GroupID:       outcome.GroupID,
		Target:        outcome.Target.String(),
		Notice:        outcome.Notice,
		NavigateAfter: outcome.NavigateAfter.Milliseconds(),
	})
}

type connectStatusResponse struct {
	Active           bool   `json:"active"`
	Platform         string `json:"platform,omitempty"`
	Status           string `json:"status,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
	LastError        string `json:"last_error,omitempty"`
}

// ConnectStatus reports the in-flight connection attempt, if any.
// GET /connect/status
func (h *Handler) ConnectStatus(w http.ResponseWriter, _ *http.Request) {
	snap, active := h.engine.ActiveConnection()
	if !active {
		writeJSON(w, http.StatusOK, connectStatusResponse{Active: false})
		return
	}
	writeJSON(w, http.StatusOK, connectStatusResponse{
		Active:           true,
		Platform:         snap.Platform,
		Status:           snap.Status.String(),
		RemainingSeconds: snap.RemainingSeconds,
		LastError:        snap.LastError,
	})
}

func redirectErrorStatus(err error) int {
	switch {
	case errors.Is(err, authcore.ErrMissingParameter),
		errors.Is(err, authcore.ErrMalformedState):
		return http.StatusBadRequest
	case errors.Is(err, authcore.ErrGatewayUnavailable):
		return http.StatusBadGateway
	}

	var statusErr *gateway.StatusError
	if errors.As(err, &statusErr) && statusErr.Status >= 400 && statusErr.Status < 500 {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
