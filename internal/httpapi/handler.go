// Package httpapi exposes the reminder operations over HTTP/JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nudger/internal/apperr"
	"nudger/internal/recurrence"
	"nudger/internal/services/scheduler"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Backend is the set of operations the transport forwards to.
type Backend interface {
	RegisterToken(ctx context.Context, token string) error
	RegisteredTokens(ctx context.Context) ([]string, error)
	SendNotification(ctx context.Context, req SendRequest) (messageID string, err error)
	ScheduleNotification(ctx context.Context, req recurrence.Request) (*ScheduleResponse, error)
	ListJobs(ctx context.Context, token string) ([]scheduler.JobListResponse, error)
	ScheduledEntries() []scheduler.Entry
	CancelJob(ctx context.Context, jobID string) error
	ListTones(ctx context.Context) ([]ToneResponse, error)
	GetTonePreference(ctx context.Context, token string) (*TonePreferenceResponse, error)
	SetTonePreference(ctx context.Context, token string, toneID uint) (*SetToneResponse, error)
	TonePrompts(ctx context.Context, toneID uint) (*TonePromptsResponse, error)
	RandomTonePrompt(ctx context.Context, toneID uint) RandomPromptResponse
	Ping(ctx context.Context) error
}

// Handler routes HTTP requests to a Backend.
type Handler struct {
	backend Backend
	origins map[string]bool
	log     zerolog.Logger
	mux     *http.ServeMux
}

// NewHandler builds the route table. allowedOrigins feeds CORS; "*" allows any.
func NewHandler(backend Backend, allowedOrigins []string, log zerolog.Logger) *Handler {
	h := &Handler{
		backend: backend,
		origins: make(map[string]bool, len(allowedOrigins)),
		log:     log.With().Str("component", "http").Logger(),
		mux:     http.NewServeMux(),
	}
	for _, o := range allowedOrigins {
		h.origins[o] = true
	}

	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("POST /register-token", h.registerToken)
	h.mux.HandleFunc("GET /registered-tokens", h.registeredTokens)
	h.mux.HandleFunc("POST /send-notification", h.sendNotification)
	h.mux.HandleFunc("POST /schedule-notification", h.scheduleNotification)
	h.mux.HandleFunc("GET /get-notifications/{token}", h.getNotifications)
	h.mux.HandleFunc("GET /scheduled-jobs", h.scheduledJobs)
	h.mux.HandleFunc("DELETE /scheduled-jobs/{id}", h.cancelJob)
	h.mux.HandleFunc("GET /tones", h.tones)
	h.mux.HandleFunc("GET /user-tone/{token}", h.getUserTone)
	h.mux.HandleFunc("POST /user-tone", h.setUserTone)
	h.mux.HandleFunc("GET /tone-prompts/{id}", h.tonePrompts)
	h.mux.HandleFunc("GET /random-tone-prompt/{id}", h.randomTonePrompt)
	return h
}

// WithMetrics mounts a metrics handler at path.
func (h *Handler) WithMetrics(path string, handler http.Handler) *Handler {
	h.mux.Handle("GET "+path, handler)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	defer func() {
		if p := recover(); p != nil {
			h.log.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("Handler panicked")
			writeError(rec, http.StatusInternalServerError, "internal server error")
		}
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	}()

	if h.cors(rec, r) {
		return
	}
	h.mux.ServeHTTP(rec, r)
}

// cors sets the CORS headers and answers preflight requests. It reports
// whether the request was fully handled.
func (h *Handler) cors(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin != "" && (h.origins["*"] || h.origins[origin]) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Welcome to Nudger API"})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("verbose") != "true" {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{Status: "ok", Components: make(map[string]string)}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.backend.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}
	resp.Components["armed_jobs"] = strconv.Itoa(len(h.backend.ScheduledEntries()))

	status := http.StatusOK
	if resp.Status == "degraded" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Handler) registerToken(w http.ResponseWriter, r *http.Request) {
	var req RegisterTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.backend.RegisterToken(r.Context(), req.Token); err != nil {
		h.fail(w, "register token", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Token registered successfully"})
}

func (h *Handler) registeredTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.backend.RegisteredTokens(r.Context())
	if err != nil {
		h.fail(w, "list tokens", err)
		return
	}
	if tokens == nil {
		tokens = []string{}
	}
	writeJSON(w, http.StatusOK, TokensResponse{Tokens: tokens})
}

func (h *Handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.backend.SendNotification(r.Context(), req)
	if err != nil {
		h.fail(w, "send notification", err)
		return
	}
	writeJSON(w, http.StatusOK, SendResponse{Message: "Notification sent successfully", MessageID: id})
}

func (h *Handler) scheduleNotification(w http.ResponseWriter, r *http.Request) {
	var req recurrence.Request
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.backend.ScheduleNotification(r.Context(), req)
	if err != nil {
		h.fail(w, "schedule notification", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getNotifications(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.backend.ListJobs(r.Context(), r.PathValue("token"))
	if err != nil {
		h.fail(w, "list notifications", err)
		return
	}
	if jobs == nil {
		jobs = []scheduler.JobListResponse{}
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: jobs, Count: len(jobs)})
}

func (h *Handler) scheduledJobs(w http.ResponseWriter, r *http.Request) {
	entries := h.backend.ScheduledEntries()
	if entries == nil {
		entries = []scheduler.Entry{}
	}
	writeJSON(w, http.StatusOK, JobsResponse{Jobs: entries, TotalJobs: len(entries)})
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.backend.CancelJob(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job '"+id+"' not found or could not be cancelled")
			return
		}
		h.fail(w, "cancel job", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Job '" + id + "' cancelled successfully"})
}

func (h *Handler) tones(w http.ResponseWriter, r *http.Request) {
	tones, err := h.backend.ListTones(r.Context())
	if err != nil {
		h.fail(w, "list tones", err)
		return
	}
	if tones == nil {
		tones = []ToneResponse{}
	}
	writeJSON(w, http.StatusOK, TonesResponse{Tones: tones})
}

func (h *Handler) getUserTone(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.GetTonePreference(r.Context(), r.PathValue("token"))
	if err != nil {
		h.fail(w, "get user tone", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) setUserTone(w http.ResponseWriter, r *http.Request) {
	var req SetToneRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "Token is required")
		return
	}
	if req.ToneID == 0 {
		writeError(w, http.StatusBadRequest, "tone_id is required")
		return
	}
	resp, err := h.backend.SetTonePreference(r.Context(), req.Token, req.ToneID)
	if err != nil {
		h.fail(w, "set user tone", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) tonePrompts(w http.ResponseWriter, r *http.Request) {
	id, ok := toneIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.backend.TonePrompts(r.Context(), id)
	if err != nil {
		h.fail(w, "list tone prompts", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) randomTonePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := toneIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.backend.RandomTonePrompt(r.Context(), id))
}

// decode reads a JSON body into v, answering 400/413 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// fail maps a backend error onto a status code.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("op", op).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(err error) int {
	var validation *apperr.ValidationError
	var gateway *apperr.GatewayError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &gateway):
		return http.StatusBadGateway
	case errors.Is(err, scheduler.ErrJobExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func toneIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tone id")
		return 0, false
	}
	return uint(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Detail: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
