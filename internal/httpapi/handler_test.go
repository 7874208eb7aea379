package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudger/internal/apperr"
	"nudger/internal/recurrence"
	"nudger/internal/services/scheduler"
)

type fakeBackend struct {
	tokens    []string
	scheduled []recurrence.Request
	cancelled []string
	sendErr   error
	pingErr   error
	entries   []scheduler.Entry
	prefs     map[string]uint
}

func (b *fakeBackend) RegisterToken(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.Invalid("token", "token is required")
	}
	b.tokens = append(b.tokens, token)
	return nil
}

func (b *fakeBackend) RegisteredTokens(ctx context.Context) ([]string, error) {
	return b.tokens, nil
}

func (b *fakeBackend) SendNotification(ctx context.Context, req SendRequest) (string, error) {
	if b.sendErr != nil {
		return "", b.sendErr
	}
	return "projects/p/messages/1", nil
}

func (b *fakeBackend) ScheduleNotification(ctx context.Context, req recurrence.Request) (*ScheduleResponse, error) {
	if _, _, err := recurrence.ParseClock(req.Time); err != nil {
		return nil, err
	}
	b.scheduled = append(b.scheduled, req)
	return &ScheduleResponse{Message: "Notification scheduled successfully", JobID: "scheduled_tok_abcd1234", Frequency: req.Frequency, Time: req.Time}, nil
}

func (b *fakeBackend) ListJobs(ctx context.Context, token string) ([]scheduler.JobListResponse, error) {
	if token == "nobody" {
		return nil, nil
	}
	return []scheduler.JobListResponse{{JobID: "j1", Token: token}}, nil
}

func (b *fakeBackend) ScheduledEntries() []scheduler.Entry {
	return b.entries
}

func (b *fakeBackend) CancelJob(ctx context.Context, jobID string) error {
	if jobID == "missing" {
		return apperr.NotFound("job", jobID)
	}
	b.cancelled = append(b.cancelled, jobID)
	return nil
}

func (b *fakeBackend) ListTones(ctx context.Context) ([]ToneResponse, error) {
	return []ToneResponse{{ToneID: 1, ToneName: "caring", DisplayName: "Caring", ImageURL: "/moods/caring.png"}}, nil
}

func (b *fakeBackend) GetTonePreference(ctx context.Context, token string) (*TonePreferenceResponse, error) {
	if id, ok := b.prefs[token]; ok {
		return &TonePreferenceResponse{Token: token, Tone: "caring", ToneID: id}, nil
	}
	return &TonePreferenceResponse{Token: token, Tone: "neutral", ToneID: 2, IsDefault: true}, nil
}

func (b *fakeBackend) SetTonePreference(ctx context.Context, token string, toneID uint) (*SetToneResponse, error) {
	if toneID > 4 {
		return nil, apperr.NotFound("tone", "99")
	}
	b.prefs[token] = toneID
	return &SetToneResponse{Message: "Tone preference updated successfully", Token: token, Tone: "caring", ToneID: toneID}, nil
}

func (b *fakeBackend) TonePrompts(ctx context.Context, toneID uint) (*TonePromptsResponse, error) {
	if toneID > 4 {
		return nil, apperr.NotFound("prompts for tone", "9")
	}
	return &TonePromptsResponse{ToneID: toneID, Prompts: []PromptResponse{{PromptID: 1, Text: "hi"}}}, nil
}

func (b *fakeBackend) RandomTonePrompt(ctx context.Context, toneID uint) RandomPromptResponse {
	return RandomPromptResponse{ToneID: toneID, Prompt: "hi"}
}

func (b *fakeBackend) Ping(ctx context.Context) error {
	return b.pingErr
}

func newTestHandler() (*Handler, *fakeBackend) {
	b := &fakeBackend{prefs: map[string]uint{}}
	return NewHandler(b, []string{"http://localhost:3000"}, zerolog.Nop()), b
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRoot(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Nudger API", decodeBody[MessageResponse](t, rec).Message)

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Run("Should answer ok without probing", func(t *testing.T) {
		h, b := newTestHandler()
		b.pingErr = errors.New("db down")

		rec := do(t, h, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should report a degraded database when verbose", func(t *testing.T) {
		h, b := newTestHandler()
		b.pingErr = errors.New("db down")

		rec := do(t, h, http.MethodGet, "/health?verbose=true", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decodeBody[HealthResponse](t, rec)
		assert.Equal(t, "degraded", resp.Status)
		assert.Contains(t, resp.Components["database"], "db down")
	})
}

func TestTokens(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h, http.MethodGet, "/registered-tokens", "")
	assert.Equal(t, []string{}, decodeBody[TokensResponse](t, rec).Tokens)

	rec = do(t, h, http.MethodPost, "/register-token", `{"token":"tok-a"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/register-token", `{"token":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/register-token", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid json", decodeBody[ErrorResponse](t, rec).Detail)

	rec = do(t, h, http.MethodGet, "/registered-tokens", "")
	assert.Equal(t, []string{"tok-a"}, decodeBody[TokensResponse](t, rec).Tokens)
}

func TestSendNotification(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
		want    int
	}{
		{"delivered", nil, http.StatusOK},
		{"no gateway", apperr.ErrGatewayUnavailable, http.StatusServiceUnavailable},
		{"rejected token", &apperr.GatewayError{Outcome: "rejected", StatusCode: 404, Detail: "gone"}, http.StatusBadGateway},
		{"missing body", apperr.Invalid("body", "body is required"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, b := newTestHandler()
			b.sendErr = tt.sendErr

			rec := do(t, h, http.MethodPost, "/send-notification", `{"token":"t","title":"x","body":"y"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestScheduleNotification(t *testing.T) {
	h, b := newTestHandler()

	rec := do(t, h, http.MethodPost, "/schedule-notification",
		`{"token":"tok-a","title":"Budget","time":"09:00","frequency":"weekly","day_of_week":1,"end_date":"31-12-2025"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ScheduleResponse](t, rec)
	assert.Equal(t, "scheduled_tok_abcd1234", resp.JobID)

	require.Len(t, b.scheduled, 1)
	require.NotNil(t, b.scheduled[0].DayOfWeek)
	assert.Equal(t, 1, *b.scheduled[0].DayOfWeek)
	assert.Equal(t, "31-12-2025", b.scheduled[0].EndDate)

	rec = do(t, h, http.MethodPost, "/schedule-notification", `{"token":"tok-a","title":"Budget","time":"9am","frequency":"daily"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Detail, "HH:MM")
}

func TestJobs(t *testing.T) {
	h, b := newTestHandler()
	b.entries = []scheduler.Entry{{JobID: "j1", Title: "Budget", Trigger: "daily 09:00", NextRun: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}}

	rec := do(t, h, http.MethodGet, "/get-notifications/tok-a", "")
	notes := decodeBody[NotificationsResponse](t, rec)
	assert.Equal(t, 1, notes.Count)
	assert.Equal(t, "tok-a", notes.Notifications[0].Token)

	rec = do(t, h, http.MethodGet, "/get-notifications/nobody", "")
	assert.Equal(t, 0, decodeBody[NotificationsResponse](t, rec).Count)

	rec = do(t, h, http.MethodGet, "/scheduled-jobs", "")
	jobs := decodeBody[JobsResponse](t, rec)
	assert.Equal(t, 1, jobs.TotalJobs)
	assert.Equal(t, "j1", jobs.Jobs[0].JobID)

	rec = do(t, h, http.MethodDelete, "/scheduled-jobs/j1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Job 'j1' cancelled successfully", decodeBody[MessageResponse](t, rec).Message)
	assert.Equal(t, []string{"j1"}, b.cancelled)

	rec = do(t, h, http.MethodDelete, "/scheduled-jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTones(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h, http.MethodGet, "/tones", "")
	tones := decodeBody[TonesResponse](t, rec)
	require.Len(t, tones.Tones, 1)
	assert.Equal(t, "/moods/caring.png", tones.Tones[0].ImageURL)

	rec = do(t, h, http.MethodGet, "/user-tone/tok-a", "")
	assert.True(t, decodeBody[TonePreferenceResponse](t, rec).IsDefault)

	rec = do(t, h, http.MethodPost, "/user-tone", `{"token":"tok-a","tone_id":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/user-tone/tok-a", "")
	pref := decodeBody[TonePreferenceResponse](t, rec)
	assert.False(t, pref.IsDefault)
	assert.Equal(t, uint(1), pref.ToneID)

	rec = do(t, h, http.MethodPost, "/user-tone", `{"token":"tok-a","tone_id":99}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/user-tone", `{"token":"tok-a"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "tone_id is required", decodeBody[ErrorResponse](t, rec).Detail)

	rec = do(t, h, http.MethodGet, "/tone-prompts/1", "")
	assert.Len(t, decodeBody[TonePromptsResponse](t, rec).Prompts, 1)

	rec = do(t, h, http.MethodGet, "/tone-prompts/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/tone-prompts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/random-tone-prompt/3", "")
	assert.Equal(t, RandomPromptResponse{ToneID: 3, Prompt: "hi"}, decodeBody[RandomPromptResponse](t, rec))
}

func TestCORS(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodOptions, "/schedule-notification", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/tones", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	h, _ := newTestHandler()
	h.WithMetrics("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}))

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperr.Invalid("time", "bad")))
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.NotFound("job", "x")))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(apperr.ErrGatewayUnavailable))
	assert.Equal(t, http.StatusConflict, StatusFor(scheduler.ErrJobExists))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperr.Storage("put", errors.New("disk full"))))
}
