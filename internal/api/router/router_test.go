package router

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/api/dto"
	"github.com/cuongbtq/labor-dispatch/internal/api/handler"
	"github.com/cuongbtq/labor-dispatch/internal/dispatch"
	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/events"
	"github.com/cuongbtq/labor-dispatch/internal/realtime"
	"github.com/cuongbtq/labor-dispatch/internal/sobriety"
	"github.com/cuongbtq/labor-dispatch/internal/storage/memory"
	"github.com/cuongbtq/labor-dispatch/internal/vision"
	"github.com/cuongbtq/labor-dispatch/internal/wallet"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	passedVerdict = `{"status":"passed","confidence":0.97}`
	failedVerdict = `{"status":"failed","findings":["unsteady gaze"]}`
)

var testImage = base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

type stack struct {
	engine   *gin.Engine
	registry *realtime.Registry
}

func newStack(t *testing.T, verdict string, checks map[string]HealthCheck, tweaks ...func(*handler.Dependencies)) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := memory.NewJobStore()
	profiles := memory.NewProfileStore()
	registry := realtime.NewRegistry(logger)

	gate := sobriety.NewGate(&sobriety.Config{
		Store:    memory.NewSobrietyStore(),
		Analyzer: vision.Static{Output: verdict},
		Logger:   logger,
	})
	ledger := wallet.NewLedger(&wallet.Config{
		Store:              memory.NewPaymentStore(),
		Logger:             logger,
		PlatformFeePercent: 10,
		MinWithdrawal:      50000,
	})

	notifier := dispatch.NewNotifier(&dispatch.NotifierConfig{
		Pusher:      registry,
		Logger:      logger,
		TrackOffers: true,
	})
	arbiter := dispatch.NewArbiter(&dispatch.ArbiterConfig{
		Jobs:      jobs,
		Profiles:  profiles,
		Clearance: gate,
		Publisher: events.NewDirectSettler(ledger, logger),
		Notifier:  notifier,
		Logger:    logger,
	})

	deps := &handler.Dependencies{
		Logger:   logger,
		Jobs:     dispatch.NewService(jobs, dispatch.NewMatcher(profiles), notifier, logger),
		Arbiter:  arbiter,
		Profiles: profiles,
		Gate:     gate,
		Ledger:   ledger,
		Registry: registry,
	}
	for _, tweak := range tweaks {
		tweak(deps)
	}

	return &stack{
		engine:   SetupRouter(deps, Options{ServiceName: "labor-dispatch-api", HealthChecks: checks}),
		registry: registry,
	}
}

func (s *stack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *stack) addLaborer(t *testing.T, id string, skills ...string) {
	t.Helper()
	w := s.do(t, http.MethodPut, "/api/v1/laborers/"+id+"/profile", gin.H{"name": id, "skills": skills})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPut, "/api/v1/laborers/"+id+"/availability", gin.H{"status": "available"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (s *stack) postJob(t *testing.T, skill string) dto.CreateJobResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/jobs", gin.H{
		"customerId": "cust-1",
		"title":      "Pour foundation",
		"location":   "District 7",
		"skillsNeeded": []gin.H{
			{"skill": skill, "quantity": 1, "rate": 700000},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.CreateJobResponse](t, w)
}

func TestHealth(t *testing.T) {
	s := newStack(t, passedVerdict, map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
	})
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	s = newStack(t, passedVerdict, map[string]HealthCheck{
		"rabbitmq": func(ctx context.Context) error { return errors.New("not connected") },
	})
	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}

func TestRequestID(t *testing.T) {
	s := newStack(t, passedVerdict, nil)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, "trace-42", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	s := newStack(t, passedVerdict, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestJobLifecycle(t *testing.T) {
	s := newStack(t, passedVerdict, nil)
	s.addLaborer(t, "laborer-a", "mason")
	s.addLaborer(t, "laborer-b", "mason", "helper")
	s.addLaborer(t, "laborer-c", "plumber")

	posted := s.postJob(t, "mason")
	assert.ElementsMatch(t, []string{"laborer-a", "laborer-b"}, posted.Candidates)
	for _, d := range posted.Deliveries {
		assert.False(t, d.Delivered)
		assert.Equal(t, string(realtime.NotConnected), d.Reason)
	}
	jobPath := "/api/v1/jobs/" + posted.Job.ID

	w := s.do(t, http.MethodPost, jobPath+"/accept", gin.H{"laborerId": "laborer-a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.JobStatusAssigned, decode[domain.JobOffer](t, w).Status)

	w = s.do(t, http.MethodPost, jobPath+"/accept", gin.H{"laborerId": "laborer-b"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handler.CodeAlreadyAssigned, decode[dto.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodGet, "/api/v1/laborers/laborer-a", nil)
	assert.Equal(t, domain.AvailabilityBusy, decode[domain.LaborerProfile](t, w).Availability)

	w = s.do(t, http.MethodPost, jobPath+"/start", gin.H{"laborerId": "laborer-b"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, jobPath+"/start", gin.H{"laborerId": "laborer-a"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, handler.CodeSobrietyRequired, decode[dto.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check", gin.H{
		"laborerId": "laborer-a",
		"jobId":     posted.Job.ID,
		"image":     testImage,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.SobrietyPassed, decode[domain.SobrietyCheck](t, w).Status)

	w = s.do(t, http.MethodPost, jobPath+"/start", gin.H{"laborerId": "laborer-a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, jobPath+"/complete", gin.H{"customerId": "cust-1"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, jobPath+"/submit", gin.H{"laborerId": "laborer-a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, jobPath+"/complete", gin.H{"customerId": "cust-2"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, jobPath+"/complete", gin.H{"customerId": "cust-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.JobStatusCompleted, decode[domain.JobOffer](t, w).Status)

	w = s.do(t, http.MethodPost, jobPath+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/wallet/laborer-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[wallet.Summary](t, w)
	require.Len(t, summary.Payments, 1)
	assert.Equal(t, int64(630000), summary.Pending)
	assert.Equal(t, int64(70000), summary.Payments[0].PlatformFee)
	assert.False(t, summary.CanWithdraw)

	w = s.do(t, http.MethodPost, "/api/v1/admin/payments/"+summary.Payments[0].ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/admin/payments/"+summary.Payments[0].ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	summary = decode[wallet.Summary](t, s.do(t, http.MethodGet, "/api/v1/wallet/laborer-a", nil))
	assert.Equal(t, int64(630000), summary.Available)
	assert.True(t, summary.CanWithdraw)

	w = s.do(t, http.MethodGet, "/api/v1/laborers/laborer-a", nil)
	assert.Equal(t, domain.AvailabilityAvailable, decode[domain.LaborerProfile](t, w).Availability)
}

func TestAcceptRace(t *testing.T) {
	s := newStack(t, passedVerdict, nil)
	const laborers = 8
	ids := make([]string, laborers)
	for i := range ids {
		ids[i] = "laborer-" + string(rune('a'+i))
		s.addLaborer(t, ids[i], "helper")
	}
	posted := s.postJob(t, "helper")

	codes := make([]int, laborers)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			codes[i] = s.do(t, http.MethodPost, "/api/v1/jobs/"+posted.Job.ID+"/accept", gin.H{"laborerId": id}).Code
		}(i, id)
	}
	wg.Wait()

	won := 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			won++
		case http.StatusBadRequest:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, won)
}

func TestJobRequestValidation(t *testing.T) {
	s := newStack(t, passedVerdict, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{
			name:       "no skills",
			method:     http.MethodPost,
			path:       "/api/v1/jobs",
			body:       gin.H{"customerId": "c", "title": "t", "skillsNeeded": []gin.H{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero quantity",
			method:     http.MethodPost,
			path:       "/api/v1/jobs",
			body:       gin.H{"customerId": "c", "title": "t", "skillsNeeded": []gin.H{{"skill": "mason", "quantity": 0}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "job id not a uuid",
			method:     http.MethodGet,
			path:       "/api/v1/jobs/J1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown job",
			method:     http.MethodGet,
			path:       "/api/v1/jobs/0b7c1c6e-6a4f-4a53-9d0e-2f1f6c9d0a11",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "accept unknown job",
			method:     http.MethodPost,
			path:       "/api/v1/jobs/0b7c1c6e-6a4f-4a53-9d0e-2f1f6c9d0a11/accept",
			body:       gin.H{"laborerId": "laborer-a"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "accept without laborer",
			method:     http.MethodPost,
			path:       "/api/v1/jobs/0b7c1c6e-6a4f-4a53-9d0e-2f1f6c9d0a11/accept",
			body:       gin.H{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown status filter",
			method:     http.MethodGet,
			path:       "/api/v1/jobs?status=finished",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad cursor",
			method:     http.MethodGet,
			path:       "/api/v1/jobs?cursor=***",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad availability",
			method:     http.MethodPut,
			path:       "/api/v1/laborers/laborer-a/availability",
			body:       gin.H{"status": "asleep"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "availability of unknown laborer",
			method:     http.MethodPut,
			path:       "/api/v1/laborers/nobody/availability",
			body:       gin.H{"status": "available"},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestListJobs_Pagination(t *testing.T) {
	s := newStack(t, passedVerdict, nil)
	posted := map[string]bool{}
	for i := 0; i < 3; i++ {
		posted[s.postJob(t, "mason").Job.ID] = true
		time.Sleep(2 * time.Millisecond)
	}
	s.postJob(t, "plumber")

	seen := map[string]bool{}
	path := "/api/v1/jobs?status=pending&skill=mason&page_size=2"

	w := s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[dto.ListJobsResponse](t, w)
	require.Len(t, page.Jobs, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.False(t, page.Jobs[0].CreatedAt.Before(page.Jobs[1].CreatedAt))
	for _, j := range page.Jobs {
		seen[j.ID] = true
	}

	w = s.do(t, http.MethodGet, path+"&cursor="+page.NextCursor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page = decode[dto.ListJobsResponse](t, w)
	require.Len(t, page.Jobs, 1)
	assert.Empty(t, page.NextCursor)
	seen[page.Jobs[0].ID] = true

	assert.Equal(t, posted, seen)
}

func TestSobrietyManualReview(t *testing.T) {
	s := newStack(t, failedVerdict, nil)
	submit := gin.H{"laborerId": "laborer-a", "image": "data:image/png;base64," + testImage}

	w := s.do(t, http.MethodPost, "/api/v1/sobriety-check", submit)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	check := decode[domain.SobrietyCheck](t, w)
	assert.Equal(t, domain.SobrietyFailed, check.Status)
	require.NotNil(t, check.CooldownUntil)
	assert.True(t, strings.HasPrefix(check.ImageReference, "sha256:"))

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check", submit)
	require.Equal(t, http.StatusForbidden, w.Code)
	cooldown := decode[dto.CooldownResponse](t, w)
	assert.Equal(t, handler.CodeCooldownActive, cooldown.Error)
	assert.Greater(t, cooldown.RemainingSeconds, int64(5*3600))

	w = s.do(t, http.MethodGet, "/api/v1/sobriety-check/status/laborer-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[map[string]any](t, w)
	assert.Equal(t, false, status["canSubmit"])
	assert.Equal(t, true, status["canRequestReview"])
	assert.Greater(t, status["cooldownRemainingSeconds"], float64(0))

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check/request-review", gin.H{"laborerId": "laborer-a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.SobrietyPendingReview, decode[domain.SobrietyCheck](t, w).Status)

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check/request-review", gin.H{"laborerId": "laborer-a"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check", submit)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handler.CodeReviewPending, decode[dto.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodGet, "/api/v1/admin/sobriety-reviews", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reviews := decode[struct {
		Reviews []domain.SobrietyCheck `json:"reviews"`
	}](t, w)
	require.Len(t, reviews.Reviews, 1)
	assert.Equal(t, check.ID, reviews.Reviews[0].ID)
	assert.Contains(t, string(reviews.Reviews[0].AnalysisResult), "unsteady gaze")

	w = s.do(t, http.MethodPost, "/api/v1/admin/sobriety-reviews/"+check.ID, gin.H{"reason": "missing approve"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/sobriety-reviews/"+check.ID, gin.H{
		"approve":  true,
		"reason":   "glare on camera",
		"reviewer": "admin-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reviewed := decode[domain.SobrietyCheck](t, w)
	assert.Equal(t, domain.SobrietyPassed, reviewed.Status)
	assert.NotNil(t, reviewed.ReviewedAt)

	w = s.do(t, http.MethodGet, "/api/v1/sobriety-check/status/laborer-a", nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["cleared"])
}

func TestSobrietySubmitValidation(t *testing.T) {
	s := newStack(t, passedVerdict, nil)

	w := s.do(t, http.MethodPost, "/api/v1/sobriety-check", gin.H{"laborerId": "laborer-a", "image": "not base64!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check", gin.H{"image": testImage})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check/request-review", gin.H{"laborerId": "laborer-z"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check", gin.H{"laborerId": "laborer-a", "jobId": "not-a-uuid", "image": testImage})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "jobId must be a valid UUID")

	w = s.do(t, http.MethodGet, "/api/v1/sobriety-check/status/laborer-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"latest"`)

	w = s.do(t, http.MethodPost, "/api/v1/sobriety-check", gin.H{
		"laborerId": "laborer-a",
		"jobId":     "0f8fad5b-d9cb-469f-a165-70867728950e",
		"image":     testImage,
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebSocketOffers(t *testing.T) {
	s := newStack(t, passedVerdict, nil)
	s.addLaborer(t, "laborer-a", "mason")
	s.addLaborer(t, "laborer-b", "mason")

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	dial := func(identity string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })

		require.NoError(t, conn.WriteJSON(realtime.Message{Type: realtime.TypeRegister, UserID: identity}))
		msg := readMessage(t, conn)
		require.Equal(t, realtime.TypeRegistered, msg.Type)
		require.Equal(t, identity, msg.UserID)
		return conn
	}

	connA := dial("laborer-a")
	connB := dial("laborer-b")
	require.Eventually(t, func() bool { return s.registry.Connected() == 2 }, time.Second, 10*time.Millisecond)

	posted := s.postJob(t, "mason")
	for _, d := range posted.Deliveries {
		assert.True(t, d.Delivered, d.LaborerID)
	}

	offerA := readMessage(t, connA)
	assert.Equal(t, realtime.TypeNewJob, offerA.Type)
	require.NotNil(t, offerA.Job)
	assert.Equal(t, posted.Job.ID, offerA.Job.ID)
	assert.Equal(t, realtime.TypeNewJob, readMessage(t, connB).Type)

	w := s.do(t, http.MethodPost, "/api/v1/jobs/"+posted.Job.ID+"/accept", gin.H{"laborerId": "laborer-a"})
	require.Equal(t, http.StatusOK, w.Code)

	taken := readMessage(t, connB)
	assert.Equal(t, realtime.TypeJobTaken, taken.Type)
	assert.Equal(t, posted.Job.ID, taken.JobID)

	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, realtime.TypeError, readMessage(t, connA).Type)

	require.NoError(t, connA.WriteJSON(realtime.Message{Type: realtime.TypePing}))
	assert.Equal(t, realtime.TypePong, readMessage(t, connA).Type)

	connA.Close()
	require.Eventually(t, func() bool { return !s.registry.IsConnected("laborer-a") }, time.Second, 10*time.Millisecond)
	assert.True(t, s.registry.IsConnected("laborer-b"))
}

func TestWebSocketDeadlinesIgnoreInjectedClock(t *testing.T) {
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStack(t, passedVerdict, nil, func(deps *handler.Dependencies) {
		deps.Now = func() time.Time { return past }
		deps.WebSocket.RegisterTimeout = time.Second
		deps.WebSocket.PongWait = time.Second
	})

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(realtime.Message{Type: realtime.TypeRegister, UserID: "laborer-a"}))
	assert.Equal(t, realtime.TypeRegistered, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(realtime.Message{Type: realtime.TypePing}))
	assert.Equal(t, realtime.TypePong, readMessage(t, conn).Type)
	assert.True(t, s.registry.IsConnected("laborer-a"))
}

func readMessage(t *testing.T, conn *websocket.Conn) realtime.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}
