package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlevkov/clipdock/internal/adapter/storage/memory"
	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/port"
	"github.com/mlevkov/clipdock/internal/retry"
	"github.com/mlevkov/clipdock/internal/service"
)

const testAPIKey = "test-key"

type stubExtractor struct {
	meta *domain.Metadata
	err  error
}

func (s *stubExtractor) Extract(_ context.Context, _ string) (*domain.Metadata, error) {
	return s.meta, s.err
}

type stubProcessor struct {
	result *domain.JobResult
	err    error
}

func (s *stubProcessor) Process(_ context.Context, _ port.ProcessRequest, _ port.ProgressFunc) (*domain.JobResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &domain.JobResult{FilePath: "/tmp/x.mp4", FileSize: 1, DownloadURL: "/downloads/x.mp4"}, nil
}

type stubUserStore struct {
	users map[string]*domain.User
}

func (s *stubUserStore) HasUser() (bool, error) { return len(s.users) > 0, nil }
func (s *stubUserStore) GetUser(username string) (*domain.User, error) {
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (s *stubUserStore) GetUserByID(id int64) (*domain.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (s *stubUserStore) CreateUser(username, passwordHash string) error {
	if s.users == nil {
		s.users = map[string]*domain.User{}
	}
	s.users[username] = &domain.User{ID: int64(len(s.users) + 1), Username: username, PasswordHash: passwordHash}
	return nil
}
func (s *stubUserStore) UpdatePassword(int64, string) error { return nil }

type testEnv struct {
	server    *Server
	store     port.JobStore
	runner    *service.Runner
	auth      *service.AuthService
	events    *service.EventBus
	downloads string
}

func newTestEnv(t *testing.T, extractor port.MetadataExtractor, proc port.MediaProcessor) *testEnv {
	t.Helper()
	store := memory.NewJobStore()
	events := service.NewEventBus()
	if proc == nil {
		proc = &stubProcessor{}
	}
	runner := service.NewRunner(store, proc, events, service.RetryPolicy{
		MaxAttempts: 1,
		Backoff:     retry.NewBackoff(time.Millisecond, 0, 2.0),
	})
	auth := service.NewAuthService(&stubUserStore{}, "test-secret", []string{testAPIKey})
	require.NoError(t, auth.EnsureAdmin("admin", "pass-123"))

	downloads := t.TempDir()
	sweeper := service.NewSweeper([]service.WatchedDir{
		{Name: "downloads", Path: downloads, MaxAge: time.Hour},
	}, store, time.Hour, time.Hour)

	handlers := NewHandlers(store, extractor, runner, auth, sweeper, events, downloads, "test")
	return &testEnv{
		server:    NewServer(handlers),
		store:     store,
		runner:    runner,
		auth:      auth,
		events:    events,
		downloads: downloads,
	}
}

func (e *testEnv) do(method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testAPIKey)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestAPIKey_Required(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodGet, "/api/video/platforms", "", func(r *http.Request) {
		r.Header.Del("X-API-Key")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "unauthorized", body.Error)
	assert.NotEmpty(t, body.RequestID)
	assert.NotEmpty(t, body.Timestamp)
}

func TestAPIKey_QueryFallback(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodGet, "/api/video/platforms?api_key="+testAPIKey, "", func(r *http.Request) {
		r.Header.Del("X-API-Key")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtract_Success(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{meta: &domain.Metadata{
		ID:       "abc",
		Title:    "Test Clip",
		Platform: "YouTube",
		Qualities: []domain.Quality{
			domain.Quality360p, domain.Quality720p,
		},
		HasAudio: true,
	}}, nil)

	rec := env.do(http.MethodPost, "/api/video/extract", `{"url":"https://youtu.be/abc123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var meta domain.Metadata
	decodeData(t, rec, &meta)
	assert.Equal(t, "Test Clip", meta.Title)
	assert.True(t, meta.HasAudio)
}

func TestExtract_Validation(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	for name, body := range map[string]string{
		"bad json":        `{`,
		"missing url":     `{}`,
		"unsupported url": `{"url":"https://example.com/watch?v=1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/video/extract", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestExtract_FailureMapping(t *testing.T) {
	tests := []struct {
		kind   domain.FailureKind
		status int
	}{
		{domain.FailureTimeout, http.StatusRequestTimeout},
		{domain.FailurePrivate, http.StatusForbidden},
		{domain.FailureUnsupportedURL, http.StatusInternalServerError},
		{domain.FailureStorageFull, http.StatusInsufficientStorage},
		{domain.FailureExtraction, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv(t, &stubExtractor{err: &domain.ProcessFailure{Kind: tt.kind, Message: "nope"}}, nil)
			rec := env.do(http.MethodPost, "/api/video/extract", `{"url":"https://youtu.be/abc123"}`, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDownload_QueuesJob(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodPost, "/api/video/download",
		`{"url":"https://www.tiktok.com/@user/video/123","quality":"720p","remove_watermark":true,"format":"mp4"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp downloadResponse
	decodeData(t, rec, &resp)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "/api/video/status/"+resp.JobID, resp.StatusURL)

	env.runner.Wait()
	job, err := env.store.Get(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, "TikTok", job.Platform)
	assert.True(t, job.RemoveWatermark)
}

func TestDownload_Defaults(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodPost, "/api/video/download", `{"url":"https://youtu.be/abc123"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp downloadResponse
	decodeData(t, rec, &resp)
	job, err := env.store.Get(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.QualityBest, job.Quality)
	assert.Equal(t, domain.FormatMP4, job.Format)
}

func TestDownload_Validation(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	for name, body := range map[string]string{
		"unknown quality":       `{"url":"https://youtu.be/abc","quality":"480p"}`,
		"unknown format":        `{"url":"https://youtu.be/abc","format":"mkv"}`,
		"4K is not requestable": `{"url":"https://youtu.be/abc","quality":"4K"}`,
		"watermark unsupported": `{"url":"https://youtu.be/abc","remove_watermark":true}`,
		"unsupported platform":  `{"url":"https://vimeo.com/123"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/video/download", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	job := domain.NewJob("https://youtu.be/x", "YouTube", domain.QualityBest, false, domain.FormatMP4)
	require.NoError(t, env.store.Put(job))

	rec := env.do(http.MethodGet, "/api/video/status/"+job.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Job
	decodeData(t, rec, &got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.JobStatusQueued, got.Status)

	rec = env.do(http.MethodGet, "/api/video/status/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrDelete(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	queued := domain.NewJob("https://youtu.be/x", "YouTube", domain.QualityBest, false, domain.FormatMP4)
	require.NoError(t, env.store.Put(queued))

	rec := env.do(http.MethodDelete, "/api/video/job/"+queued.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job, err := env.store.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)

	// Now terminal: a second delete removes the record.
	rec = env.do(http.MethodDelete, "/api/video/job/"+queued.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = env.store.Get(queued.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rec = env.do(http.MethodDelete, "/api/video/job/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlatforms(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodGet, "/api/video/platforms", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var platforms []platformInfo
	decodeData(t, rec, &platforms)
	require.Len(t, platforms, 5)

	byName := map[string]platformInfo{}
	for _, p := range platforms {
		byName[p.Name] = p
	}
	assert.True(t, byName["TikTok"].SupportsWatermarkRemoval)
	assert.False(t, byName["YouTube"].SupportsWatermarkRemoval)
	assert.Equal(t, domain.Quality4K, byName["YouTube"].MaxQuality)
}

func TestServeDownload(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.downloads, "clip.mp4"), []byte("media"), 0o644))

	rec := env.do(http.MethodGet, "/downloads/clip.mp4", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "media", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="clip.mp4"`)

	rec = env.do(http.MethodGet, "/downloads/missing.mp4", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginAndAdmin(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"pass-123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var login map[string]string
	decodeData(t, rec, &login)
	require.NotEmpty(t, login["token"])

	rec = env.do(http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "admin routes need a bearer token")

	rec = env.do(http.MethodGet, "/api/admin/stats", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+login["token"])
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminPurgeJobs(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	done := domain.NewJob("https://youtu.be/a", "YouTube", domain.QualityBest, false, domain.FormatMP4)
	require.NoError(t, env.store.Put(done))
	require.NoError(t, env.store.Update(done.ID, func(j *domain.Job) { j.MarkCompleted(&domain.JobResult{}) }))

	active := domain.NewJob("https://youtu.be/b", "YouTube", domain.QualityBest, false, domain.FormatMP4)
	require.NoError(t, env.store.Put(active))

	token, err := env.auth.Login("admin", "pass-123")
	require.NoError(t, err)

	rec := env.do(http.MethodDelete, "/api/admin/jobs", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = env.store.Get(done.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.store.Get(active.ID)
	assert.NoError(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	for _, path := range []string{"/health", "/health/live", "/health/detailed"} {
		rec := env.do(http.MethodGet, path, "", func(r *http.Request) {
			r.Header.Del("X-API-Key")
		})
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestDocs_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodGet, "/api/docs", "", func(r *http.Request) {
		r.Header.Del("X-API-Key")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEvents_TerminalSnapshotClosesStream(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	job := domain.NewJob("https://youtu.be/x", "YouTube", domain.QualityBest, false, domain.FormatMP4)
	require.NoError(t, env.store.Put(job))
	require.NoError(t, env.store.Update(job.ID, func(j *domain.Job) {
		j.MarkCompleted(&domain.JobResult{DownloadURL: "/downloads/x.mp4"})
	}))

	rec := env.do(http.MethodGet, "/api/video/events/"+job.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `"status":"completed"`)
	assert.Contains(t, body, `"progress":100`)
}

func TestEvents_UnknownJob(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodGet, "/api/video/events/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecover_PanicsBecome500(t *testing.T) {
	handler := RequestID(Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRequestID_HeaderEchoed(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{}, nil)

	rec := env.do(http.MethodGet, "/health", "", func(r *http.Request) {
		r.Header.Set("X-Request-ID", "req-42")
	})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = env.do(http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
