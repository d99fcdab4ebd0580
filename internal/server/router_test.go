package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hirewire/resumeq/internal/auth"
	"github.com/hirewire/resumeq/internal/config"
	"github.com/hirewire/resumeq/internal/jobs"
	"github.com/hirewire/resumeq/internal/notify"
	"github.com/hirewire/resumeq/internal/server/middleware"
	"github.com/hirewire/resumeq/mocks"
)

type routerFixture struct {
	cfg      *config.Config
	router   http.Handler
	store    *mocks.MockJobStore
	notifier *mocks.MockNotifier
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := mocks.NewMockJobStore(ctrl)
	files := mocks.NewMockFileSource(ctrl)
	sender := mocks.NewMockWebhookSender(ctrl)
	endpoint := mocks.NewMockWebhookConfig(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)

	cfg := &config.Config{
		PublicBaseURL:   "https://ats.example.com",
		SchedulerSecret: "sched-secret",
		SessionSecret:   "sess-secret",
	}
	processor := jobs.NewProcessor(cfg, store, files, sender, endpoint, notifier, logger)

	router := NewRouter(cfg, Deps{
		Processor: processor,
		Store:     store,
		Notifier:  notifier,
		Files:     files,
		Hub:       notify.NewHub(),
	}, logger)

	return &routerFixture{cfg: cfg, router: router, store: store, notifier: notifier}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealth(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouterSchedulerEndpointRequiresSecret(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/queue/process", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/process", nil)
	req.Header.Set(middleware.SchedulerSecretHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestRouterSchedulerEndpointWithSecret(t *testing.T) {
	f := newRouterFixture(t)

	f.store.EXPECT().ClaimNextQueued(gomock.Any()).Return(nil, nil)
	// An empty poll still publishes its queue.polled event.
	f.notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/process", nil)
	req.Header.Set(middleware.SchedulerSecretHeader, "sched-secret")
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "No queued jobs", body["message"])
}

func TestRouterUserEndpointsRequireSession(t *testing.T) {
	f := newRouterFixture(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/queue/blocking"},
		{http.MethodGet, "/api/v1/queue/jobs"},
		{http.MethodPut, "/api/v1/settings/webhook"},
	} {
		rec := f.do(httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestRouterSessionTokenAccepted(t *testing.T) {
	f := newRouterFixture(t)

	f.store.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)

	token := auth.NewSigner(f.cfg.SessionSecret).Sign("user-42", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	assert.Equal(t, http.StatusOK, f.do(req).Code)
}
