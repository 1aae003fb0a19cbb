package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/handlers"
	"github.com/gravadigital/billetterie-api/internal/notification"
	"github.com/gravadigital/billetterie-api/internal/qrcode"
	"github.com/gravadigital/billetterie-api/internal/services"
	"github.com/gravadigital/billetterie-api/internal/signature"
	"github.com/gravadigital/billetterie-api/internal/storage/memory"
	"github.com/gravadigital/billetterie-api/internal/storage/objects"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notification.Request) {}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.GinMode = "test"
	cfg.CORS.AllowOrigins = "https://tickets.example.org"

	signer, err := signature.NewEphemeralSigner()
	require.NoError(t, err)

	store := memory.NewContainer()
	v := validation.New(2005)
	return New(cfg, store, Handlers{
		Events:        handlers.NewEventHandler(services.NewEventService(store, objects.NewMemoryStore(), v)),
		Bookers:       handlers.NewBookerHandler(services.NewBookerService(store, v, signer, nopNotifier{}), ""),
		Registrations: handlers.NewRegistrationHandler(services.NewRegistrationService(store, v, nopNotifier{}, qrcode.NewGenerator(), 20), ""),
		CheckIns:      handlers.NewCheckInHandler(services.NewCheckInService(store)),
	})
}

func TestPing(t *testing.T) {
	router := newTestServer(t).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestStopBeforeStart(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start kept serving after Stop")
	}
}

func TestRoutesAreMounted(t *testing.T) {
	router := newTestServer(t).Router()

	routes := map[string]bool{}
	for _, r := range router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"POST /api/bookers",
		"POST /api/bookers/check-returning",
		"GET /api/bookings/:signature",
		"POST /api/activities/:activityId/participants",
		"DELETE /api/activities/:activityId/participants",
		"POST /api/events/:id/registrations",
		"GET /img/event/:file",
		"POST /api/admin/events/:id/activate",
		"GET /api/admin/events/:id/status",
		"POST /api/admin/events/:id/image",
		"PUT /api/admin/events/:id/activities/:activityId",
		"DELETE /api/admin/activities/:activityId/participants/:participantId",
		"PUT /api/admin/checkin",
		"GET /api/admin/bookings/:signature",
		"PUT /api/admin/bookers/:email",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/bookers", nil)
	req.Header.Set("Origin", "https://tickets.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://tickets.example.org", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNoActiveEvent(t *testing.T) {
	router := newTestServer(t).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/active", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
