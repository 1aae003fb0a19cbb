package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/notification"
	"github.com/gravadigital/billetterie-api/internal/services"
	"github.com/gravadigital/billetterie-api/internal/storage/memory"
	"github.com/gravadigital/billetterie-api/internal/storage/objects"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, notification.Request) {}

type stubQR struct{}

func (stubQR) Generate(content string) ([]byte, error) { return []byte(content), nil }

type stubSigner struct{}

func (stubSigner) Sign(content string) (string, error) {
	return "sig" + strings.NewReplacer("@", "", ".", "").Replace(content), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    int             `json:"code"`
	Details json.RawMessage `json:"details"`
}

type testAPI struct {
	router *gin.Engine
	store  *memory.Container
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewContainer()
	v := validation.New(2005)
	events := NewEventHandler(services.NewEventService(store, objects.NewMemoryStore(), v))
	bookers := NewBookerHandler(services.NewBookerService(store, v, stubSigner{}, discardNotifier{}), "https://tickets.example.org")
	registrations := NewRegistrationHandler(services.NewRegistrationService(store, v, discardNotifier{}, stubQR{}, 5), "")
	checkins := NewCheckInHandler(services.NewCheckInService(store))

	r := gin.New()
	r.GET("/img/event/:file", events.GetImage)
	r.POST("/api/bookers", bookers.SignUp)
	r.GET("/api/bookings/:signature", bookers.Booking)
	r.POST("/api/events/:id/registrations", registrations.RegisterParticipants)
	r.POST("/api/activities/:activityId/participants", registrations.RegisterParticipant)
	r.DELETE("/api/activities/:activityId/participants", registrations.RemoveParticipant)
	r.POST("/api/admin/events", events.CreateEvent)
	r.POST("/api/admin/events/:id/activities", events.CreateActivity)
	r.GET("/api/admin/events/:id/status", events.GetEventStatus)
	r.POST("/api/admin/events/:id/image", events.UploadImage)
	r.PUT("/api/admin/checkin", checkins.CheckIn)

	return &testAPI{router: r, store: store}
}

func (api *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (api *testAPI) seed(t *testing.T, maxParticipants, maxWaiting int) (*event.Event, *event.Activity, *participant.Booker) {
	t.Helper()
	ctx := context.Background()

	ev := event.NewEvent("Journée portes ouvertes", "", "Québec", time.Date(2026, 6, 6, 0, 0, 0, 0, time.UTC))
	ev.Active = true
	require.NoError(t, api.store.Events().Create(ctx, ev))

	start, err := ev.AtTime("09:30")
	require.NoError(t, err)
	a := event.NewActivity(ev.ID, "Atelier", "", start, maxParticipants, maxWaiting)
	require.NoError(t, api.store.Activities().Create(ctx, a))

	b := participant.NewBooker("grace@example.org", "Grace", "Hopper", "siggraceexampleorg")
	require.NoError(t, api.store.Bookers().Create(ctx, b))
	return ev, a, b
}

func registrationBody(first string) gin.H {
	return gin.H{
		"first_name":       first,
		"last_name":        "Hopper",
		"year_of_birth":    2012,
		"booker_signature": "siggraceexampleorg",
	}
}

func TestRegisterParticipant_StatusMapping(t *testing.T) {
	api := newTestAPI(t)
	_, a, _ := api.seed(t, 1, 1)
	path := "/api/activities/" + a.ID.String() + "/participants"

	w, env := api.do(t, http.MethodPost, path, registrationBody("Ann"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Participant registered", env.Message)

	w, env = api.do(t, http.MethodPost, path, registrationBody("Ben"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Participant added to the waiting list", env.Message)

	var outcome services.RegistrationOutcome
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	assert.True(t, outcome.Waiting)
	assert.Equal(t, 1, outcome.Position)

	w, env = api.do(t, http.MethodPost, path, registrationBody("Cy"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, http.StatusConflict, env.Code)
}

func TestRegisterParticipant_Duplicate(t *testing.T) {
	api := newTestAPI(t)
	_, a, _ := api.seed(t, 5, 0)
	path := "/api/activities/" + a.ID.String() + "/participants"

	w, _ := api.do(t, http.MethodPost, path, registrationBody("Ann"))
	require.Equal(t, http.StatusCreated, w.Code)

	body := registrationBody("ANN")
	body["last_name"] = "hopper"
	w, env := api.do(t, http.MethodPost, path, body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, env.Error, "already registered")
}

func TestRegisterParticipant_Errors(t *testing.T) {
	api := newTestAPI(t)
	_, a, _ := api.seed(t, 5, 0)

	t.Run("invalid activity id", func(t *testing.T) {
		w, env := api.do(t, http.MethodPost, "/api/activities/nope/participants", registrationBody("Ann"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, string(env.Details), "activityId")
	})

	t.Run("unknown activity", func(t *testing.T) {
		w, _ := api.do(t, http.MethodPost, "/api/activities/"+uuid.NewString()+"/participants", registrationBody("Ann"))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown booker", func(t *testing.T) {
		body := registrationBody("Ann")
		body["booker_signature"] = "missing"
		w, _ := api.do(t, http.MethodPost, "/api/activities/"+a.ID.String()+"/participants", body)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("field validation", func(t *testing.T) {
		body := registrationBody(" ")
		body["year_of_birth"] = 1990
		w, env := api.do(t, http.MethodPost, "/api/activities/"+a.ID.String()+"/participants", body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Error)
		assert.Contains(t, string(env.Details), "first_name")
		assert.Contains(t, string(env.Details), "year_of_birth")
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/activities/"+a.ID.String()+"/participants", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRegisterParticipants_Batch(t *testing.T) {
	api := newTestAPI(t)
	ev, a, _ := api.seed(t, 1, 0)

	items := []gin.H{
		{"activity_id": a.ID, "first_name": "Ann", "last_name": "Lee", "year_of_birth": 2010},
		{"activity_id": a.ID, "first_name": "Ben", "last_name": "Lee", "year_of_birth": 2011},
	}
	w, env := api.do(t, http.MethodPost, "/api/events/"+ev.ID.String()+"/registrations", gin.H{
		"booker_signature": "siggraceexampleorg",
		"registrations":    items,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var outcome services.BatchOutcome
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	require.Len(t, outcome.Registered, 1)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, 1, outcome.Skipped[0].Index)
	assert.Equal(t, services.SkipCapacityExceeded, outcome.Skipped[0].Reason)
}

func TestRegisterParticipants_BatchTooLarge(t *testing.T) {
	api := newTestAPI(t)
	ev, a, _ := api.seed(t, 10, 0)

	items := make([]gin.H, 6)
	for i := range items {
		items[i] = gin.H{"activity_id": a.ID, "first_name": "P", "last_name": "Lee", "year_of_birth": 2010}
	}
	w, _ := api.do(t, http.MethodPost, "/api/events/"+ev.ID.String()+"/registrations", gin.H{
		"booker_signature": "siggraceexampleorg",
		"registrations":    items,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveParticipant_PromotesWaiting(t *testing.T) {
	api := newTestAPI(t)
	_, a, _ := api.seed(t, 1, 1)
	path := "/api/activities/" + a.ID.String() + "/participants"

	w, _ := api.do(t, http.MethodPost, path, registrationBody("Ann"))
	require.Equal(t, http.StatusCreated, w.Code)
	_, env := api.do(t, http.MethodPost, path, registrationBody("Ben"))
	var second services.RegistrationOutcome
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.True(t, second.Waiting)

	w, _ = api.do(t, http.MethodDelete, path, gin.H{
		"first_name":       "ann",
		"last_name":        "HOPPER",
		"year_of_birth":    2012,
		"booker_signature": "siggraceexampleorg",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	stored, err := api.store.Activities().GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RegularCount())
	assert.Equal(t, 0, stored.WaitingCount())
	regular := stored.NonWaitingParticipants()
	require.Len(t, regular, 1)
	assert.Equal(t, second.Participant.ID, regular[0].ParticipantID)

	w, _ = api.do(t, http.MethodDelete, path, gin.H{
		"first_name":       "ann",
		"last_name":        "hopper",
		"booker_signature": "siggraceexampleorg",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckIn(t *testing.T) {
	api := newTestAPI(t)
	_, a, _ := api.seed(t, 2, 0)

	_, env := api.do(t, http.MethodPost, "/api/activities/"+a.ID.String()+"/participants", registrationBody("Ann"))
	var reg services.RegistrationOutcome
	require.NoError(t, json.Unmarshal(env.Data, &reg))

	w, env := api.do(t, http.MethodPut, "/api/admin/checkin", gin.H{
		"activity_id":    a.ID,
		"participant_id": reg.Participant.ID,
		"checked":        true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Participant successfully checked in", env.Message)

	var outcome services.CheckInOutcome
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	assert.True(t, outcome.CheckedIn)
	assert.NotNil(t, outcome.CheckInTime)

	w, env = api.do(t, http.MethodPut, "/api/admin/checkin", gin.H{
		"activity_id":    a.ID,
		"participant_id": reg.Participant.ID,
		"checked":        false,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Participant check-in removed", env.Message)

	w, _ = api.do(t, http.MethodPut, "/api/admin/checkin", gin.H{
		"activity_id":    a.ID,
		"participant_id": uuid.New(),
		"checked":        true,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPut, "/api/admin/checkin", gin.H{"checked": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignUpAndBooking(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, 2, 0)

	body := gin.H{"first_name": "Alan", "last_name": "Turing", "email": "Alan@Example.org"}
	w, env := api.do(t, http.MethodPost, "/api/bookers", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Email     string `json:"email"`
		Signature string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "alan@example.org", created.Email)
	require.NotEmpty(t, created.Signature)

	w, _ = api.do(t, http.MethodPost, "/api/bookers", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = api.do(t, http.MethodGet, "/api/bookings/"+created.Signature, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view services.BookingView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "alan@example.org", view.Booker.Email)
	assert.NotNil(t, view.Booker.ValidationTime)

	w, _ = api.do(t, http.MethodGet, "/api/bookings/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateEventAndActivity(t *testing.T) {
	api := newTestAPI(t)

	w, env := api.do(t, http.MethodPost, "/api/admin/events", gin.H{
		"title":    "Festival",
		"location": "Lyon",
		"date":     "2026-07-14",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var ev event.Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.False(t, ev.Active)

	w, _ = api.do(t, http.MethodPost, "/api/admin/events", gin.H{"title": "Festival", "date": "14/07/2026"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/admin/events/"+ev.ID.String()+"/activities", gin.H{
		"title":             "Concert",
		"time":              "20:30",
		"max_participants":  100,
		"max_waiting_queue": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = api.do(t, http.MethodGet, "/api/admin/events/"+ev.ID.String()+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status services.EventStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Len(t, status.Activities, 1)
	assert.Equal(t, event.StatusOpen, status.Activities[0].Status)

	w, env = api.do(t, http.MethodGet, "/api/admin/events/"+ev.ID.String()+"/status?status=open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status = services.EventStatus{}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Len(t, status.Activities, 1)

	w, env = api.do(t, http.MethodGet, "/api/admin/events/"+ev.ID.String()+"/status?status=CLOSED", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status = services.EventStatus{}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Empty(t, status.Activities)

	w, _ = api.do(t, http.MethodGet, "/api/admin/events/"+ev.ID.String()+"/status?status=full", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAndServeImage(t *testing.T) {
	api := newTestAPI(t)
	ev, _, _ := api.seed(t, 1, 0)
	png := []byte("\x89PNG\r\n\x1a\nfake")

	upload := func(contentType string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="poster.png"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(png)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/admin/events/"+ev.ID.String()+"/image", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, upload("application/pdf").Code)
	require.Equal(t, http.StatusOK, upload("image/png").Code)

	req := httptest.NewRequest(http.MethodGet, "/img/event/"+ev.ID.String()+".png", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())

	req = httptest.NewRequest(http.MethodGet, "/img/event/passwd.png", nil)
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
