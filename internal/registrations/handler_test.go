package registrations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/notifications/internal/metrics"
	"github.com/aura-webinar/notifications/internal/models"
)

type fakeStore struct {
	webinar     *models.Webinar
	webinarErr  error
	reg         *models.Registration
	created     bool
	regErr      error
	activeCount int

	gotEmail   string
	gotProfile Profile
}

func (f *fakeStore) GetOrCreateWebinar(_ context.Context, externalID, topic string, opts WebinarOpts) (*models.Webinar, error) {
	if f.webinarErr != nil {
		return nil, f.webinarErr
	}
	if f.webinar == nil {
		f.webinar = &models.Webinar{ID: uuid.New(), ExternalID: externalID, Topic: topic, Capacity: opts.Capacity}
	}
	return f.webinar, nil
}

func (f *fakeStore) GetRegistrationByWebinarAndEmail(_ context.Context, _ uuid.UUID, email string) (*models.Registration, error) {
	if f.reg != nil && f.reg.Email == NormalizeEmail(email) {
		return f.reg, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateOrGetRegistration(_ context.Context, webinarID uuid.UUID, email string, p Profile) (*models.Registration, bool, error) {
	if f.regErr != nil {
		return nil, false, f.regErr
	}
	f.gotEmail = email
	f.gotProfile = p
	if f.reg == nil {
		f.reg = &models.Registration{
			ID:        uuid.New(),
			WebinarID: webinarID,
			Email:     NormalizeEmail(email),
			FirstName: p.FirstName,
			Code:      NewRegistrationCode(),
			Status:    models.RegistrationStatusRegistered,
			CreatedAt: time.Now(),
		}
	}
	return f.reg, f.created, nil
}

func (f *fakeStore) CountActive(context.Context, *uuid.UUID) (int, error) {
	return f.activeCount, nil
}

func (f *fakeStore) ListByWebinar(context.Context, uuid.UUID) ([]models.Registration, error) {
	if f.reg == nil {
		return nil, nil
	}
	return []models.Registration{*f.reg}, nil
}

type fakeScheduler struct {
	calls int
}

func (f *fakeScheduler) Schedule(context.Context, *models.Registration, *models.Webinar) {
	f.calls++
}

type fakeCounts struct {
	result metrics.CountResult
}

func (f *fakeCounts) FetchCount(context.Context, string) metrics.CountResult {
	return f.result
}

func newTestRouter(store *fakeStore, sched *fakeScheduler, counts *fakeCounts) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, sched, counts, Defaults{Topic: "Webinar"}, nil)
	r := gin.New()
	r.POST("/register", h.Register)
	r.GET("/registrations/count", h.Count)
	r.GET("/webinars/:id/registrations", h.ListByWebinar)
	return r
}

func postRegister(r *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister_Success(t *testing.T) {
	store := &fakeStore{created: true}
	sched := &fakeScheduler{}
	r := newTestRouter(store, sched, &fakeCounts{})

	w := postRegister(r, map[string]interface{}{
		"webinarId": "q3-launch",
		"email":     "Jane@Example.com",
		"name":      "Jane Doe",
		"company":   "Acme",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			RegistrationID string `json:"registrationId"`
			WebinarID      string `json:"webinarId"`
			Email          string `json:"email"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Regexp(t, `^WEB-\d+-[A-Z0-9]{9}$`, body.Data.RegistrationID)
	assert.Equal(t, "q3-launch", body.Data.WebinarID)

	// First name derived from the full name, scheduling ran once.
	assert.Equal(t, "Jane", store.gotProfile.FirstName)
	assert.Equal(t, "Acme", store.gotProfile.Company)
	assert.Equal(t, 1, sched.calls)
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing webinarId", map[string]interface{}{"email": "a@b.com", "name": "A"}},
		{"missing email", map[string]interface{}{"webinarId": "x", "name": "A"}},
		{"malformed email", map[string]interface{}{"webinarId": "x", "email": "not-an-email", "name": "A"}},
		{"missing name", map[string]interface{}{"webinarId": "x", "email": "a@b.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &fakeScheduler{}
			r := newTestRouter(&fakeStore{created: true}, sched, &fakeCounts{})
			w := postRegister(r, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, sched.calls)
		})
	}
}

func TestRegister_DuplicateIsIdempotentSuccess(t *testing.T) {
	existing := &models.Registration{
		ID:        uuid.New(),
		Email:     "jane@example.com",
		FirstName: "Jane",
		Code:      "WEB-1735689600000-4K7Q2M9XA",
		CreatedAt: time.Now(),
	}
	store := &fakeStore{reg: existing, created: false}
	sched := &fakeScheduler{}
	r := newTestRouter(store, sched, &fakeCounts{})

	w := postRegister(r, map[string]interface{}{
		"webinarId": "q3-launch",
		"email":     "jane@example.com",
		"name":      "Jane Doe",
	})

	// Replay: same success shape, existing registration ID, no re-scheduling.
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), existing.Code)
	assert.Equal(t, 0, sched.calls)
}

func TestRegister_CapacityFull(t *testing.T) {
	store := &fakeStore{
		webinar:     &models.Webinar{ID: uuid.New(), ExternalID: "q3-launch", Capacity: 100},
		activeCount: 100,
		created:     true,
	}
	sched := &fakeScheduler{}
	r := newTestRouter(store, sched, &fakeCounts{})

	w := postRegister(r, map[string]interface{}{
		"webinarId": "q3-launch",
		"email":     "jane@example.com",
		"name":      "Jane Doe",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, sched.calls)
}

func TestRegister_DuplicateAtCapacityStillSucceeds(t *testing.T) {
	webinarID := uuid.New()
	existing := &models.Registration{
		ID:        uuid.New(),
		WebinarID: webinarID,
		Email:     "jane@example.com",
		FirstName: "Jane",
		Code:      "WEB-1735689600000-4K7Q2M9XA",
		CreatedAt: time.Now(),
	}
	// The webinar is full, but one of those seats is the caller's own row.
	store := &fakeStore{
		webinar:     &models.Webinar{ID: webinarID, ExternalID: "q3-launch", Capacity: 100},
		reg:         existing,
		activeCount: 100,
	}
	sched := &fakeScheduler{}
	r := newTestRouter(store, sched, &fakeCounts{})

	w := postRegister(r, map[string]interface{}{
		"webinarId": "q3-launch",
		"email":     "Jane@Example.com",
		"name":      "Jane Doe",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), existing.Code)
	assert.Equal(t, 0, sched.calls)
}

func TestCount_AlwaysSucceeds(t *testing.T) {
	counts := &fakeCounts{result: metrics.CountResult{Count: 42, Source: metrics.SourceFallback}}
	r := newTestRouter(&fakeStore{}, &fakeScheduler{}, counts)

	req := httptest.NewRequest(http.MethodGet, "/registrations/count?webinarId=q3-launch", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Count  int    `json:"count"`
			Source string `json:"source"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 42, body.Data.Count)
	assert.Equal(t, "fallback", body.Data.Source)
}

func TestListByWebinar_InvalidID(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeScheduler{}, &fakeCounts{})
	req := httptest.NewRequest(http.MethodGet, "/webinars/not-a-uuid/registrations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
