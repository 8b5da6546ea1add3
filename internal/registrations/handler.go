package registrations

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/notifications/internal/metrics"
	"github.com/aura-webinar/notifications/internal/models"
	"github.com/aura-webinar/notifications/pkg/response"
)

// Store is the registration persistence surface the handler needs.
// *Repository implements it.
type Store interface {
	GetOrCreateWebinar(ctx context.Context, externalID, topic string, opts WebinarOpts) (*models.Webinar, error)
	GetRegistrationByWebinarAndEmail(ctx context.Context, webinarID uuid.UUID, email string) (*models.Registration, error)
	CreateOrGetRegistration(ctx context.Context, webinarID uuid.UUID, email string, p Profile) (*models.Registration, bool, error)
	CountActive(ctx context.Context, webinarID *uuid.UUID) (int, error)
	ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.Registration, error)
}

// JobScheduler schedules the notification jobs owed to a new registration.
type JobScheduler interface {
	Schedule(ctx context.Context, reg *models.Registration, w *models.Webinar)
}

// CountFetcher reads registration counts with degradation built in.
type CountFetcher interface {
	FetchCount(ctx context.Context, webinarID string) metrics.CountResult
}

// Defaults are applied when a webinar row is created on first reference.
type Defaults struct {
	Topic    string
	Capacity int
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	store    Store
	sched    JobScheduler
	counts   CountFetcher
	defaults Defaults
	logger   *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(store Store, sched JobScheduler, counts CountFetcher, defaults Defaults, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, sched: sched, counts: counts, defaults: defaults, logger: logger}
}

// RegisterRequest is the body for POST /register. Topic and scheduledAt only
// take effect when the webinar row is created on first reference.
type RegisterRequest struct {
	WebinarID   string     `json:"webinarId" binding:"required"`
	Email       string     `json:"email" binding:"required,email"`
	Name        string     `json:"name" binding:"required"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Company     string     `json:"company,omitempty"`
	Source      string     `json:"source,omitempty"`
	Topic       string     `json:"topic,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// Register handles POST /register. Duplicate submissions for the same
// (webinar, email) return the existing registration as a success; scheduling
// only runs for newly created rows.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	topic := req.Topic
	if topic == "" {
		topic = h.defaults.Topic
	}
	w, err := h.store.GetOrCreateWebinar(ctx, req.WebinarID, topic, WebinarOpts{
		ScheduledAt: req.ScheduledAt,
		Capacity:    h.defaults.Capacity,
	})
	if err != nil {
		h.logger.Error("get or create webinar failed", zap.Error(err), zap.String("webinar", req.WebinarID))
		response.Internal(c, "failed to register")
		return
	}

	// A duplicate submission already holds one of the counted seats, so it is
	// resolved before the capacity gate and always replays as a success.
	existing, err := h.store.GetRegistrationByWebinarAndEmail(ctx, w.ID, NormalizeEmail(req.Email))
	if err != nil {
		h.logger.Error("lookup registration failed", zap.Error(err), zap.String("webinar", req.WebinarID))
		response.Internal(c, "failed to register")
		return
	}
	if existing != nil {
		response.Created(c, registrationBody(existing, w, req.Name))
		return
	}

	if w.Capacity > 0 {
		active, err := h.store.CountActive(ctx, &w.ID)
		if err != nil {
			h.logger.Error("count active failed", zap.Error(err), zap.String("webinar", req.WebinarID))
			response.Internal(c, "failed to register")
			return
		}
		if active >= w.Capacity {
			response.Conflict(c, "webinar is at capacity")
			return
		}
	}

	firstName := req.FirstName
	if firstName == "" {
		if fields := strings.Fields(req.Name); len(fields) > 0 {
			firstName = fields[0]
		}
	}
	if firstName == "" {
		response.BadRequest(c, "name must not be blank")
		return
	}
	reg, created, err := h.store.CreateOrGetRegistration(ctx, w.ID, req.Email, Profile{
		FirstName: firstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Source:    req.Source,
	})
	if err != nil {
		h.logger.Error("create registration failed", zap.Error(err), zap.String("webinar", req.WebinarID))
		response.Internal(c, "failed to register")
		return
	}

	if created {
		// Best-effort: enqueue failures are logged inside the scheduler and
		// never turn a committed registration into an error response.
		h.sched.Schedule(ctx, reg, w)
	}

	response.Created(c, registrationBody(reg, w, req.Name))
}

func registrationBody(reg *models.Registration, w *models.Webinar, name string) gin.H {
	return gin.H{
		"registrationId": reg.Code,
		"webinarId":      w.ExternalID,
		"email":          reg.Email,
		"name":           name,
		"timestamp":      reg.CreatedAt,
	}
}

// Count handles GET /registrations/count. The degradation gateway guarantees
// an answer, so this endpoint never returns a non-2xx for backend failures.
func (h *Handler) Count(c *gin.Context) {
	res := h.counts.FetchCount(c.Request.Context(), c.Query("webinarId"))
	response.OK(c, gin.H{"count": res.Count, "source": res.Source})
}

// ListByWebinar handles GET /webinars/:id/registrations (admin).
func (h *Handler) ListByWebinar(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	list, err := h.store.ListByWebinar(c.Request.Context(), webinarID)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err), zap.String("webinar_id", webinarID.String()))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, gin.H{"registrations": list, "total": len(list)})
}
