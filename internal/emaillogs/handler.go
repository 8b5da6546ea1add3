package emaillogs

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/notifications/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListByWebinar handles GET /webinars/:id/emails (admin). Returns the
// dispatch history for the webinar, newest first.
func (h *Handler) ListByWebinar(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	logs, err := h.repo.ListByWebinar(c.Request.Context(), webinarID)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
