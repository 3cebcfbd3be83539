package ledger

import (
	"net/http"

	"sundayschool-points/pkg/accesscontrol"
	"sundayschool-points/pkg/errutil"
	"sundayschool-points/pkg/middleware"
	"sundayschool-points/services/ledger/event"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service  *Service
	enforcer casbin.IEnforcer
}

func NewHandler(service *Service, enforcer *casbin.Enforcer) *Handler {
	return &Handler{service: service, enforcer: enforcer}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.POST("/v1/churches/:church_id/users/:user_id/points/events", h.ApplyEvent)
}

type applyEventRequest struct {
	event.Payload
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handler) ApplyEvent(c *gin.Context) {
	var req applyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	ev, err := event.Decode(req.Payload)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// permission depends on the transaction type
	if err := middleware.Enforce(c, h.enforcer, accesscontrol.EventObject(ev.Type().String()), accesscontrol.ActApply); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.service.ApplyEvent(c.Request.Context(), ApplyRequest{
		ChurchID:       c.Param("church_id"),
		UserID:         c.Param("user_id"),
		ActorID:        middleware.ActorFrom(c).ID,
		IdempotencyKey: req.IdempotencyKey,
		Notes:          req.Notes,
		Event:          ev,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	code := http.StatusCreated
	if res.Duplicate || res.Skipped {
		code = http.StatusOK
	}
	c.JSON(code, res)
}
