package pointsconfig

import (
	"net/http"

	"sundayschool-points/pkg/accesscontrol"
	"sundayschool-points/pkg/errutil"
	"sundayschool-points/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func RegisterRoutes(r *gin.Engine, h *Handler, enforcer *casbin.Enforcer) {
	g := r.Group("/v1/churches/:church_id/points/config")
	g.GET("", middleware.Authorize(enforcer, accesscontrol.ObjConfig, accesscontrol.ActRead), h.Get)
	g.PATCH("", middleware.Authorize(enforcer, accesscontrol.ObjConfig, accesscontrol.ActWrite), h.Update)
	g.POST("/ensure", middleware.Authorize(enforcer, accesscontrol.ObjConfig, accesscontrol.ActWrite), h.Ensure)

	r.GET("/v1/points/configs", middleware.Authorize(enforcer, accesscontrol.ObjConfigs, accesscontrol.ActRead), h.List)
}

func (h *Handler) Get(c *gin.Context) {
	cfg, err := h.service.Get(c.Request.Context(), c.Param("church_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// List returns every church's configuration, ordered by church id.
func (h *Handler) List(c *gin.Context) {
	configs, err := h.service.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

func (h *Handler) Update(c *gin.Context) {
	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	cfg, err := h.service.Upsert(c.Request.Context(), c.Param("church_id"), patch, middleware.ActorFrom(c).ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) Ensure(c *gin.Context) {
	cfg, created, err := h.service.Ensure(c.Request.Context(), c.Param("church_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	c.JSON(code, cfg)
}
