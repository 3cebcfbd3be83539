package summary

import (
	"net/http"
	"time"

	"sundayschool-points/pkg/accesscontrol"
	"sundayschool-points/pkg/db/pagination"
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
	readBalance := middleware.Authorize(enforcer, accesscontrol.ObjBalance, accesscontrol.ActRead)

	u := r.Group("/v1/users/:user_id/points", middleware.SelfOnly(accesscontrol.RoleStudent, "user_id"))
	u.GET("/balance", readBalance, h.GetBalance)
	u.GET("/recent", readBalance, h.GetRecent)
	u.GET("/transactions", readBalance, h.ListTransactions)
	u.GET("/totals", readBalance, h.GetTotals)
	u.GET("/verify", middleware.Authorize(enforcer, accesscontrol.ObjAudit, accesscontrol.ActRead), h.Verify)

	r.GET("/v1/churches/:church_id/points/leaderboard",
		middleware.Authorize(enforcer, accesscontrol.ObjLeaderboard, accesscontrol.ActRead),
		h.Leaderboard,
	)
}

type listQuery struct {
	Limit int `form:"limit" binding:"gte=0"`
}

type totalsQuery struct {
	Since *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
}

func (h *Handler) GetBalance(c *gin.Context) {
	bal, err := h.service.GetBalance(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (h *Handler) GetRecent(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	rows, err := h.service.GetRecentTransactions(c.Request.Context(), c.Param("user_id"), q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	var q pagination.Pagination
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	page, err := h.service.ListTransactions(c.Request.Context(), c.Param("user_id"), q.Cursor, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetTotals(c *gin.Context) {
	var q totalsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("since must be an RFC 3339 timestamp", err))
		return
	}

	totals, err := h.service.GetTotals(c.Request.Context(), c.Param("user_id"), q.Since)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	entries, err := h.service.Leaderboard(c.Request.Context(), c.Param("church_id"), q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) Verify(c *gin.Context) {
	report, err := h.service.Verify(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}
