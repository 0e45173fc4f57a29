package controller

import (
	"net/http"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/service"
	"school_portal_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Service *service.NotificationService
	Hub     *service.NotificationHub
}

func NewNotificationController(svc *service.NotificationService, hub *service.NotificationHub) *NotificationController {
	return &NotificationController{Service: svc, Hub: hub}
}

// @Summary Notification inbox
// @Description Direct, role and broadcast notifications visible to the caller
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} util.Response
// @Router /api/notifications [get]
func (c *NotificationController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	list, total, err := c.Service.List(ctx.Request.Context(), user.UserID, user.Role, page, limit)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/notifications/unread [get]
func (c *NotificationController) UnreadCount(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	count, err := c.Service.UnreadCount(ctx.Request.Context(), user.UserID, user.Role)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"unread": count})
}

// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} util.Response
// @Router /api/notifications/{id}/read [post]
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.MarkRead(ctx.Request.Context(), ctx.Param("id"), user.UserID, user.Role); err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

type announceRequest struct {
	Role     model.UserRole             `json:"role"`
	UserID   *uint                      `json:"userId"`
	Title    string                     `json:"title" binding:"required"`
	Message  string                     `json:"message" binding:"required"`
	Severity model.NotificationSeverity `json:"severity"`
	Link     string                     `json:"link"`
}

// @Summary Send an announcement
// @Description Admin broadcast to a role, a single user, or everyone
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body announceRequest true "Announcement"
// @Success 201 {object} util.Response
// @Router /api/admin/notifications [post]
func (c *NotificationController) Announce(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req announceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	audience := service.Audience{UserID: req.UserID, Role: req.Role}
	n, err := c.Service.Send(ctx.Request.Context(), user.UserID, audience, req.Title, req.Message, req.Severity, req.Link)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Created(ctx, n)
}

// @Summary Live notification stream
// @Description Upgrades to a websocket delivering notifications as they are sent
// @Tags notifications
// @Security BearerAuth
// @Success 101
// @Router /api/notifications/ws [get]
func (c *NotificationController) Stream(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	service.ServeWs(c.Hub, ctx.Writer, ctx.Request, user.UserID, user.Role)
}

// @Summary Presence check
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} util.Response
// @Router /api/notifications/online/{id} [get]
func (c *NotificationController) Online(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.Error(ctx, http.StatusBadRequest, "invalid user id")
		return
	}
	util.Success(ctx, gin.H{"online": c.Hub.IsUserOnline(uint(id))})
}
