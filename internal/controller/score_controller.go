package controller

import (
	"school_portal_backend/internal/service"
	"school_portal_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ScoreController struct {
	Service *service.ScoreService
}

func NewScoreController(svc *service.ScoreService) *ScoreController {
	return &ScoreController{Service: svc}
}

func actorFrom(ctx *gin.Context) (service.Actor, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{ID: user.UserID, Role: user.Role}, true
}

type batchRequest struct {
	Entries []service.ScoreEntry `json:"entries" binding:"required,min=1,dive"`
}

// @Summary Record a batch of scores
// @Description Validates and saves each entry independently; failures are itemized, not fatal
// @Tags scores
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body batchRequest true "Score entries"
// @Success 200 {object} util.Response
// @Router /api/teacher/scores/batch [post]
func (c *ScoreController) RecordBatch(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	var req batchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.RecordBatch(ctx.Request.Context(), req.Entries, actor)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary List scores for a class and subject
// @Tags scores
// @Produce json
// @Security BearerAuth
// @Param classId query int true "Class ID"
// @Param subjectId query int true "Subject ID"
// @Param term query string true "Term"
// @Param session query string true "Session"
// @Success 200 {object} util.Response
// @Router /api/teacher/scores [get]
func (c *ScoreController) List(ctx *gin.Context) {
	classID, err1 := strconv.Atoi(ctx.Query("classId"))
	subjectID, err2 := strconv.Atoi(ctx.Query("subjectId"))
	term := ctx.Query("term")
	session := ctx.Query("session")
	if err1 != nil || err2 != nil || term == "" || session == "" {
		util.BadRequest(ctx, "classId, subjectId, term and session are required")
		return
	}

	scores, err := c.Service.ListClassSubject(ctx.Request.Context(), uint(classID), uint(subjectID), term, session)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, scores)
}

type scoreIDsRequest struct {
	ScoreIDs []uint `json:"scoreIds" binding:"required,min=1"`
}

// @Summary Submit draft scores for compilation
// @Tags scores
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body scoreIDsRequest true "Score ids"
// @Success 200 {object} util.Response
// @Router /api/teacher/scores/submit [post]
func (c *ScoreController) Submit(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	var req scoreIDsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.Submit(ctx.Request.Context(), req.ScoreIDs, actor); err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"submitted": len(req.ScoreIDs)})
}

// @Summary Lock submitted scores
// @Tags scores
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body scoreIDsRequest true "Score ids"
// @Success 200 {object} util.Response
// @Router /api/admin/scores/lock [post]
func (c *ScoreController) Lock(ctx *gin.Context) {
	c.setLockState(ctx, true)
}

// @Summary Unlock locked scores
// @Tags scores
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body scoreIDsRequest true "Score ids"
// @Success 200 {object} util.Response
// @Router /api/admin/scores/unlock [post]
func (c *ScoreController) Unlock(ctx *gin.Context) {
	c.setLockState(ctx, false)
}

func (c *ScoreController) setLockState(ctx *gin.Context, lock bool) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	var req scoreIDsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var err error
	if lock {
		err = c.Service.Lock(ctx.Request.Context(), req.ScoreIDs, actor)
	} else {
		err = c.Service.Unlock(ctx.Request.Context(), req.ScoreIDs, actor)
	}
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"updated": len(req.ScoreIDs)})
}
