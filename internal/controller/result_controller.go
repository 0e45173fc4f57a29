package controller

import (
	"school_portal_backend/internal/service"
	"school_portal_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	Service *service.ResultService
}

func NewResultController(svc *service.ResultService) *ResultController {
	return &ResultController{Service: svc}
}

// @Summary Compile a term result
// @Description Aggregates a student's submitted scores into a draft result and re-ranks the class
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CompileRequest true "Compilation input"
// @Success 200 {object} util.Response
// @Router /api/teacher/results/compile [post]
func (c *ResultController) Compile(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	var req service.CompileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.Compile(ctx.Request.Context(), req, actor)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary Submit a draft result for approval
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path int true "Result ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/results/{id}/submit [post]
func (c *ResultController) Submit(ctx *gin.Context) {
	c.transition(ctx, func(actor service.Actor, id uint, _ string) (interface{}, error) {
		return c.Service.SubmitResult(ctx.Request.Context(), id, actor)
	}, false)
}

// @Summary Approve a submitted result
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Result ID"
// @Param body body reasonRequest false "Optional principal comment"
// @Success 200 {object} util.Response
// @Router /api/admin/results/{id}/approve [post]
func (c *ResultController) Approve(ctx *gin.Context) {
	c.transition(ctx, func(actor service.Actor, id uint, reason string) (interface{}, error) {
		return c.Service.Approve(ctx.Request.Context(), id, reason, actor)
	}, false)
}

// @Summary Reject a submitted result
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Result ID"
// @Param body body reasonRequest true "Rejection reason"
// @Success 200 {object} util.Response
// @Router /api/admin/results/{id}/reject [post]
func (c *ResultController) Reject(ctx *gin.Context) {
	c.transition(ctx, func(actor service.Actor, id uint, reason string) (interface{}, error) {
		return c.Service.Reject(ctx.Request.Context(), id, reason, actor)
	}, true)
}

// @Summary Revert a result to draft
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Result ID"
// @Param body body reasonRequest true "Revert reason"
// @Success 200 {object} util.Response
// @Router /api/admin/results/{id}/revert [post]
func (c *ResultController) Revert(ctx *gin.Context) {
	c.transition(ctx, func(actor service.Actor, id uint, reason string) (interface{}, error) {
		return c.Service.Revert(ctx.Request.Context(), id, reason, actor)
	}, true)
}

type reasonRequest struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

func (c *ResultController) transition(ctx *gin.Context, fn func(service.Actor, uint, string) (interface{}, error), reasonRequired bool) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid result id")
		return
	}

	var req reasonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && reasonRequired {
		util.BadRequest(ctx, err.Error())
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Comment
	}

	result, err := fn(actor, uint(id), reason)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary Report card for one student and term
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param studentId path int true "Student ID"
// @Param term query string true "Term"
// @Param session query string true "Session"
// @Success 200 {object} util.Response
// @Router /api/results/students/{studentId} [get]
func (c *ResultController) Report(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	studentID, err := strconv.Atoi(ctx.Param("studentId"))
	if err != nil {
		util.BadRequest(ctx, "invalid student id")
		return
	}
	term := ctx.Query("term")
	session := ctx.Query("session")
	if term == "" || session == "" {
		util.BadRequest(ctx, "term and session are required")
		return
	}

	card, err := c.Service.Report(ctx.Request.Context(), uint(studentID), term, session, actor)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, card)
}

// @Summary List compiled results for a class
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param classId query int true "Class ID"
// @Param term query string true "Term"
// @Param session query string true "Session"
// @Success 200 {object} util.Response
// @Router /api/teacher/results [get]
func (c *ResultController) ListByClass(ctx *gin.Context) {
	classID, err := strconv.Atoi(ctx.Query("classId"))
	term := ctx.Query("term")
	session := ctx.Query("session")
	if err != nil || term == "" || session == "" {
		util.BadRequest(ctx, "classId, term and session are required")
		return
	}

	results, err := c.Service.ListByClass(ctx.Request.Context(), uint(classID), term, session)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, results)
}
