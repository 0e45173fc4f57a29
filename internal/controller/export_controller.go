package controller

import (
	"net/http"
	"school_portal_backend/internal/service"
	"school_portal_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportController struct {
	Service *service.ExportService
}

func NewExportController(svc *service.ExportService) *ExportController {
	return &ExportController{Service: svc}
}

// @Summary Download the class broadsheet
// @Description One row per student, one column pair per subject, plus compiled aggregates
// @Tags export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param classId query int true "Class ID"
// @Param term query string true "Term"
// @Param session query string true "Session"
// @Success 200
// @Router /api/teacher/export/broadsheet [get]
func (c *ExportController) Broadsheet(ctx *gin.Context) {
	classID, err := strconv.Atoi(ctx.Query("classId"))
	term := ctx.Query("term")
	session := ctx.Query("session")
	if err != nil || term == "" || session == "" {
		util.BadRequest(ctx, "classId, term and session are required")
		return
	}

	buf, filename, err := c.Service.Broadsheet(ctx.Request.Context(), uint(classID), term, session)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", "attachment; filename="+filename)
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// @Summary Download a blank score sheet
// @Tags export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param classId query int true "Class ID"
// @Param subjectId query int true "Subject ID"
// @Param term query string true "Term"
// @Param session query string true "Session"
// @Success 200
// @Router /api/teacher/export/scoresheet [get]
func (c *ExportController) BlankSheet(ctx *gin.Context) {
	classID, err1 := strconv.Atoi(ctx.Query("classId"))
	subjectID, err2 := strconv.Atoi(ctx.Query("subjectId"))
	term := ctx.Query("term")
	session := ctx.Query("session")
	if err1 != nil || err2 != nil || term == "" || session == "" {
		util.BadRequest(ctx, "classId, subjectId, term and session are required")
		return
	}

	buf, filename, err := c.Service.BlankSheet(ctx.Request.Context(), uint(classID), uint(subjectID), term, session)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", "attachment; filename="+filename)
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// @Summary Upload a filled score sheet
// @Description Parses the sheet and records each row through the batch path
// @Tags export
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Filled score sheet"
// @Param term formData string true "Term"
// @Param session formData string true "Session"
// @Success 200 {object} util.Response
// @Router /api/teacher/import/scoresheet [post]
func (c *ExportController) ImportSheet(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	term := ctx.PostForm("term")
	session := ctx.PostForm("session")
	if term == "" || session == "" {
		util.BadRequest(ctx, "term and session are required")
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	result, err := c.Service.ImportSheet(ctx.Request.Context(), file, term, session, actor)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
