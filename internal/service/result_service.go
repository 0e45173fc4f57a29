package service

import (
	"context"
	"fmt"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
	"school_portal_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

type ResultStore interface {
	FindByID(id uint) (*model.TermResult, error)
	FindByIdentity(studentID uint, term, session string) (*model.TermResult, error)
	FindFull(studentID uint, term, session string) (*model.TermResult, error)
	SaveCompiled(res *model.TermResult, affective []model.AffectiveRecord, psychomotor []model.PsychomotorRecord) error
	Save(res *model.TermResult) error
	ListByClass(classID uint, term, session string) ([]model.TermResult, error)
	UpdatePositions(positions map[uint]int, totalStudents int) error
}

// AssessmentEntry is one affective or psychomotor rating supplied at
// compilation time.
type AssessmentEntry struct {
	Attribute string `json:"attribute" binding:"required"`
	Score     int    `json:"score" binding:"required"`
	Remark    string `json:"remark"`
}

type CompileRequest struct {
	StudentID           uint              `json:"studentId" binding:"required"`
	ClassID             uint              `json:"classId" binding:"required"`
	Term                string            `json:"term" binding:"required"`
	Session             string            `json:"session" binding:"required"`
	TimesPresent        int               `json:"timesPresent"`
	TimesAbsent         int               `json:"timesAbsent"`
	ClassTeacherComment string            `json:"classTeacherComment"`
	Affective           []AssessmentEntry `json:"affective"`
	Psychomotor         []AssessmentEntry `json:"psychomotor"`
}

// ResultService is the compilation engine plus the approval state machine for
// compiled term results.
type ResultService struct {
	Results   ResultStore
	Scores    ScoreStore
	Directory DirectoryStore
	Notifier  Notifier
	keys      *util.KeyMutex
}

func NewResultService(results ResultStore, scores ScoreStore, directory DirectoryStore, notifier Notifier) *ResultService {
	return &ResultService{
		Results:   results,
		Scores:    scores,
		Directory: directory,
		Notifier:  notifier,
		keys:      util.NewKeyMutex(),
	}
}

// Compile aggregates a student's submitted scores into a draft term result,
// replaces the affective/psychomotor sets wholesale, and re-ranks the cohort.
// Re-compiling a result that has left draft is refused; Revert is the formal
// way back.
func (s *ResultService) Compile(ctx context.Context, req CompileRequest, actor Actor) (*model.TermResult, error) {
	if err := requireRole(actor, model.RoleClassTeacher); err != nil {
		return nil, err
	}
	if err := validateAssessments(req.Affective); err != nil {
		return nil, err
	}
	if err := validateAssessments(req.Psychomotor); err != nil {
		return nil, err
	}

	unlock := s.keys.Lock(util.ResultKey(req.StudentID, req.Term, req.Session))
	defer unlock()

	scores, err := s.Scores.ListSubmittedByStudent(req.StudentID, req.Term, req.Session)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: student %d has nothing submitted for %s %s", util.ErrNoScores, req.StudentID, req.Term, req.Session)
	}

	existing, err := s.Results.FindByIdentity(req.StudentID, req.Term, req.Session)
	if err != nil && util.ErrorKind(err) != util.KindNotFound {
		return nil, err
	}
	if existing != nil && existing.Status != model.ResultDraft {
		return nil, fmt.Errorf("%w: result is %s, revert it before re-compiling", util.ErrStateConflict, existing.Status)
	}

	totalScore := 0.0
	for _, sc := range scores {
		totalScore += sc.Total
	}
	average := Round2(totalScore / float64(len(scores)))

	cohort, err := s.Scores.DistinctSubmittedStudents(req.ClassID, req.Term, req.Session)
	if err != nil {
		return nil, err
	}

	result := &model.TermResult{
		StudentID:           req.StudentID,
		ClassID:             req.ClassID,
		Term:                req.Term,
		Session:             req.Session,
		TotalScore:          totalScore,
		Average:             average,
		TotalStudents:       len(cohort),
		TimesPresent:        req.TimesPresent,
		TimesAbsent:         req.TimesAbsent,
		ClassTeacherComment: req.ClassTeacherComment,
		Status:              model.ResultDraft,
	}
	if existing != nil {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
	}

	affective := make([]model.AffectiveRecord, len(req.Affective))
	for i, a := range req.Affective {
		affective[i] = model.AffectiveRecord{Attribute: a.Attribute, Score: a.Score, Remark: a.Remark}
	}
	psychomotor := make([]model.PsychomotorRecord, len(req.Psychomotor))
	for i, p := range req.Psychomotor {
		psychomotor[i] = model.PsychomotorRecord{Attribute: p.Attribute, Score: p.Score, Remark: p.Remark}
	}

	if err := s.Results.SaveCompiled(result, affective, psychomotor); err != nil {
		return nil, err
	}

	if err := s.rerankCohort(req.ClassID, req.Term, req.Session, len(cohort)); err != nil {
		return nil, err
	}

	// Reload to report the freshly assigned position.
	updated, err := s.Results.FindByID(result.ID)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Result compiled",
		zap.Uint("studentId", req.StudentID),
		zap.String("term", req.Term),
		zap.String("session", req.Session),
		zap.Float64("average", average),
		zap.Int("position", updated.Position))

	return updated, nil
}

func validateAssessments(entries []AssessmentEntry) error {
	for _, e := range entries {
		if e.Score < 1 || e.Score > 5 {
			return fmt.Errorf("%w: assessment %q score must be between 1 and 5, got %d", util.ErrValidation, e.Attribute, e.Score)
		}
	}
	return nil
}

// rerankCohort recomputes positions across every compiled result in the
// class using standard competition ranking.
func (s *ResultService) rerankCohort(classID uint, term, session string, totalStudents int) error {
	results, err := s.Results.ListByClass(classID, term, session)
	if err != nil {
		return err
	}
	averages := make([]float64, len(results))
	for i, r := range results {
		averages[i] = r.Average
	}
	ranks := Rank(averages)
	positions := make(map[uint]int, len(results))
	for i, r := range results {
		positions[r.ID] = ranks[i]
	}
	return s.Results.UpdatePositions(positions, totalStudents)
}

// lockForTransition pins a result's identity before a state transition. The
// status check and the save must happen under the same lock Compile takes, or
// two concurrent transitions could both pass the precondition and the loser
// would be silently overwritten. The result is re-read once the lock is held.
func (s *ResultService) lockForTransition(resultID uint) (*model.TermResult, func(), error) {
	result, err := s.Results.FindByID(resultID)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.keys.Lock(util.ResultKey(result.StudentID, result.Term, result.Session))
	result, err = s.Results.FindByID(resultID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return result, unlock, nil
}

// SubmitResult moves draft → submitted and notifies the admin role naming the
// class.
func (s *ResultService) SubmitResult(ctx context.Context, resultID uint, actor Actor) (*model.TermResult, error) {
	if err := requireRole(actor, model.RoleClassTeacher); err != nil {
		return nil, err
	}

	result, unlock, err := s.lockForTransition(resultID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if result.Status != model.ResultDraft {
		return nil, fmt.Errorf("%w: cannot submit a %s result", util.ErrStateConflict, result.Status)
	}

	now := time.Now()
	result.Status = model.ResultSubmitted
	result.SubmittedBy = &actor.ID
	result.SubmittedAt = &now
	if err := s.Results.Save(result); err != nil {
		return nil, err
	}

	className := fmt.Sprintf("class %d", result.ClassID)
	if class, err := s.Directory.FindClass(result.ClassID); err == nil {
		className = class.Name
	}
	s.notify(ctx, actor.ID, ToRole(model.RoleAdmin),
		"Result awaiting approval",
		fmt.Sprintf("A compiled result for %s (%s %s) was submitted for approval", className, result.Term, result.Session),
		model.SeverityInfo,
		fmt.Sprintf("/results/%d", result.ID))

	return result, nil
}

// Approve moves submitted → approved and notifies the student's linked
// parent; a student without parent linkage is skipped silently.
func (s *ResultService) Approve(ctx context.Context, resultID uint, comment string, actor Actor) (*model.TermResult, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	result, unlock, err := s.lockForTransition(resultID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if result.Status != model.ResultSubmitted {
		return nil, fmt.Errorf("%w: cannot approve a %s result", util.ErrStateConflict, result.Status)
	}

	now := time.Now()
	result.Status = model.ResultApproved
	result.ApprovedBy = &actor.ID
	result.ApprovedAt = &now
	if comment != "" {
		result.PrincipalComment = comment
	}
	if err := s.Results.Save(result); err != nil {
		return nil, err
	}

	if parentID, err := s.Directory.ParentOf(result.StudentID); err == nil && parentID != nil {
		s.notify(ctx, actor.ID, ToUser(*parentID),
			"Result approved",
			fmt.Sprintf("Your child's %s %s result has been approved and is ready to view", result.Term, result.Session),
			model.SeveritySuccess,
			fmt.Sprintf("/results/%d", result.ID))
	}

	return result, nil
}

// Reject moves submitted → rejected; the reason is mandatory and lands with
// the class's class teacher.
func (s *ResultService) Reject(ctx context.Context, resultID uint, reason string, actor Actor) (*model.TermResult, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", util.ErrValidation)
	}
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	result, unlock, err := s.lockForTransition(resultID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if result.Status != model.ResultSubmitted {
		return nil, fmt.Errorf("%w: cannot reject a %s result", util.ErrStateConflict, result.Status)
	}

	result.Status = model.ResultRejected
	result.RejectionReason = reason
	if err := s.Results.Save(result); err != nil {
		return nil, err
	}

	s.notifyClassTeacher(ctx, actor.ID, result,
		"Result rejected",
		fmt.Sprintf("A %s %s result was rejected: %s", result.Term, result.Session, reason),
		model.SeverityWarning)

	return result, nil
}

// Revert is the formal escape hatch back to draft. It replaces the implicit
// reset that re-compilation used to perform: admin only, reason required,
// audit fields cleared, class teacher informed.
func (s *ResultService) Revert(ctx context.Context, resultID uint, reason string, actor Actor) (*model.TermResult, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: a revert reason is required", util.ErrValidation)
	}
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	result, unlock, err := s.lockForTransition(resultID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if result.Status == model.ResultDraft {
		return nil, fmt.Errorf("%w: result is already a draft", util.ErrStateConflict)
	}

	result.Status = model.ResultDraft
	result.SubmittedBy = nil
	result.SubmittedAt = nil
	result.ApprovedBy = nil
	result.ApprovedAt = nil
	result.RejectionReason = ""
	if err := s.Results.Save(result); err != nil {
		return nil, err
	}

	s.notifyClassTeacher(ctx, actor.ID, result,
		"Result reverted to draft",
		fmt.Sprintf("A %s %s result was reverted to draft: %s", result.Term, result.Session, reason),
		model.SeverityWarning)

	return result, nil
}

// ReportCard is the read contract for the presentation layer: everything
// needed to render a report without further aggregation.
type ReportCard struct {
	Result      *model.TermResult `json:"result"`
	Scores      []model.Score     `json:"scores"`
	StudentName string            `json:"studentName"`
	RegNo       string            `json:"regNo"`
	ClassName   string            `json:"className"`
	Term        string            `json:"term"`
	Session     string            `json:"session"`
}

// Report assembles the full read model. Students and parents only ever see
// approved results; drafts and in-flight submissions stay invisible to them.
func (s *ResultService) Report(ctx context.Context, studentID uint, term, session string, actor Actor) (*ReportCard, error) {
	result, err := s.Results.FindFull(studentID, term, session)
	if err != nil {
		return nil, err
	}
	if (actor.Role == model.RoleStudent || actor.Role == model.RoleParent) && result.Status != model.ResultApproved {
		return nil, fmt.Errorf("%w: no published result for %s %s", util.ErrNotFound, term, session)
	}
	scores, err := s.Scores.ListSubmittedByStudent(studentID, term, session)
	if err != nil {
		return nil, err
	}

	card := &ReportCard{
		Result:  result,
		Scores:  scores,
		Term:    term,
		Session: session,
	}
	if result.Student != nil {
		card.StudentName = result.Student.FullName()
		card.RegNo = result.Student.RegNo
		if result.Student.Class != nil {
			card.ClassName = result.Student.Class.Name
		}
	}
	return card, nil
}

func (s *ResultService) ListByClass(ctx context.Context, classID uint, term, session string) ([]model.TermResult, error) {
	return s.Results.ListByClass(classID, term, session)
}

func (s *ResultService) notifyClassTeacher(ctx context.Context, senderID uint, result *model.TermResult, title, message string, severity model.NotificationSeverity) {
	class, err := s.Directory.FindClass(result.ClassID)
	if err == nil && class.ClassTeacherID != nil {
		s.notify(ctx, senderID, ToUser(*class.ClassTeacherID), title, message, severity, fmt.Sprintf("/results/%d", result.ID))
		return
	}
	// No class teacher on record: fall back to the role broadcast.
	s.notify(ctx, senderID, ToRole(model.RoleClassTeacher), title, message, severity, fmt.Sprintf("/results/%d", result.ID))
}

func (s *ResultService) notify(ctx context.Context, senderID uint, audience Audience, title, message string, severity model.NotificationSeverity, link string) {
	if s.Notifier == nil {
		return
	}
	if _, err := s.Notifier.Send(ctx, senderID, audience, title, message, severity, link); err != nil {
		logger.Log.Error("Notification send failed", zap.String("title", title), zap.Error(err))
	}
}
