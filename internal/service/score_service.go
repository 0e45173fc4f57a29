package service

import (
	"context"
	"fmt"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
	"school_portal_backend/pkg/logger"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type ScoreStore interface {
	FindByIdentity(studentID, subjectID uint, term, session string) (*model.Score, error)
	FindByIDs(ids []uint) ([]model.Score, error)
	Upsert(s *model.Score) error
	ListByClassSubject(classID, subjectID uint, term, session string) ([]model.Score, error)
	ListByClass(classID uint, term, session string) ([]model.Score, error)
	UpdateClassStats(classID, subjectID uint, term, session string, average, min, max float64) error
	UpdateStatus(ids []uint, status model.ScoreStatus) error
	ListSubmittedByStudent(studentID uint, term, session string) ([]model.Score, error)
	DistinctSubmittedStudents(classID uint, term, session string) ([]uint, error)
}

type DirectoryStore interface {
	FindStudent(id uint) (*model.Student, error)
	FindStudentByRegNo(regNo string) (*model.Student, error)
	ListStudentsByClass(classID uint) ([]model.Student, error)
	FindClass(id uint) (*model.SchoolClass, error)
	FindSubject(id uint) (*model.Subject, error)
	FindSubjectByName(name string) (*model.Subject, error)
	ListSubjectsByClass(classID uint, session string) ([]model.Subject, error)
	FindAssignment(classID, subjectID uint, session string) (*model.SubjectAssignment, error)
	ParentOf(studentID uint) (*uint, error)
}

// ScoreEntry is one row of a batch write into the assessment ledger.
type ScoreEntry struct {
	StudentID uint    `json:"studentId" binding:"required"`
	SubjectID uint    `json:"subjectId" binding:"required"`
	ClassID   uint    `json:"classId" binding:"required"`
	Term      string  `json:"term" binding:"required"`
	Session   string  `json:"session" binding:"required"`
	CA1       float64 `json:"ca1"`
	CA2       float64 `json:"ca2"`
	Exam      float64 `json:"exam"`
}

// EntryFailure itemizes one rejected batch entry. Kind is the stable
// machine-checkable identity; Message is not contract.
type EntryFailure struct {
	Index     int    `json:"index"`
	StudentID uint   `json:"studentId"`
	SubjectID uint   `json:"subjectId"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// BatchResult reports a best-effort batch: per-entry failures never abort the
// remaining entries.
type BatchResult struct {
	Saved  int            `json:"saved"`
	Failed []EntryFailure `json:"failed"`
}

// ScoreService is the assessment ledger: it owns raw per-subject score
// records, their validation, and per-subject class statistics.
type ScoreService struct {
	Scores    ScoreStore
	Directory DirectoryStore
	Notifier  Notifier
	keys      *util.KeyMutex
}

func NewScoreService(scores ScoreStore, directory DirectoryStore, notifier Notifier) *ScoreService {
	return &ScoreService{
		Scores:    scores,
		Directory: directory,
		Notifier:  notifier,
		keys:      util.NewKeyMutex(),
	}
}

type statGroup struct {
	classID   uint
	subjectID uint
	term      string
	session   string
}

// RecordBatch validates and upserts each entry independently, then recomputes
// class statistics once per touched {class, subject, term, session} group,
// strictly after every entry has persisted.
func (s *ScoreService) RecordBatch(ctx context.Context, entries []ScoreEntry, actor Actor) (*BatchResult, error) {
	result := &BatchResult{}
	touched := make(map[statGroup]bool)

	for i, e := range entries {
		if err := s.recordOne(ctx, &e, actor); err != nil {
			result.Failed = append(result.Failed, EntryFailure{
				Index:     i,
				StudentID: e.StudentID,
				SubjectID: e.SubjectID,
				Kind:      util.ErrorKind(err),
				Message:   err.Error(),
			})
			continue
		}
		result.Saved++
		touched[statGroup{e.ClassID, e.SubjectID, e.Term, e.Session}] = true
	}

	// One re-aggregation pass per group over the final persisted state, so
	// readers never see interleaved per-entry statistics.
	for g := range touched {
		if err := s.recomputeClassStats(ctx, g); err != nil {
			logger.Log.Error("Class statistics write-back failed",
				zap.Uint("classId", g.classID),
				zap.Uint("subjectId", g.subjectID),
				zap.Error(err))
		}
	}

	logger.Log.Info("Score batch processed",
		zap.Int("saved", result.Saved),
		zap.Int("failed", len(result.Failed)),
		zap.Uint("actor", actor.ID))

	return result, nil
}

func (s *ScoreService) recordOne(ctx context.Context, e *ScoreEntry, actor Actor) error {
	if violations := ValidateComponents(e.CA1, e.CA2, e.Exam); len(violations) > 0 {
		return fmt.Errorf("%w: %s", util.ErrValidation, strings.Join(violations, "; "))
	}

	// Subject teachers may only write into their own assignment; class
	// teachers and admins pass.
	if actor.Role == model.RoleSubjectTeacher {
		assignment, err := s.Directory.FindAssignment(e.ClassID, e.SubjectID, e.Session)
		if err != nil || assignment.TeacherID != actor.ID {
			return fmt.Errorf("%w: subject %d in class %d is not assigned to this teacher", util.ErrForbidden, e.SubjectID, e.ClassID)
		}
	}

	unlock := s.keys.Lock(util.ScoreKey(e.StudentID, e.SubjectID, e.Term, e.Session))
	defer unlock()

	existing, err := s.Scores.FindByIdentity(e.StudentID, e.SubjectID, e.Term, e.Session)
	if err != nil && util.ErrorKind(err) != util.KindNotFound {
		return err
	}

	status := model.ScoreDraft
	if existing != nil {
		if existing.Status == model.ScoreLocked {
			return fmt.Errorf("%w: score for student %d subject %d", util.ErrLockedRecord, e.StudentID, e.SubjectID)
		}
		status = existing.Status
	}

	total := e.CA1 + e.CA2 + e.Exam
	grade := GradeFor(total)

	score := &model.Score{
		StudentID:  e.StudentID,
		SubjectID:  e.SubjectID,
		ClassID:    e.ClassID,
		Term:       e.Term,
		Session:    e.Session,
		CA1:        e.CA1,
		CA2:        e.CA2,
		Exam:       e.Exam,
		Total:      total,
		Grade:      grade,
		Remark:     RemarkFor(grade),
		Status:     status,
		RecordedBy: actor.ID,
	}
	if existing != nil {
		// Preserve the last written statistics until the write-back pass.
		score.ClassAverage = existing.ClassAverage
		score.ClassMin = existing.ClassMin
		score.ClassMax = existing.ClassMax
	}

	return s.Scores.Upsert(score)
}

func (s *ScoreService) recomputeClassStats(ctx context.Context, g statGroup) error {
	// Serialize write-backs per cohort so two overlapping batches cannot
	// leave stats from a stale read.
	unlock := s.keys.Lock(util.CohortKey(g.classID, g.term, g.session))
	defer unlock()

	scores, err := s.Scores.ListByClassSubject(g.classID, g.subjectID, g.term, g.session)
	if err != nil {
		return err
	}
	totals := make([]float64, len(scores))
	for i, sc := range scores {
		totals[i] = sc.Total
	}
	stats := ComputeClassStats(totals)
	return s.Scores.UpdateClassStats(g.classID, g.subjectID, g.term, g.session, stats.Average, stats.Min, stats.Max)
}

// Submit flips draft scores to submitted, all-or-nothing, and notifies the
// class-teacher role naming each subject involved.
func (s *ScoreService) Submit(ctx context.Context, scoreIDs []uint, actor Actor) error {
	if err := requireRole(actor, model.RoleSubjectTeacher); err != nil {
		return err
	}
	if len(scoreIDs) == 0 {
		return fmt.Errorf("%w: no score ids given", util.ErrValidation)
	}
	ids := dedupeIDs(scoreIDs)

	scores, release, err := s.lockScores(ids)
	if err != nil {
		return err
	}
	defer release()
	if len(scores) != len(ids) {
		return fmt.Errorf("%w: %d of %d scores", util.ErrNotFound, len(ids)-len(scores), len(ids))
	}
	for _, sc := range scores {
		if sc.Status != model.ScoreDraft {
			return fmt.Errorf("%w: score %d is %s, only drafts can be submitted", util.ErrStateConflict, sc.ID, sc.Status)
		}
	}

	if err := s.Scores.UpdateStatus(ids, model.ScoreSubmitted); err != nil {
		return err
	}

	for _, sc := range distinctSubjects(scores) {
		subjectName := fmt.Sprintf("subject %d", sc.SubjectID)
		if subject, err := s.Directory.FindSubject(sc.SubjectID); err == nil {
			subjectName = subject.Name
		}
		s.notify(ctx, actor.ID, ToRole(model.RoleClassTeacher),
			"Scores submitted",
			fmt.Sprintf("%s scores for %s %s have been submitted for review", subjectName, sc.Term, sc.Session),
			model.SeverityInfo,
			fmt.Sprintf("/scores?classId=%d&subjectId=%d&term=%s&session=%s", sc.ClassID, sc.SubjectID, sc.Term, sc.Session))
	}

	return nil
}

// Lock marks scores immutable; locking authority is administrative, distinct
// from submission.
func (s *ScoreService) Lock(ctx context.Context, scoreIDs []uint, actor Actor) error {
	return s.setLockState(ctx, scoreIDs, actor, true)
}

// Unlock reopens locked scores and tells the recording teacher, so records
// cannot be silently reopened.
func (s *ScoreService) Unlock(ctx context.Context, scoreIDs []uint, actor Actor) error {
	return s.setLockState(ctx, scoreIDs, actor, false)
}

func (s *ScoreService) setLockState(ctx context.Context, scoreIDs []uint, actor Actor, lock bool) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	if len(scoreIDs) == 0 {
		return fmt.Errorf("%w: no score ids given", util.ErrValidation)
	}
	ids := dedupeIDs(scoreIDs)

	scores, release, err := s.lockScores(ids)
	if err != nil {
		return err
	}
	defer release()
	if len(scores) != len(ids) {
		return fmt.Errorf("%w: %d of %d scores", util.ErrNotFound, len(ids)-len(scores), len(ids))
	}

	if lock {
		for _, sc := range scores {
			if sc.Status != model.ScoreSubmitted {
				return fmt.Errorf("%w: score %d is %s, only submitted scores can be locked", util.ErrStateConflict, sc.ID, sc.Status)
			}
		}
		return s.Scores.UpdateStatus(ids, model.ScoreLocked)
	}

	for _, sc := range scores {
		if sc.Status != model.ScoreLocked {
			return fmt.Errorf("%w: score %d is %s, not locked", util.ErrStateConflict, sc.ID, sc.Status)
		}
	}
	if err := s.Scores.UpdateStatus(ids, model.ScoreSubmitted); err != nil {
		return err
	}

	for _, sc := range scores {
		s.notify(ctx, actor.ID, ToUser(sc.RecordedBy),
			"Scores unlocked",
			fmt.Sprintf("Scores you recorded for %s %s were unlocked for editing", sc.Term, sc.Session),
			model.SeverityWarning, "")
	}
	return nil
}

// lockScores resolves ids to their record identities and locks each one in
// sorted key order before re-reading, so a status flip cannot race a
// concurrent write to the same record. The release function must be called
// once the transition is done.
func (s *ScoreService) lockScores(ids []uint) ([]model.Score, func(), error) {
	scores, err := s.Scores.FindByIDs(ids)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool, len(scores))
	keys := make([]string, 0, len(scores))
	for _, sc := range scores {
		key := util.ScoreKey(sc.StudentID, sc.SubjectID, sc.Term, sc.Session)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	unlocks := make([]func(), 0, len(keys))
	for _, key := range keys {
		unlocks = append(unlocks, s.keys.Lock(key))
	}
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	// Re-read now that the identities are held; the first read only served
	// to learn which keys to lock.
	scores, err = s.Scores.FindByIDs(ids)
	if err != nil {
		release()
		return nil, nil, err
	}
	return scores, release, nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// SheetEntry is a batch row addressed by natural keys, the shape exchanged
// with spreadsheet import/export collaborators.
type SheetEntry struct {
	RegNo       string  `json:"regNo"`
	SubjectName string  `json:"subjectName"`
	CA1         float64 `json:"ca1"`
	CA2         float64 `json:"ca2"`
	Exam        float64 `json:"exam"`
}

// RecordSheet resolves natural keys against the directory and feeds the
// resolved rows through RecordBatch. Unresolvable rows become itemized
// failures; resolution never aborts the batch.
func (s *ScoreService) RecordSheet(ctx context.Context, rows []SheetEntry, term, session string, actor Actor) (*BatchResult, error) {
	var entries []ScoreEntry
	var failures []EntryFailure
	indexMap := make(map[int]int) // resolved entry index -> original row index

	for i, row := range rows {
		student, err := s.Directory.FindStudentByRegNo(row.RegNo)
		if err != nil {
			failures = append(failures, EntryFailure{
				Index:   i,
				Kind:    util.KindNotFound,
				Message: fmt.Sprintf("unknown registration number %q", row.RegNo),
			})
			continue
		}
		subject, err := s.Directory.FindSubjectByName(row.SubjectName)
		if err != nil {
			failures = append(failures, EntryFailure{
				Index:     i,
				StudentID: student.ID,
				Kind:      util.KindNotFound,
				Message:   fmt.Sprintf("unknown subject %q", row.SubjectName),
			})
			continue
		}
		indexMap[len(entries)] = i
		entries = append(entries, ScoreEntry{
			StudentID: student.ID,
			SubjectID: subject.ID,
			ClassID:   student.ClassID,
			Term:      term,
			Session:   session,
			CA1:       row.CA1,
			CA2:       row.CA2,
			Exam:      row.Exam,
		})
	}

	result, err := s.RecordBatch(ctx, entries, actor)
	if err != nil {
		return nil, err
	}
	for i := range result.Failed {
		result.Failed[i].Index = indexMap[result.Failed[i].Index]
	}
	result.Failed = append(result.Failed, failures...)
	return result, nil
}

// ListClassSubject returns the ledger view a teacher edits: every score for a
// class/subject/term with the last written class statistics.
func (s *ScoreService) ListClassSubject(ctx context.Context, classID, subjectID uint, term, session string) ([]model.Score, error) {
	return s.Scores.ListByClassSubject(classID, subjectID, term, session)
}

func (s *ScoreService) notify(ctx context.Context, senderID uint, audience Audience, title, message string, severity model.NotificationSeverity, link string) {
	if s.Notifier == nil {
		return
	}
	if _, err := s.Notifier.Send(ctx, senderID, audience, title, message, severity, link); err != nil {
		logger.Log.Error("Notification send failed", zap.String("title", title), zap.Error(err))
	}
}

func distinctSubjects(scores []model.Score) []model.Score {
	seen := make(map[statGroup]bool)
	var out []model.Score
	for _, sc := range scores {
		g := statGroup{sc.ClassID, sc.SubjectID, sc.Term, sc.Session}
		if !seen[g] {
			seen[g] = true
			out = append(out, sc)
		}
	}
	return out
}
