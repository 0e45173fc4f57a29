package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
)

const (
	testTerm    = "first"
	testSession = "2025/2026"
)

func uintPtr(v uint) *uint { return &v }

// scoreFixture wires a ScoreService over in-memory stores with one class,
// three students and a maths assignment held by teacher 10.
func scoreFixture() (*ScoreService, *mockScoreStore, *mockDirectoryStore, *mockNotifier) {
	dir := newMockDirectoryStore()
	dir.classes[1] = &model.SchoolClass{BaseModel: model.BaseModel{ID: 1}, Name: "JSS 1A", ClassTeacherID: uintPtr(20)}
	dir.subjects[1] = &model.Subject{BaseModel: model.BaseModel{ID: 1}, Name: "Mathematics", Code: "MTH"}
	dir.subjects[2] = &model.Subject{BaseModel: model.BaseModel{ID: 2}, Name: "English", Code: "ENG"}
	for i := uint(1); i <= 3; i++ {
		dir.students[i] = &model.Student{
			BaseModel: model.BaseModel{ID: i},
			RegNo:     fmt.Sprintf("REG-%03d", i),
			FirstName: "Student",
			LastName:  "Test",
			ClassID:   1,
		}
	}
	dir.assignments = []model.SubjectAssignment{
		{ClassID: 1, SubjectID: 1, Session: testSession, TeacherID: 10},
		{ClassID: 1, SubjectID: 2, Session: testSession, TeacherID: 11},
	}

	scores := newMockScoreStore()
	notifier := &mockNotifier{}
	svc := NewScoreService(scores, dir, notifier)
	return svc, scores, dir, notifier
}

func mathsEntry(studentID uint, ca1, ca2, exam float64) ScoreEntry {
	return ScoreEntry{
		StudentID: studentID,
		SubjectID: 1,
		ClassID:   1,
		Term:      testTerm,
		Session:   testSession,
		CA1:       ca1,
		CA2:       ca2,
		Exam:      exam,
	}
}

func TestRecordBatchPartialSuccess(t *testing.T) {
	svc, scores, _, _ := scoreFixture()
	actor := Actor{ID: 10, Role: model.RoleSubjectTeacher}

	entries := []ScoreEntry{
		mathsEntry(1, 18, 16, 58), // 92
		mathsEntry(2, 15, 15, 55), // 85
		mathsEntry(3, 17, 14, 58), // 89
		mathsEntry(3, 25, 10, 50), // ca1 out of range, rejected before writing
	}

	result, err := svc.RecordBatch(context.Background(), entries, actor)
	if err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	if result.Saved != 3 {
		t.Errorf("saved = %d, want 3", result.Saved)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(result.Failed))
	}
	if result.Failed[0].Index != 3 || result.Failed[0].Kind != util.KindValidation {
		t.Errorf("unexpected failure item: %+v", result.Failed[0])
	}

	// Entry 3's invalid re-write must not have clobbered the earlier save.
	s3, err := scores.FindByIdentity(3, 1, testTerm, testSession)
	if err != nil {
		t.Fatalf("student 3 score missing: %v", err)
	}
	if s3.Total != 89 || s3.Grade != "A" || s3.Remark != "Excellent" {
		t.Errorf("student 3 score = total %v grade %q remark %q", s3.Total, s3.Grade, s3.Remark)
	}

	// Statistics are written back once over the persisted set: (92+85+89)/3.
	if s3.ClassAverage != 88.67 || s3.ClassMin != 85 || s3.ClassMax != 92 {
		t.Errorf("class stats = avg %v min %v max %v", s3.ClassAverage, s3.ClassMin, s3.ClassMax)
	}
}

func TestRecordBatchLockedRecordUnchanged(t *testing.T) {
	svc, scores, _, _ := scoreFixture()
	locked := scores.add(model.Score{
		StudentID: 1, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession,
		CA1: 10, CA2: 10, Exam: 40, Total: 60, Grade: "C",
		Status: model.ScoreLocked,
	})

	result, err := svc.RecordBatch(context.Background(), []ScoreEntry{mathsEntry(1, 18, 18, 58)}, Actor{ID: 10, Role: model.RoleSubjectTeacher})
	if err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	if result.Saved != 0 || len(result.Failed) != 1 {
		t.Fatalf("unexpected batch result: %+v", result)
	}
	if result.Failed[0].Kind != util.KindLockedRecord {
		t.Errorf("kind = %q, want %q", result.Failed[0].Kind, util.KindLockedRecord)
	}

	after, _ := scores.FindByIdentity(1, 1, testTerm, testSession)
	if after.Total != locked.Total || after.Status != model.ScoreLocked {
		t.Errorf("locked record mutated: %+v", after)
	}
}

func TestRecordBatchAssignmentEnforced(t *testing.T) {
	svc, _, _, _ := scoreFixture()

	// Teacher 11 holds English, not Mathematics.
	result, err := svc.RecordBatch(context.Background(), []ScoreEntry{mathsEntry(1, 10, 10, 40)}, Actor{ID: 11, Role: model.RoleSubjectTeacher})
	if err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	if result.Saved != 0 || len(result.Failed) != 1 || result.Failed[0].Kind != util.KindForbidden {
		t.Errorf("unexpected batch result: %+v", result)
	}

	// Class teachers and admins bypass the assignment check.
	result, err = svc.RecordBatch(context.Background(), []ScoreEntry{mathsEntry(1, 10, 10, 40)}, Actor{ID: 20, Role: model.RoleClassTeacher})
	if err != nil || result.Saved != 1 {
		t.Errorf("class teacher write failed: %v %+v", err, result)
	}
}

func TestSubmitAllOrNothing(t *testing.T) {
	svc, scores, _, notifier := scoreFixture()
	d1 := scores.add(model.Score{StudentID: 1, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Status: model.ScoreDraft})
	d2 := scores.add(model.Score{StudentID: 2, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Status: model.ScoreDraft})
	sub := scores.add(model.Score{StudentID: 3, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Status: model.ScoreSubmitted})

	actor := Actor{ID: 10, Role: model.RoleSubjectTeacher}

	err := svc.Submit(context.Background(), []uint{d1.ID, d2.ID, sub.ID}, actor)
	if !errors.Is(err, util.ErrStateConflict) {
		t.Fatalf("submit with non-draft should conflict, got %v", err)
	}
	if got, _ := scores.FindByIDs([]uint{d1.ID}); got[0].Status != model.ScoreDraft {
		t.Errorf("draft flipped despite conflict: %v", got[0].Status)
	}

	if err := svc.Submit(context.Background(), []uint{d1.ID, d2.ID}, actor); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, _ := scores.FindByIDs([]uint{d1.ID, d2.ID})
	for _, s := range got {
		if s.Status != model.ScoreSubmitted {
			t.Errorf("score %d status = %v, want submitted", s.ID, s.Status)
		}
	}

	msgs := notifier.sentToRole(model.RoleClassTeacher)
	if len(msgs) != 1 {
		t.Fatalf("class teacher notifications = %d, want 1", len(msgs))
	}
}

func TestSubmitMissingIDs(t *testing.T) {
	svc, scores, _, _ := scoreFixture()
	d := scores.add(model.Score{StudentID: 1, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Status: model.ScoreDraft})

	err := svc.Submit(context.Background(), []uint{d.ID, 999}, Actor{ID: 10, Role: model.RoleSubjectTeacher})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestLockUnlockLifecycle(t *testing.T) {
	svc, scores, _, notifier := scoreFixture()
	s := scores.add(model.Score{StudentID: 1, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Status: model.ScoreSubmitted, RecordedBy: 10})

	if err := svc.Lock(context.Background(), []uint{s.ID}, Actor{ID: 10, Role: model.RoleSubjectTeacher}); !errors.Is(err, util.ErrForbidden) {
		t.Errorf("non-admin lock should be forbidden, got %v", err)
	}

	admin := Actor{ID: 99, Role: model.RoleAdmin}
	if err := svc.Lock(context.Background(), []uint{s.ID}, admin); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	got, _ := scores.FindByIDs([]uint{s.ID})
	if got[0].Status != model.ScoreLocked {
		t.Fatalf("status = %v, want locked", got[0].Status)
	}

	// Locking twice conflicts: only submitted scores can be locked.
	if err := svc.Lock(context.Background(), []uint{s.ID}, admin); !errors.Is(err, util.ErrStateConflict) {
		t.Errorf("double lock should conflict, got %v", err)
	}

	if err := svc.Unlock(context.Background(), []uint{s.ID}, admin); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	got, _ = scores.FindByIDs([]uint{s.ID})
	if got[0].Status != model.ScoreSubmitted {
		t.Errorf("status after unlock = %v, want submitted", got[0].Status)
	}

	// The recording teacher is told the record reopened.
	if len(notifier.sentToUser(10)) != 1 {
		t.Errorf("expected unlock notification to recorder, got %v", notifier.sent)
	}
}

func TestSubmitDuplicateIDs(t *testing.T) {
	svc, scores, _, _ := scoreFixture()
	d := scores.add(model.Score{StudentID: 1, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Status: model.ScoreDraft})

	// A repeated id is one record, not a missing one.
	if err := svc.Submit(context.Background(), []uint{d.ID, d.ID}, Actor{ID: 10, Role: model.RoleSubjectTeacher}); err != nil {
		t.Fatalf("Submit with duplicate id: %v", err)
	}
	got, _ := scores.FindByIDs([]uint{d.ID})
	if got[0].Status != model.ScoreSubmitted {
		t.Errorf("status = %v, want submitted", got[0].Status)
	}
}

func TestConcurrentLocksSerialize(t *testing.T) {
	svc, scores, _, _ := scoreFixture()
	s := scores.add(model.Score{StudentID: 1, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Status: model.ScoreSubmitted, RecordedBy: 10})
	admin := Actor{ID: 99, Role: model.RoleAdmin}

	// Hold the first status flip mid-flight so the second lock arrives while
	// the first still owns the record.
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	scores.beforeUpdateStatus = func() {
		once.Do(func() { close(entered) })
		<-release
	}

	var firstErr, secondErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		firstErr = svc.Lock(context.Background(), []uint{s.ID}, admin)
	}()
	<-entered
	go func() {
		defer wg.Done()
		secondErr = svc.Lock(context.Background(), []uint{s.ID}, admin)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first lock: %v", firstErr)
	}
	if !errors.Is(secondErr, util.ErrStateConflict) {
		t.Errorf("second lock should conflict, got %v", secondErr)
	}
	got, _ := scores.FindByIDs([]uint{s.ID})
	if got[0].Status != model.ScoreLocked {
		t.Errorf("status = %v, want locked", got[0].Status)
	}
}

func TestRecordSheetResolvesNaturalKeys(t *testing.T) {
	svc, scores, _, _ := scoreFixture()
	actor := Actor{ID: 20, Role: model.RoleClassTeacher}

	rows := []SheetEntry{
		{RegNo: "REG-001", SubjectName: "Mathematics", CA1: 18, CA2: 16, Exam: 58},
		{RegNo: "NO-SUCH", SubjectName: "Mathematics", CA1: 10, CA2: 10, Exam: 40},
		{RegNo: "REG-002", SubjectName: "Basket Weaving", CA1: 10, CA2: 10, Exam: 40},
		{RegNo: "REG-003", SubjectName: "MTH", CA1: 12, CA2: 13, Exam: 45},
	}

	result, err := svc.RecordSheet(context.Background(), rows, testTerm, testSession, actor)
	if err != nil {
		t.Fatalf("RecordSheet: %v", err)
	}
	if result.Saved != 2 {
		t.Errorf("saved = %d, want 2", result.Saved)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(result.Failed))
	}
	for _, f := range result.Failed {
		if f.Kind != util.KindNotFound {
			t.Errorf("failure kind = %q, want %q", f.Kind, util.KindNotFound)
		}
	}

	// Subject codes resolve like names.
	if _, err := scores.FindByIdentity(3, 1, testTerm, testSession); err != nil {
		t.Errorf("code-addressed row not saved: %v", err)
	}
}
