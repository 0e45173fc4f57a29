package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
)

// In-memory stand-ins for the gorm repositories. They mirror the repository
// semantics the services rely on: identity upserts, status filters, not-found
// sentinels, and safe concurrent access.

type mockScoreStore struct {
	mu     sync.Mutex
	seq    uint
	scores map[uint]*model.Score

	// beforeUpdateStatus runs outside the store lock, letting tests hold a
	// status flip mid-flight.
	beforeUpdateStatus func()
}

func newMockScoreStore() *mockScoreStore {
	return &mockScoreStore{scores: make(map[uint]*model.Score)}
}

func (m *mockScoreStore) add(s model.Score) *model.Score {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	s.ID = m.seq
	m.scores[s.ID] = &s
	return &s
}

func (m *mockScoreStore) findByIdentityLocked(studentID, subjectID uint, term, session string) *model.Score {
	for _, s := range m.scores {
		if s.StudentID == studentID && s.SubjectID == subjectID && s.Term == term && s.Session == session {
			return s
		}
	}
	return nil
}

func (m *mockScoreStore) FindByIdentity(studentID, subjectID uint, term, session string) (*model.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findByIdentityLocked(studentID, subjectID, term, session); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, util.ErrNotFound
}

func (m *mockScoreStore) FindByIDs(ids []uint) ([]model.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Score
	for _, id := range ids {
		if s, ok := m.scores[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockScoreStore) Upsert(s *model.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.findByIdentityLocked(s.StudentID, s.SubjectID, s.Term, s.Session); existing != nil {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	} else {
		m.seq++
		s.ID = m.seq
	}
	cp := *s
	m.scores[s.ID] = &cp
	return nil
}

func (m *mockScoreStore) ListByClassSubject(classID, subjectID uint, term, session string) ([]model.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Score
	for _, s := range m.scores {
		if s.ClassID == classID && s.SubjectID == subjectID && s.Term == term && s.Session == session {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockScoreStore) ListByClass(classID uint, term, session string) ([]model.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Score
	for _, s := range m.scores {
		if s.ClassID == classID && s.Term == term && s.Session == session {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockScoreStore) UpdateClassStats(classID, subjectID uint, term, session string, average, min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.scores {
		if s.ClassID == classID && s.SubjectID == subjectID && s.Term == term && s.Session == session {
			s.ClassAverage = average
			s.ClassMin = min
			s.ClassMax = max
		}
	}
	return nil
}

func (m *mockScoreStore) UpdateStatus(ids []uint, status model.ScoreStatus) error {
	if m.beforeUpdateStatus != nil {
		m.beforeUpdateStatus()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if s, ok := m.scores[id]; ok {
			s.Status = status
		}
	}
	return nil
}

func (m *mockScoreStore) ListSubmittedByStudent(studentID uint, term, session string) ([]model.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Score
	for _, s := range m.scores {
		if s.StudentID == studentID && s.Term == term && s.Session == session &&
			(s.Status == model.ScoreSubmitted || s.Status == model.ScoreLocked) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockScoreStore) DistinctSubmittedStudents(classID uint, term, session string) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uint]bool)
	var ids []uint
	for _, s := range m.scores {
		if s.ClassID == classID && s.Term == term && s.Session == session &&
			(s.Status == model.ScoreSubmitted || s.Status == model.ScoreLocked) && !seen[s.StudentID] {
			seen[s.StudentID] = true
			ids = append(ids, s.StudentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type mockDirectoryStore struct {
	students    map[uint]*model.Student
	classes     map[uint]*model.SchoolClass
	subjects    map[uint]*model.Subject
	assignments []model.SubjectAssignment
}

func newMockDirectoryStore() *mockDirectoryStore {
	return &mockDirectoryStore{
		students: make(map[uint]*model.Student),
		classes:  make(map[uint]*model.SchoolClass),
		subjects: make(map[uint]*model.Subject),
	}
}

func (m *mockDirectoryStore) FindStudent(id uint) (*model.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, util.ErrNotFound
}

func (m *mockDirectoryStore) FindStudentByRegNo(regNo string) (*model.Student, error) {
	for _, s := range m.students {
		if s.RegNo == regNo {
			cp := *s
			return &cp, nil
		}
	}
	return nil, util.ErrNotFound
}

func (m *mockDirectoryStore) ListStudentsByClass(classID uint) ([]model.Student, error) {
	var out []model.Student
	for _, s := range m.students {
		if s.ClassID == classID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDirectoryStore) FindClass(id uint) (*model.SchoolClass, error) {
	if c, ok := m.classes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, util.ErrNotFound
}

func (m *mockDirectoryStore) FindSubject(id uint) (*model.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, util.ErrNotFound
}

func (m *mockDirectoryStore) FindSubjectByName(name string) (*model.Subject, error) {
	for _, s := range m.subjects {
		if strings.EqualFold(s.Name, name) || strings.EqualFold(s.Code, name) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, util.ErrNotFound
}

func (m *mockDirectoryStore) ListSubjectsByClass(classID uint, session string) ([]model.Subject, error) {
	var out []model.Subject
	for _, a := range m.assignments {
		if a.ClassID == classID && a.Session == session {
			if s, ok := m.subjects[a.SubjectID]; ok {
				out = append(out, *s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDirectoryStore) FindAssignment(classID, subjectID uint, session string) (*model.SubjectAssignment, error) {
	for _, a := range m.assignments {
		if a.ClassID == classID && a.SubjectID == subjectID && a.Session == session {
			cp := a
			return &cp, nil
		}
	}
	return nil, util.ErrNotFound
}

func (m *mockDirectoryStore) ParentOf(studentID uint) (*uint, error) {
	s, ok := m.students[studentID]
	if !ok {
		return nil, util.ErrNotFound
	}
	return s.ParentID, nil
}

type mockResultStore struct {
	mu          sync.Mutex
	seq         uint
	results     map[uint]*model.TermResult
	affective   map[uint][]model.AffectiveRecord
	psychomotor map[uint][]model.PsychomotorRecord
	students    map[uint]*model.Student

	// beforeSave runs outside the store lock, letting tests hold a save
	// mid-flight.
	beforeSave func()
}

func newMockResultStore() *mockResultStore {
	return &mockResultStore{
		results:     make(map[uint]*model.TermResult),
		affective:   make(map[uint][]model.AffectiveRecord),
		psychomotor: make(map[uint][]model.PsychomotorRecord),
		students:    make(map[uint]*model.Student),
	}
}

func (m *mockResultStore) FindByID(id uint) (*model.TermResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.results[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, util.ErrNotFound
}

func (m *mockResultStore) findByIdentityLocked(studentID uint, term, session string) *model.TermResult {
	for _, r := range m.results {
		if r.StudentID == studentID && r.Term == term && r.Session == session {
			return r
		}
	}
	return nil
}

func (m *mockResultStore) FindByIdentity(studentID uint, term, session string) (*model.TermResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.findByIdentityLocked(studentID, term, session); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, util.ErrNotFound
}

func (m *mockResultStore) FindFull(studentID uint, term, session string) (*model.TermResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.findByIdentityLocked(studentID, term, session)
	if r == nil {
		return nil, util.ErrNotFound
	}
	cp := *r
	cp.AffectiveRecords = m.affective[cp.ID]
	cp.PsychomotorRecords = m.psychomotor[cp.ID]
	cp.Student = m.students[studentID]
	return &cp, nil
}

func (m *mockResultStore) SaveCompiled(res *model.TermResult, affective []model.AffectiveRecord, psychomotor []model.PsychomotorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.ID == 0 {
		m.seq++
		res.ID = m.seq
	}
	cp := *res
	m.results[res.ID] = &cp
	m.affective[res.ID] = affective
	m.psychomotor[res.ID] = psychomotor
	return nil
}

func (m *mockResultStore) Save(res *model.TermResult) error {
	if m.beforeSave != nil {
		m.beforeSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.ID == 0 {
		m.seq++
		res.ID = m.seq
	}
	cp := *res
	m.results[res.ID] = &cp
	return nil
}

func (m *mockResultStore) ListByClass(classID uint, term, session string) ([]model.TermResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TermResult
	for _, r := range m.results {
		if r.ClassID == classID && r.Term == term && r.Session == session {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Average > out[j].Average })
	return out, nil
}

func (m *mockResultStore) UpdatePositions(positions map[uint]int, totalStudents int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, pos := range positions {
		if r, ok := m.results[id]; ok {
			r.Position = pos
			r.TotalStudents = totalStudents
		}
	}
	return nil
}

type sentNotification struct {
	SenderID uint
	Audience Audience
	Title    string
	Message  string
	Severity model.NotificationSeverity
	Link     string
}

type mockNotifier struct {
	sent []sentNotification
}

func (m *mockNotifier) Send(ctx context.Context, senderID uint, audience Audience, title, message string, severity model.NotificationSeverity, link string) (*model.Notification, error) {
	m.sent = append(m.sent, sentNotification{senderID, audience, title, message, severity, link})
	return &model.Notification{Title: title, Message: message, Severity: severity}, nil
}

func (m *mockNotifier) sentToRole(role model.UserRole) []sentNotification {
	var out []sentNotification
	for _, n := range m.sent {
		if n.Audience.UserID == nil && n.Audience.Role == role {
			out = append(out, n)
		}
	}
	return out
}

func (m *mockNotifier) sentToUser(id uint) []sentNotification {
	var out []sentNotification
	for _, n := range m.sent {
		if n.Audience.UserID != nil && *n.Audience.UserID == id {
			out = append(out, n)
		}
	}
	return out
}

type mockNotificationStore struct {
	seq     int
	created []*model.Notification

	lastListPage  int
	lastListLimit int
}

func (m *mockNotificationStore) Create(n *model.Notification) error {
	m.seq++
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationStore) ListForUser(userID uint, role model.UserRole, page, limit int) ([]model.Notification, int64, error) {
	m.lastListPage = page
	m.lastListLimit = limit
	var out []model.Notification
	for _, n := range m.created {
		if (n.ReceiverID != nil && *n.ReceiverID == userID) || n.Role == role || n.Role == model.RoleAll {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockNotificationStore) CountUnread(userID uint, role model.UserRole) (int64, error) {
	list, _, _ := m.ListForUser(userID, role, 1, 100)
	var count int64
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationStore) MarkRead(id string, userID uint, role model.UserRole) error {
	for _, n := range m.created {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return util.ErrNotFound
}

type mockPusher struct {
	userPushes [][]uint
	rolePushes []model.UserRole
}

func (m *mockPusher) PushToUsers(userIDs []uint, msg WSMessage) {
	m.userPushes = append(m.userPushes, userIDs)
}

func (m *mockPusher) PushToRole(role model.UserRole, msg WSMessage) {
	m.rolePushes = append(m.rolePushes, role)
}
