package repository

import (
	"errors"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"

	"gorm.io/gorm"
)

type ScoreRepository struct {
	DB *gorm.DB
}

func NewScoreRepository(db *gorm.DB) *ScoreRepository {
	return &ScoreRepository{DB: db}
}

func (r *ScoreRepository) FindByIdentity(studentID, subjectID uint, term, session string) (*model.Score, error) {
	var s model.Score
	err := r.DB.Where("student_id = ? AND subject_id = ? AND term = ? AND session = ?",
		studentID, subjectID, term, session).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &s, err
}

func (r *ScoreRepository) FindByIDs(ids []uint) ([]model.Score, error) {
	var scores []model.Score
	err := r.DB.Where("id IN ?", ids).Find(&scores).Error
	return scores, err
}

// Upsert creates or overwrites the score for its identity in one transaction.
// The caller has already merged derived fields into s.
func (r *ScoreRepository) Upsert(s *model.Score) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.Score
		err := tx.Where("student_id = ? AND subject_id = ? AND term = ? AND session = ?",
			s.StudentID, s.SubjectID, s.Term, s.Session).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(s).Error
		}
		if err != nil {
			return err
		}
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
		return tx.Save(s).Error
	})
}

func (r *ScoreRepository) ListByClassSubject(classID, subjectID uint, term, session string) ([]model.Score, error) {
	var scores []model.Score
	err := r.DB.Where("class_id = ? AND subject_id = ? AND term = ? AND session = ?",
		classID, subjectID, term, session).Find(&scores).Error
	return scores, err
}

// ListByClass returns every score in a class for a term, used by the
// broadsheet export.
func (r *ScoreRepository) ListByClass(classID uint, term, session string) ([]model.Score, error) {
	var scores []model.Score
	err := r.DB.Where("class_id = ? AND term = ? AND session = ?", classID, term, session).Find(&scores).Error
	return scores, err
}

// UpdateClassStats writes the batch-derived statistics back across every score
// sharing the {class, subject, term, session} grouping in a single statement.
func (r *ScoreRepository) UpdateClassStats(classID, subjectID uint, term, session string, average, min, max float64) error {
	return r.DB.Model(&model.Score{}).
		Where("class_id = ? AND subject_id = ? AND term = ? AND session = ?", classID, subjectID, term, session).
		Updates(map[string]interface{}{
			"class_average": average,
			"class_min":     min,
			"class_max":     max,
		}).Error
}

func (r *ScoreRepository) UpdateStatus(ids []uint, status model.ScoreStatus) error {
	return r.DB.Model(&model.Score{}).Where("id IN ?", ids).Update("status", status).Error
}

func (r *ScoreRepository) ListSubmittedByStudent(studentID uint, term, session string) ([]model.Score, error) {
	var scores []model.Score
	err := r.DB.Preload("Subject").
		Where("student_id = ? AND term = ? AND session = ? AND status IN ?",
			studentID, term, session, []model.ScoreStatus{model.ScoreSubmitted, model.ScoreLocked}).
		Find(&scores).Error
	return scores, err
}

// DistinctSubmittedStudents returns the ids of every student in the class with
// at least one submitted score for the term, defining the ranking cohort.
func (r *ScoreRepository) DistinctSubmittedStudents(classID uint, term, session string) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Score{}).
		Where("class_id = ? AND term = ? AND session = ? AND status IN ?",
			classID, term, session, []model.ScoreStatus{model.ScoreSubmitted, model.ScoreLocked}).
		Distinct().
		Pluck("student_id", &ids).Error
	return ids, err
}
