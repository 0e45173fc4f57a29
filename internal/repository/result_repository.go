package repository

import (
	"errors"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) FindByID(id uint) (*model.TermResult, error) {
	var res model.TermResult
	err := r.DB.First(&res, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &res, err
}

func (r *ResultRepository) FindByIdentity(studentID uint, term, session string) (*model.TermResult, error) {
	var res model.TermResult
	err := r.DB.Where("student_id = ? AND term = ? AND session = ?", studentID, term, session).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &res, err
}

// FindFull loads a result with everything the report layer needs.
func (r *ResultRepository) FindFull(studentID uint, term, session string) (*model.TermResult, error) {
	var res model.TermResult
	err := r.DB.Preload("Student").Preload("Student.Class").
		Preload("AffectiveRecords").Preload("PsychomotorRecords").
		Where("student_id = ? AND term = ? AND session = ?", studentID, term, session).
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &res, err
}

// SaveCompiled upserts the result and replaces its affective and psychomotor
// sets wholesale, all inside one transaction.
func (r *ResultRepository) SaveCompiled(res *model.TermResult, affective []model.AffectiveRecord, psychomotor []model.PsychomotorRecord) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if res.ID == 0 {
			if err := tx.Create(res).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Save(res).Error; err != nil {
				return err
			}
		}

		if err := tx.Unscoped().Where("result_id = ?", res.ID).Delete(&model.AffectiveRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("result_id = ?", res.ID).Delete(&model.PsychomotorRecord{}).Error; err != nil {
			return err
		}

		for i := range affective {
			affective[i].ResultID = res.ID
		}
		for i := range psychomotor {
			psychomotor[i].ResultID = res.ID
		}
		if len(affective) > 0 {
			if err := tx.Create(&affective).Error; err != nil {
				return err
			}
		}
		if len(psychomotor) > 0 {
			if err := tx.Create(&psychomotor).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ResultRepository) Save(res *model.TermResult) error {
	return r.DB.Save(res).Error
}

func (r *ResultRepository) ListByClass(classID uint, term, session string) ([]model.TermResult, error) {
	var results []model.TermResult
	err := r.DB.Preload("Student").
		Where("class_id = ? AND term = ? AND session = ?", classID, term, session).
		Order("average desc").
		Find(&results).Error
	return results, err
}

// UpdatePositions writes recomputed ranks for a cohort in one transaction.
func (r *ResultRepository) UpdatePositions(positions map[uint]int, totalStudents int) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for id, pos := range positions {
			err := tx.Model(&model.TermResult{}).Where("id = ?", id).
				Updates(map[string]interface{}{
					"position":       pos,
					"total_students": totalStudents,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
