package repository

import (
	"errors"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"

	"gorm.io/gorm"
)

// DirectoryRepository is the read-only view of the student/class/subject
// roster. This service never writes these tables.
type DirectoryRepository struct {
	DB *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{DB: db}
}

func (r *DirectoryRepository) FindStudent(id uint) (*model.Student, error) {
	var s model.Student
	err := r.DB.Preload("Class").First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &s, err
}

func (r *DirectoryRepository) FindStudentByRegNo(regNo string) (*model.Student, error) {
	var s model.Student
	err := r.DB.Where("reg_no = ?", regNo).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &s, err
}

func (r *DirectoryRepository) ListStudentsByClass(classID uint) ([]model.Student, error) {
	var students []model.Student
	err := r.DB.Where("class_id = ?", classID).Order("last_name asc, first_name asc").Find(&students).Error
	return students, err
}

func (r *DirectoryRepository) FindClass(id uint) (*model.SchoolClass, error) {
	var c model.SchoolClass
	err := r.DB.First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &c, err
}

func (r *DirectoryRepository) FindSubject(id uint) (*model.Subject, error) {
	var s model.Subject
	err := r.DB.First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &s, err
}

func (r *DirectoryRepository) FindSubjectByName(name string) (*model.Subject, error) {
	var s model.Subject
	err := r.DB.Where("name = ? OR code = ?", name, name).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &s, err
}

func (r *DirectoryRepository) ListSubjectsByClass(classID uint, session string) ([]model.Subject, error) {
	var subjects []model.Subject
	err := r.DB.Model(&model.Subject{}).
		Joins("JOIN subject_assignments ON subject_assignments.subject_id = subjects.id").
		Where("subject_assignments.class_id = ? AND subject_assignments.session = ?", classID, session).
		Where("subject_assignments.deleted_at IS NULL").
		Order("subjects.name asc").
		Find(&subjects).Error
	return subjects, err
}

// FindAssignment returns who teaches a subject in a class for a session.
func (r *DirectoryRepository) FindAssignment(classID, subjectID uint, session string) (*model.SubjectAssignment, error) {
	var a model.SubjectAssignment
	err := r.DB.Where("class_id = ? AND subject_id = ? AND session = ?", classID, subjectID, session).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &a, err
}

// ParentOf returns the parent identity linked to a student, nil when no
// linkage exists.
func (r *DirectoryRepository) ParentOf(studentID uint) (*uint, error) {
	var s model.Student
	err := r.DB.Select("parent_id").First(&s, studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.ParentID, nil
}
