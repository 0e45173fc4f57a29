package model

import "time"

type ResultStatus string

const (
	ResultDraft     ResultStatus = "draft"
	ResultSubmitted ResultStatus = "submitted"
	ResultApproved  ResultStatus = "approved"
	ResultRejected  ResultStatus = "rejected"
)

// TermResult is the compiled per-student outcome for one term. Average and
// TotalScore are recomputed from submitted scores on every compile pass, never
// hand-edited. Position uses standard competition ranking over the cohort.
//
// swagger:model TermResult
type TermResult struct {
	BaseModel
	StudentID uint   `gorm:"not null;uniqueIndex:idx_result_identity" json:"studentId"`
	Term      string `gorm:"size:20;not null;uniqueIndex:idx_result_identity" json:"term"`
	Session   string `gorm:"size:20;not null;uniqueIndex:idx_result_identity" json:"session"`
	ClassID   uint   `gorm:"not null;index:idx_result_class" json:"classId"`

	TotalScore    float64 `gorm:"not null" json:"totalScore"`
	Average       float64 `gorm:"not null" json:"average"`
	Position      int     `gorm:"default:0" json:"position"`
	TotalStudents int     `gorm:"default:0" json:"totalStudents"`

	TimesPresent int `gorm:"default:0" json:"timesPresent"`
	TimesAbsent  int `gorm:"default:0" json:"timesAbsent"`

	ClassTeacherComment string `gorm:"type:text" json:"classTeacherComment"`
	PrincipalComment    string `gorm:"type:text" json:"principalComment"`

	Status ResultStatus `gorm:"type:enum('draft','submitted','approved','rejected');default:'draft';index" json:"status"`

	SubmittedBy     *uint      `json:"submittedBy,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	ApprovedBy      *uint      `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejectionReason,omitempty"`

	Student            *Student            `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	AffectiveRecords   []AffectiveRecord   `gorm:"foreignKey:ResultID" json:"affectiveRecords,omitempty"`
	PsychomotorRecords []PsychomotorRecord `gorm:"foreignKey:ResultID" json:"psychomotorRecords,omitempty"`
}

func (TermResult) TableName() string {
	return "term_results"
}

// AffectiveRecord rates a non-academic trait (punctuality, neatness...) 1-5.
// The set is replaced wholesale on every compile pass.
type AffectiveRecord struct {
	BaseModel
	ResultID  uint   `gorm:"not null;index" json:"resultId"`
	Attribute string `gorm:"size:100;not null" json:"attribute"`
	Score     int    `gorm:"not null" json:"score"`
	Remark    string `gorm:"size:100" json:"remark"`
}

func (AffectiveRecord) TableName() string {
	return "affective_records"
}

type PsychomotorRecord struct {
	BaseModel
	ResultID  uint   `gorm:"not null;index" json:"resultId"`
	Attribute string `gorm:"size:100;not null" json:"attribute"`
	Score     int    `gorm:"not null" json:"score"`
	Remark    string `gorm:"size:100" json:"remark"`
}

func (PsychomotorRecord) TableName() string {
	return "psychomotor_records"
}
