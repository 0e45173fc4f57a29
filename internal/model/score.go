package model

type ScoreStatus string

const (
	ScoreDraft     ScoreStatus = "draft"
	ScoreSubmitted ScoreStatus = "submitted"
	ScoreLocked    ScoreStatus = "locked"
)

// Score is the atomic assessment unit: one subject, one student, one term.
// Total is always CA1+CA2+Exam; Grade and Remark are derived from Total and
// never written independently. ClassAverage/Min/Max reflect all scores sharing
// {class, subject, term, session} as of the last batch write, not live reads.
//
// swagger:model Score
type Score struct {
	BaseModel
	StudentID uint   `gorm:"not null;uniqueIndex:idx_score_identity" json:"studentId"`
	SubjectID uint   `gorm:"not null;uniqueIndex:idx_score_identity" json:"subjectId"`
	Term      string `gorm:"size:20;not null;uniqueIndex:idx_score_identity" json:"term"`
	Session   string `gorm:"size:20;not null;uniqueIndex:idx_score_identity" json:"session"`
	ClassID   uint   `gorm:"not null;index:idx_score_class" json:"classId"`

	CA1   float64 `gorm:"not null" json:"ca1"`
	CA2   float64 `gorm:"not null" json:"ca2"`
	Exam  float64 `gorm:"not null" json:"exam"`
	Total float64 `gorm:"not null" json:"total"`

	Grade  string `gorm:"size:2;not null" json:"grade"`
	Remark string `gorm:"size:20;not null" json:"remark"`

	ClassAverage float64 `gorm:"default:0" json:"classAverage"`
	ClassMin     float64 `gorm:"default:0" json:"classMin"`
	ClassMax     float64 `gorm:"default:0" json:"classMax"`

	Status     ScoreStatus `gorm:"type:enum('draft','submitted','locked');default:'draft';index" json:"status"`
	RecordedBy uint        `gorm:"index" json:"recordedBy"`

	Student *Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Subject *Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

func (Score) TableName() string {
	return "scores"
}
