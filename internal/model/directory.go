package model

// Directory entities: the student/class/subject roster this service reads but
// does not administer. Enrollment, admissions and transfers live elsewhere.

// swagger:model Student
type Student struct {
	BaseModel
	RegNo     string `gorm:"size:50;uniqueIndex;not null" json:"regNo"`
	FirstName string `gorm:"size:100;not null" json:"firstName"`
	LastName  string `gorm:"size:100;not null" json:"lastName"`
	Gender    string `gorm:"size:10" json:"gender"`
	ClassID   uint   `gorm:"index;not null" json:"classId"`
	ParentID  *uint  `gorm:"index" json:"parentId,omitempty"`

	Class  *SchoolClass `gorm:"foreignKey:ClassID" json:"class,omitempty"`
	Parent *User        `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
}

func (Student) TableName() string {
	return "students"
}

func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// swagger:model SchoolClass
type SchoolClass struct {
	BaseModel
	Name           string `gorm:"size:100;not null" json:"name"`
	Level          string `gorm:"size:50" json:"level"`
	ClassTeacherID *uint  `gorm:"index" json:"classTeacherId,omitempty"`

	ClassTeacher *User `gorm:"foreignKey:ClassTeacherID" json:"classTeacher,omitempty"`
}

func (SchoolClass) TableName() string {
	return "school_classes"
}

// swagger:model Subject
type Subject struct {
	BaseModel
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Code string `gorm:"size:20;uniqueIndex;not null" json:"code"`
}

func (Subject) TableName() string {
	return "subjects"
}

// SubjectAssignment binds (class, subject, teacher, session): who may record
// scores for that pairing.
type SubjectAssignment struct {
	BaseModel
	ClassID   uint   `gorm:"not null;uniqueIndex:idx_assignment_identity" json:"classId"`
	SubjectID uint   `gorm:"not null;uniqueIndex:idx_assignment_identity" json:"subjectId"`
	Session   string `gorm:"size:20;not null;uniqueIndex:idx_assignment_identity" json:"session"`
	TeacherID uint   `gorm:"index;not null" json:"teacherId"`

	Class   *SchoolClass `gorm:"foreignKey:ClassID" json:"class,omitempty"`
	Subject *Subject     `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Teacher *User        `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
}

func (SubjectAssignment) TableName() string {
	return "subject_assignments"
}
