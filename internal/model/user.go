package model

import (
	"time"
)

type UserRole string

const (
	RoleStudent        UserRole = "student"
	RoleParent         UserRole = "parent"
	RoleSubjectTeacher UserRole = "subject_teacher"
	RoleClassTeacher   UserRole = "class_teacher"
	RoleAdmin          UserRole = "admin"

	// RoleAll is a synthetic broadcast audience, never stored on a user.
	RoleAll UserRole = "all"
)

// roleRank orders the staff hierarchy for "role R or higher" checks.
var roleRank = map[UserRole]int{
	RoleStudent:        0,
	RoleParent:         0,
	RoleSubjectTeacher: 1,
	RoleClassTeacher:   2,
	RoleAdmin:          3,
}

// AtLeast reports whether r carries the capability of required or higher.
func (r UserRole) AtLeast(required UserRole) bool {
	return roleRank[r] >= roleRank[required]
}

// swagger:model User
type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;unique;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('student','parent','subject_teacher','class_teacher','admin');default:'student'" json:"role"`
	Disabled  bool      `gorm:"default:false" json:"disabled"`
	LastLogin time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
	LastSeen  time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
