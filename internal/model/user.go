package model

type UserRole string

const (
	Student     UserRole = "student"
	Invigilator UserRole = "invigilator"
	Admin       UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case Student, Invigilator, Admin:
		return true
	}
	return false
}

// swagger:model User
type User struct {
	BaseModel
	Email        string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"size:100;not null" json:"-"`
	FullName     string   `gorm:"size:100;not null" json:"full_name"`
	Role         UserRole `gorm:"size:20;default:'student';index" json:"role"`
	IsActive     bool     `gorm:"default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}
