package model

type UserRole string

const (
	Student   UserRole = "student"
	Admin     UserRole = "admin"
	Principal UserRole = "principal"
)

// swagger:model User
type User struct {
	BaseModel
	Name  string   `gorm:"size:100;not null" json:"name"`
	Email string   `gorm:"size:100;unique;not null" json:"email"`
	Role  UserRole `gorm:"size:20;default:'student'" json:"role"`
	// HasPaidPlatformExam 旧版平台考试统一付费标记，仅作为独立考试的最后一种付费来源
	HasPaidPlatformExam bool `gorm:"default:false" json:"hasPaidPlatformExam"`
}

func (User) TableName() string {
	return "users"
}
