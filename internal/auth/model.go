package auth

import (
	"time"
)

// UserRole is a named role seeded at boot (superadmin, franchiseowner, stationmanager, customer)
type UserRole struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RoleName    string    `gorm:"size:50;uniqueIndex;not null" json:"role_name"`
	Description string    `gorm:"size:255" json:"description"`
	CanRegister bool      `gorm:"default:true" json:"can_register"` // superadmin cannot self-register
	CreatedAt   time.Time `json:"created_at"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FullName     string    `gorm:"size:150;not null" json:"full_name"`
	Email        string    `gorm:"size:150;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Phone        string    `gorm:"size:20" json:"phone"`
	RoleID       uint      `gorm:"not null;index" json:"role_id"`
	Role         UserRole  `gorm:"foreignKey:RoleID" json:"role"`
	Status       string    `gorm:"size:20;default:'active'" json:"status"` // active / inactive
	StationID    *uint     `gorm:"index" json:"station_id,omitempty"`      // managed station, for stationmanager
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PublicRoleResponse struct {
	ID       uint   `json:"id"`
	RoleName string `json:"role_name"`
}
