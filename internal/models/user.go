package models

import "time"

type UserRole string

const (
	RoleUser   UserRole = "user"
	RoleDealer UserRole = "dealer"
	RoleAdmin  UserRole = "admin"
)

type DealerStatus string

const (
	DealerOnline  DealerStatus = "online"
	DealerOffline DealerStatus = "offline"
)

type Address struct {
	Street  string `gorm:"size:255" json:"street"`
	City    string `gorm:"size:100" json:"city"`
	State   string `gorm:"size:100" json:"state"`
	Zip     string `gorm:"size:20" json:"zip"`
	Country string `gorm:"size:100" json:"country"`
}

type User struct {
	ID           uint     `gorm:"primaryKey"`
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null;index"`
	Phone        *string  `gorm:"size:20;uniqueIndex"` // nullable so several accounts can omit it
	Address      Address  `gorm:"embedded;embeddedPrefix:address_"`

	// Dealers only
	DealerStatus DealerStatus `gorm:"size:10;not null;default:offline"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
