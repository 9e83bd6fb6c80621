package models

import "time"

type Bill struct {
	ID             uint `gorm:"primaryKey"`
	UserID         uint `gorm:"index;not null"`
	User           User
	DealerID       *uint `gorm:"index"` // issuer; nil when an admin generated it
	ScrapRequestID *uint `gorm:"index"`
	Items          []BillItem `gorm:"constraint:OnDelete:CASCADE"`
	Subtotal       float64    `gorm:"not null"`
	TotalAmount    float64    `gorm:"not null"`
	GeneratedAt    time.Time  `gorm:"index;not null"`
	CreatedAt      time.Time
}

type BillItem struct {
	ID        uint    `gorm:"primaryKey"`
	BillID    uint    `gorm:"index;not null"`
	Name      string  `gorm:"size:100;not null"`
	Quantity  float64 `gorm:"not null"`
	Price     float64 `gorm:"not null"`
	LineTotal float64 `gorm:"not null"`
}
