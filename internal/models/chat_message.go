package models

import "time"

type ChatMessage struct {
	ID             uint   `gorm:"primaryKey"`
	ScrapRequestID uint   `gorm:"index;not null"`
	SenderID       uint   `gorm:"not null"`
	SenderName     string `gorm:"size:100;not null"`
	Message        string `gorm:"size:1000;not null"`
	CreatedAt      time.Time
}
