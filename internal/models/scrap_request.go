package models

import "time"

type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusAccepted  RequestStatus = "Accepted"
	StatusRejected  RequestStatus = "Rejected"
	StatusPickedUp  RequestStatus = "Picked Up"
	StatusCompleted RequestStatus = "Completed"
	StatusCancelled RequestStatus = "Cancelled"
)

// FinishedStatuses are terminal; a request in one of them never changes again.
var FinishedStatuses = []RequestStatus{StatusCompleted, StatusRejected, StatusCancelled}

type ScrapRequest struct {
	ID       uint `gorm:"primaryKey"`
	UserID   uint `gorm:"index;not null"`
	User     User
	DealerID *uint `gorm:"index"`
	Dealer   *User

	Items         []ScrapItem `gorm:"constraint:OnDelete:CASCADE"`
	PickupAddress Address     `gorm:"embedded;embeddedPrefix:pickup_"`

	Status     RequestStatus `gorm:"size:20;not null;default:Pending;index"`
	TimeSlot   string        `gorm:"size:50"`
	PickupDate *time.Time

	FinalAmount float64 `gorm:"not null;default:0"` // dealer payout, counted as earnings once completed
	Rating      *int
	Review      string `gorm:"size:500"`
	RatedAt     *time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ScrapItem struct {
	ID             uint    `gorm:"primaryKey"`
	ScrapRequestID uint    `gorm:"index;not null"`
	ItemType       string  `gorm:"size:50;not null"`
	Weight         float64 `gorm:"not null"` // kg
}
