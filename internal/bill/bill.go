// Package bill computes and stores bills dealers hand to households.
package bill

import (
	"math"
	"strings"
	"time"

	"letscrap-backend/internal/models"
)

type ItemRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Price    float64 `json:"price" validate:"gte=0"`
}

type ItemResponse struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	LineTotal float64 `json:"line_total"`
}

type Response struct {
	ID             uint           `json:"id"`
	UserID         uint           `json:"user_id"`
	UserName       string         `json:"user_name,omitempty"`
	DealerID       *uint          `json:"dealer_id"`
	ScrapRequestID *uint          `json:"scrap_request_id"`
	Items          []ItemResponse `json:"items"`
	Subtotal       float64        `json:"subtotal"`
	TotalAmount    float64        `json:"total_amount"`
	GeneratedAt    string         `json:"generated_at"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute prices each line (quantity x price) and sums them into the subtotal.
// The total equals the subtotal; there are no taxes or fees.
func Compute(items []ItemRequest) ([]models.BillItem, float64) {
	lines := make([]models.BillItem, 0, len(items))
	var subtotal float64
	for _, it := range items {
		lt := round2(it.Quantity * it.Price)
		lines = append(lines, models.BillItem{
			Name:      strings.TrimSpace(it.Name),
			Quantity:  it.Quantity,
			Price:     it.Price,
			LineTotal: lt,
		})
		subtotal += lt
	}
	return lines, round2(subtotal)
}

// New assembles an unsaved bill for userID.
func New(userID uint, issuer *uint, requestID *uint, items []ItemRequest, now time.Time) models.Bill {
	lines, subtotal := Compute(items)
	return models.Bill{
		UserID:         userID,
		DealerID:       issuer,
		ScrapRequestID: requestID,
		Items:          lines,
		Subtotal:       subtotal,
		TotalAmount:    subtotal,
		GeneratedAt:    now,
	}
}

func ToResponse(b *models.Bill) Response {
	items := make([]ItemResponse, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, ItemResponse{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			LineTotal: it.LineTotal,
		})
	}
	return Response{
		ID:             b.ID,
		UserID:         b.UserID,
		UserName:       b.User.Name,
		DealerID:       b.DealerID,
		ScrapRequestID: b.ScrapRequestID,
		Items:          items,
		Subtotal:       b.Subtotal,
		TotalAmount:    b.TotalAmount,
		GeneratedAt:    b.GeneratedAt.Format("2006-01-02 15:04:05"),
	}
}
