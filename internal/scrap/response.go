package scrap

import (
	"letscrap-backend/internal/models"
)

type ItemResponse struct {
	ItemType string  `json:"item_type"`
	Weight   float64 `json:"weight"`
}

type PartyResponse struct {
	ID    uint    `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

type ScrapRequestResponse struct {
	ID            uint                 `json:"id"`
	UserID        uint                 `json:"user_id"`
	User          *PartyResponse       `json:"user,omitempty"`
	DealerID      *uint                `json:"dealer_id"`
	Dealer        *PartyResponse       `json:"dealer,omitempty"`
	Items         []ItemResponse       `json:"items"`
	TotalWeight   float64              `json:"total_weight"`
	PickupAddress models.Address       `json:"pickup_address"`
	Status        models.RequestStatus `json:"status"`
	TimeSlot      string               `json:"time_slot"`
	PickupDate    *string              `json:"pickup_date"`
	FinalAmount   float64              `json:"final_amount"`
	Rating        *int                 `json:"rating"`
	Review        string               `json:"review,omitempty"`
	CompletedAt   *string              `json:"completed_at"`
	CreatedAt     string               `json:"created_at"`
	UpdatedAt     string               `json:"updated_at"`
}

func toParty(u *models.User) *PartyResponse {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &PartyResponse{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func ToResponse(r *models.ScrapRequest) ScrapRequestResponse {
	items := make([]ItemResponse, 0, len(r.Items))
	var total float64
	for _, it := range r.Items {
		items = append(items, ItemResponse{ItemType: it.ItemType, Weight: it.Weight})
		total += it.Weight
	}

	resp := ScrapRequestResponse{
		ID:            r.ID,
		UserID:        r.UserID,
		User:          toParty(&r.User),
		DealerID:      r.DealerID,
		Dealer:        toParty(r.Dealer),
		Items:         items,
		TotalWeight:   total,
		PickupAddress: r.PickupAddress,
		Status:        r.Status,
		TimeSlot:      r.TimeSlot,
		FinalAmount:   r.FinalAmount,
		Rating:        r.Rating,
		Review:        r.Review,
		CreatedAt:     r.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:     r.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
	if r.PickupDate != nil {
		d := r.PickupDate.Format("2006-01-02")
		resp.PickupDate = &d
	}
	if r.CompletedAt != nil {
		d := r.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &d
	}
	return resp
}

func toResponses(reqs []models.ScrapRequest) []ScrapRequestResponse {
	out := make([]ScrapRequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, ToResponse(&reqs[i]))
	}
	return out
}
