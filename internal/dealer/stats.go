package dealer

import (
	"math"

	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"
)

type RatingSummary struct {
	Average      float64       `json:"average_rating"`
	Count        int64         `json:"rating_count"`
	Distribution map[int]int64 `json:"rating_distribution"` // 1..5, always all keys
}

type Stats struct {
	DealerID        uint    `json:"dealer_id"`
	TotalAssigned   int64   `json:"total_requests"`
	Accepted        int64   `json:"accepted"`
	PickedUp        int64   `json:"picked_up"`
	Completed       int64   `json:"completed"`
	Cancelled       int64   `json:"cancelled"`
	TotalEarnings   float64 `json:"total_earnings"`
	WeightCollected float64 `json:"total_weight"`
	RatingSummary
}

// ComputeStats aggregates a dealer's assigned requests in the database.
func ComputeStats(dealerID uint) (*Stats, error) {
	stats := &Stats{DealerID: dealerID}

	type statusRow struct {
		Status models.RequestStatus `gorm:"column:status"`
		Count  int64                `gorm:"column:count"`
	}
	var statusRows []statusRow
	err := database.DB.Model(&models.ScrapRequest{}).
		Select("status, COUNT(*) AS count").
		Where("dealer_id = ?", dealerID).
		Group("status").
		Scan(&statusRows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range statusRows {
		stats.TotalAssigned += r.Count
		switch r.Status {
		case models.StatusAccepted:
			stats.Accepted = r.Count
		case models.StatusPickedUp:
			stats.PickedUp = r.Count
		case models.StatusCompleted:
			stats.Completed = r.Count
		case models.StatusCancelled:
			stats.Cancelled = r.Count
		}
	}

	err = database.DB.Model(&models.ScrapRequest{}).
		Select("COALESCE(SUM(final_amount), 0)").
		Where("dealer_id = ? AND status = ?", dealerID, models.StatusCompleted).
		Scan(&stats.TotalEarnings).Error
	if err != nil {
		return nil, err
	}

	err = database.DB.Model(&models.ScrapItem{}).
		Select("COALESCE(SUM(scrap_items.weight), 0)").
		Joins("JOIN scrap_requests ON scrap_requests.id = scrap_items.scrap_request_id").
		Where("scrap_requests.dealer_id = ? AND scrap_requests.status = ?", dealerID, models.StatusCompleted).
		Scan(&stats.WeightCollected).Error
	if err != nil {
		return nil, err
	}

	summary, err := Ratings(dealerID)
	if err != nil {
		return nil, err
	}
	stats.RatingSummary = *summary
	return stats, nil
}

// Ratings returns the rating count, distribution and average (2 dp, 0 when unrated).
func Ratings(dealerID uint) (*RatingSummary, error) {
	type ratingRow struct {
		Rating int   `gorm:"column:rating"`
		Count  int64 `gorm:"column:count"`
	}
	var rows []ratingRow
	err := database.DB.Model(&models.ScrapRequest{}).
		Select("rating, COUNT(*) AS count").
		Where("dealer_id = ? AND rating IS NOT NULL", dealerID).
		Group("rating").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	s := &RatingSummary{Distribution: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	var sum int64
	for _, r := range rows {
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		s.Distribution[r.Rating] = r.Count
		s.Count += r.Count
		sum += int64(r.Rating) * r.Count
	}
	if s.Count > 0 {
		s.Average = math.Round(float64(sum)/float64(s.Count)*100) / 100
	}
	return s, nil
}
