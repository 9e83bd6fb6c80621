// Package dashboard builds time-bucketed charts over completed pickups.
package dashboard

import (
	"math"
	"time"

	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"

	maxCount = 366
)

type ChartPoint struct {
	Label    string  `json:"label"` // bucket start date
	Pickups  int     `json:"pickups"`
	Earnings float64 `json:"earnings"`
}

type ChartTotals struct {
	Pickups  int     `json:"pickups"`
	Earnings float64 `json:"earnings"`
}

type ChartResponse struct {
	DealerID    *uint        `json:"dealer_id"` // nil = whole platform
	Period      string       `json:"period"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Points      []ChartPoint `json:"points"`
	GrandTotals ChartTotals  `json:"grand_totals"`
}

func defaultCount(period string) int {
	switch period {
	case PeriodWeekly:
		return 8
	case PeriodMonthly:
		return 12
	default:
		return 7
	}
}

// bucketStart truncates t to the start of its day, ISO week (Monday) or month.
func bucketStart(t time.Time, period string) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch period {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

func step(t time.Time, period string, n int) time.Time {
	switch period {
	case PeriodWeekly:
		return t.AddDate(0, 0, 7*n)
	case PeriodMonthly:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// EarningsChart buckets completed pickups over the last count periods ending at now.
// Every bucket is present, empty ones with zeros.
func EarningsChart(dealerID *uint, period string, count int, now time.Time) (*ChartResponse, error) {
	loc := now.Location()
	last := bucketStart(now, period)
	start := step(last, period, -(count - 1))
	end := step(last, period, 1) // exclusive

	q := database.DB.Model(&models.ScrapRequest{}).
		Select("completed_at, final_amount").
		Where("status = ?", models.StatusCompleted).
		Where("completed_at >= ? AND completed_at < ?", start, end)
	if dealerID != nil {
		q = q.Where("dealer_id = ?", *dealerID)
	}

	type row struct {
		CompletedAt time.Time
		FinalAmount float64
	}
	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	points := make([]ChartPoint, count)
	index := make(map[time.Time]int, count)
	for i := 0; i < count; i++ {
		b := step(start, period, i)
		points[i].Label = b.Format("2006-01-02")
		index[b] = i
	}

	var totals ChartTotals
	for _, r := range rows {
		at := r.CompletedAt.In(loc)
		if at.Before(start) || !at.Before(end) {
			continue
		}
		i, ok := index[bucketStart(at, period)]
		if !ok {
			continue
		}
		points[i].Pickups++
		points[i].Earnings += r.FinalAmount
		totals.Pickups++
		totals.Earnings += r.FinalAmount
	}

	for i := range points {
		points[i].Earnings = math.Round(points[i].Earnings*100) / 100
	}
	totals.Earnings = math.Round(totals.Earnings*100) / 100

	return &ChartResponse{
		DealerID:    dealerID,
		Period:      period,
		From:        start.Format("2006-01-02"),
		To:          end.AddDate(0, 0, -1).Format("2006-01-02"),
		Points:      points,
		GrandTotals: totals,
	}, nil
}

// chartScope picks whose pickups are charted: a dealer always sees their own,
// an admin sees the platform or ?dealer_id=.
func chartScope(c *fiber.Ctx, me auth.Identity) (*uint, error) {
	if me.Is(models.RoleDealer) {
		id := me.UserID
		return &id, nil
	}
	if c.Query("dealer_id") == "" {
		return nil, nil
	}
	did := c.QueryInt("dealer_id")
	if did <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid dealer_id")
	}
	id := uint(did)
	return &id, nil
}

// GET /api/dashboard/earnings-chart?period=daily&count=7&dealer_id=3
func EarningsChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		dealerID, err := chartScope(c, me)
		if err != nil {
			return err
		}

		period := c.Query("period", PeriodDaily)
		switch period {
		case PeriodDaily, PeriodWeekly, PeriodMonthly:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "period must be daily, weekly or monthly")
		}

		count := defaultCount(period)
		if c.Query("count") != "" {
			count = c.QueryInt("count")
			if count <= 0 || count > maxCount {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid count")
			}
		}

		resp, err := EarningsChart(dealerID, period, count, time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not build chart")
		}
		return c.JSON(resp)
	}
}
