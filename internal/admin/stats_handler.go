package admin

import (
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Overview struct {
	UsersByRole      map[models.UserRole]int64      `json:"users_by_role"`
	RequestsByStatus map[models.RequestStatus]int64 `json:"requests_by_status"`
	TotalRequests    int64                          `json:"total_requests"`
	CompletedValue   float64                        `json:"completed_earnings"`
	BillCount        int64                          `json:"bill_count"`
	BillTotal        float64                        `json:"bill_total"`
}

// ComputeOverview runs the grouped aggregates behind the admin dashboard.
func ComputeOverview() (*Overview, error) {
	o := &Overview{
		UsersByRole: map[models.UserRole]int64{
			models.RoleUser: 0, models.RoleDealer: 0, models.RoleAdmin: 0,
		},
		RequestsByStatus: map[models.RequestStatus]int64{},
	}

	type roleRow struct {
		Role  models.UserRole `gorm:"column:role"`
		Count int64           `gorm:"column:count"`
	}
	var roles []roleRow
	if err := database.DB.Model(&models.User{}).
		Select("role, COUNT(*) AS count").Group("role").Scan(&roles).Error; err != nil {
		return nil, err
	}
	for _, r := range roles {
		o.UsersByRole[r.Role] = r.Count
	}

	type statusRow struct {
		Status models.RequestStatus `gorm:"column:status"`
		Count  int64                `gorm:"column:count"`
	}
	var statuses []statusRow
	if err := database.DB.Model(&models.ScrapRequest{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&statuses).Error; err != nil {
		return nil, err
	}
	for _, s := range statuses {
		o.RequestsByStatus[s.Status] = s.Count
		o.TotalRequests += s.Count
	}

	if err := database.DB.Model(&models.ScrapRequest{}).
		Select("COALESCE(SUM(final_amount), 0)").
		Where("status = ?", models.StatusCompleted).
		Scan(&o.CompletedValue).Error; err != nil {
		return nil, err
	}

	type billRow struct {
		Count int64   `gorm:"column:count"`
		Total float64 `gorm:"column:total"`
	}
	var bills billRow
	if err := database.DB.Model(&models.Bill{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total").
		Scan(&bills).Error; err != nil {
		return nil, err
	}
	o.BillCount = bills.Count
	o.BillTotal = bills.Total

	return o, nil
}

// GET /api/admin/stats
func StatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := ComputeOverview()
		if err != nil {
			logging.Error().Err(err).Msg("admin overview failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not compute stats")
		}
		return c.JSON(o)
	}
}
