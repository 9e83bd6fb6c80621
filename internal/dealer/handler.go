// Package dealer serves dealer profiles, availability and performance figures.
package dealer

import (
	"errors"

	"letscrap-backend/internal/audit"
	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/user"
	"letscrap-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StatusRequest struct {
	Status models.DealerStatus `json:"status" validate:"required,oneof=online offline"`
}

// CardResponse is what any signed-in caller may see about a dealer.
type CardResponse struct {
	ID           uint                `json:"id"`
	Name         string              `json:"name"`
	Phone        *string             `json:"phone"`
	City         string              `json:"city"`
	DealerStatus models.DealerStatus `json:"dealer_status"`
	Completed    int64               `json:"completed_pickups"`
	RatingSummary
}

func loadDealer(id uint) (*models.User, error) {
	var u models.User
	err := database.DB.Where("id = ? AND role = ?", id, models.RoleDealer).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Dealer not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not load dealer")
	}
	return &u, nil
}

// GET /api/dealers/profile
func GetProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		u, err := loadDealer(me.UserID)
		if err != nil {
			return err
		}
		return c.JSON(auth.ToUserResponse(u))
	}
}

// PUT /api/dealers/profile
func UpdateProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		body, err := user.ParseUpdate(c)
		if err != nil {
			return err
		}

		u, err := user.UpdateProfile(me, body)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"message": "Profile updated successfully",
			"dealer":  auth.ToUserResponse(u),
		})
	}
}

// PUT /api/dealers/status
func UpdateStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		var body StatusRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		u, err := loadDealer(me.UserID)
		if err != nil {
			return err
		}
		prev := u.DealerStatus

		if err := database.DB.Model(u).Update("dealer_status", body.Status).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update status")
		}

		if prev != body.Status {
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      me.UserID,
				UserName:    me.Name,
				EntityType:  audit.EntityUser,
				EntityID:    me.UserID,
				Action:      models.AuditActionStatusChange,
				Description: "dealer " + string(prev) + " -> " + string(body.Status),
			})
		}

		return c.JSON(fiber.Map{
			"message":       "Status updated",
			"dealer_status": body.Status,
		})
	}
}

// GET /api/dealers/stats
func StatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		stats, err := ComputeStats(me.UserID)
		if err != nil {
			logging.Error().Err(err).Uint("dealer_id", me.UserID).Msg("dealer stats failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not compute stats")
		}
		return c.JSON(stats)
	}
}

// GET /api/dealers/:id
func CardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid dealer id")
		}

		u, err := loadDealer(uint(id))
		if err != nil {
			return err
		}

		ratings, err := Ratings(u.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load ratings")
		}

		var completed int64
		err = database.DB.Model(&models.ScrapRequest{}).
			Where("dealer_id = ? AND status = ?", u.ID, models.StatusCompleted).
			Count(&completed).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load dealer")
		}

		return c.JSON(CardResponse{
			ID:            u.ID,
			Name:          u.Name,
			Phone:         u.Phone,
			City:          u.Address.City,
			DealerStatus:  u.DealerStatus,
			Completed:     completed,
			RatingSummary: *ratings,
		})
	}
}
