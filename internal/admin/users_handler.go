// Package admin serves the platform-wide views reserved for administrators.
package admin

import (
	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/admin/users?role=dealer
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.User{})

		if role := models.UserRole(c.Query("role")); role != "" {
			switch role {
			case models.RoleUser, models.RoleDealer, models.RoleAdmin:
				dbq = dbq.Where("role = ?", role)
			default:
				return fiber.NewError(fiber.StatusBadRequest, "role must be one of [user dealer admin]")
			}
		}

		var users []models.User
		if err := dbq.Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch users")
		}

		res := make([]auth.UserResponse, 0, len(users))
		for i := range users {
			res = append(res, auth.ToUserResponse(&users[i]))
		}
		return c.JSON(res)
	}
}
