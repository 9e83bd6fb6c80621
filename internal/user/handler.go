// Package user serves the caller's own profile.
package user

import (
	"errors"
	"strings"

	"letscrap-backend/internal/audit"
	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UpdateProfileRequest is a partial update; nil fields are left untouched.
type UpdateProfileRequest struct {
	Name    *string         `json:"name" validate:"omitempty,min=1,max=100"`
	Email   *string         `json:"email" validate:"omitempty,email,max=100"`
	Phone   *string         `json:"phone" validate:"omitempty,max=20"`
	Address *models.Address `json:"address"`
}

// ParseUpdate decodes a profile update, normalizing the email before validation.
func ParseUpdate(c *fiber.Ctx) (*UpdateProfileRequest, error) {
	var body UpdateProfileRequest
	if err := c.BodyParser(&body); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if body.Email != nil {
		email := auth.NormalizeEmail(*body.Email)
		body.Email = &email
	}
	if err := validation.Struct(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

// Load fetches an account by id, mapping a missing row to 404.
func Load(id uint) (*models.User, error) {
	var u models.User
	if err := database.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not load user")
	}
	return &u, nil
}

// UpdateProfile applies body to the account me and saves it.
// Email and phone stay unique; dealers cannot clear their phone.
func UpdateProfile(me auth.Identity, body *UpdateProfileRequest) (*models.User, error) {
	u, err := Load(me.UserID)
	if err != nil {
		return nil, err
	}
	before := auth.ToUserResponse(u)

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
		}
		u.Name = name
	}

	if body.Email != nil {
		email := auth.NormalizeEmail(*body.Email)
		if email != u.Email {
			taken, err := auth.EmailTaken(email, u.ID)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not check email")
			}
			if taken {
				return nil, fiber.NewError(fiber.StatusConflict, "Email already in use")
			}
			u.Email = email
		}
	}

	if body.Phone != nil {
		phone := strings.TrimSpace(*body.Phone)
		switch {
		case phone == "" && u.Role == models.RoleDealer:
			return nil, fiber.NewError(fiber.StatusBadRequest, "phone is required for dealers")
		case phone == "":
			u.Phone = nil
		default:
			taken, err := auth.PhoneTaken(phone, u.ID)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not check phone")
			}
			if taken {
				return nil, fiber.NewError(fiber.StatusConflict, "Phone number already registered")
			}
			u.Phone = &phone
		}
	}

	if body.Address != nil {
		u.Address = models.Address{
			Street:  strings.TrimSpace(body.Address.Street),
			City:    strings.TrimSpace(body.Address.City),
			State:   strings.TrimSpace(body.Address.State),
			Zip:     strings.TrimSpace(body.Address.Zip),
			Country: strings.TrimSpace(body.Address.Country),
		}
	}

	if err := database.DB.Save(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fiber.NewError(fiber.StatusConflict, "Email or phone already in use")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not update profile")
	}

	_ = audit.WriteLog(audit.LogOptions{
		UserID:      me.UserID,
		UserName:    u.Name,
		EntityType:  audit.EntityUser,
		EntityID:    u.ID,
		Action:      models.AuditActionUpdate,
		Description: "profile updated",
		Before:      before,
		After:       auth.ToUserResponse(u),
	})
	return u, nil
}

// GET /api/users/profile
func GetProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		u, err := Load(me.UserID)
		if err != nil {
			return err
		}
		return c.JSON(auth.ToUserResponse(u))
	}
}

// PUT /api/users/profile
func UpdateProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		body, err := ParseUpdate(c)
		if err != nil {
			return err
		}

		u, err := UpdateProfile(me, body)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"message": "Profile updated successfully",
			"user":    auth.ToUserResponse(u),
		})
	}
}
