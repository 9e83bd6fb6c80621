package auth

import (
	"errors"
	"strings"

	"letscrap-backend/internal/audit"
	"letscrap-backend/internal/config"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Email    string          `json:"email" validate:"required,email,max=100"`
	Password string          `json:"password" validate:"required,min=6,max=72"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=user dealer"`
	Phone    string          `json:"phone" validate:"max=20"`
	Address  models.Address  `json:"address"`
}

type RegisterAdminRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID           uint                `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Role         models.UserRole     `json:"role"`
	Phone        *string             `json:"phone"`
	Address      models.Address      `json:"address"`
	DealerStatus models.DealerStatus `json:"dealer_status,omitempty"`
	CreatedAt    string              `json:"created_at"`
}

func ToUserResponse(u *models.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Phone:     u.Phone,
		Address:   u.Address,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if u.Role == models.RoleDealer {
		resp.DealerStatus = u.DealerStatus
	}
	return resp
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// HashPassword bcrypt-hashes a plain password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// EmailTaken reports whether another account (not exceptID) uses email.
func EmailTaken(email string, exceptID uint) (bool, error) {
	var count int64
	err := database.DB.Model(&models.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&count).Error
	return count > 0, err
}

// PhoneTaken reports whether another account (not exceptID) uses phone.
func PhoneTaken(phone string, exceptID uint) (bool, error) {
	var count int64
	err := database.DB.Model(&models.User{}).
		Where("phone = ? AND id <> ?", phone, exceptID).
		Count(&count).Error
	return count > 0, err
}

// insertUser creates u. A unique index hit from a concurrent registration is a 409,
// the same as the pre-insert checks.
func insertUser(u *models.User) error {
	err := database.DB.Create(u).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fiber.NewError(fiber.StatusConflict, "User already exists")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Could not create user")
	}
}

// POST /api/auth/register
func RegisterHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Email = NormalizeEmail(body.Email)
		body.Phone = strings.TrimSpace(body.Phone)
		if body.Role == "" {
			body.Role = models.RoleUser
		}

		if err := validation.Struct(&body); err != nil {
			return err
		}
		if body.Role == models.RoleDealer && body.Phone == "" {
			return fiber.NewError(fiber.StatusBadRequest, "phone is required for dealers")
		}

		taken, err := EmailTaken(body.Email, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check email")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "User already exists")
		}

		var phone *string
		if body.Phone != "" {
			taken, err := PhoneTaken(body.Phone, 0)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not check phone")
			}
			if taken {
				return fiber.NewError(fiber.StatusConflict, "Phone number already registered")
			}
			phone = &body.Phone
		}

		hash, err := HashPassword(body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: hash,
			Role:         body.Role,
			Phone:        phone,
			Address:      body.Address,
			DealerStatus: models.DealerOffline,
		}
		if err := insertUser(&user); err != nil {
			return err
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      user.ID,
			UserName:    user.Name,
			EntityType:  audit.EntityUser,
			EntityID:    user.ID,
			Action:      models.AuditActionCreate,
			Description: "registered as " + string(user.Role),
			After:       ToUserResponse(&user),
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Registered successfully",
			"id":      user.ID,
			"email":   user.Email,
			"role":    user.Role,
		})
	}
}

// POST /api/auth/register-admin
// Only allowed while no admin exists.
func RegisterAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		body.Email = NormalizeEmail(body.Email)
		if err := validation.Struct(&body); err != nil {
			return err
		}

		user, err := CreateAdmin(body.Name, body.Email, body.Password, true)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

// CreateAdmin inserts an admin account. With firstOnly set it refuses when an admin already exists.
func CreateAdmin(name, email, password string, firstOnly bool) (*models.User, error) {
	if firstOnly {
		var count int64
		if err := database.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
			return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not check admins")
		}
		if count > 0 {
			return nil, fiber.NewError(fiber.StatusForbidden, "An admin already exists")
		}
	}

	taken, err := EmailTaken(email, 0)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not check email")
	}
	if taken {
		return nil, fiber.NewError(fiber.StatusConflict, "User already exists")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		DealerStatus: models.DealerOffline,
	}
	if err := insertUser(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		email := NormalizeEmail(body.Email)

		var user models.User
		if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not look up user")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
		}

		token, err := GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create token")
		}

		return c.JSON(fiber.Map{
			"message": "Login successful",
			"token":   token,
			"user": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := Current(c)
		if err != nil {
			return err
		}

		var user models.User
		if err := database.DB.First(&user, me.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "User not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load user")
		}

		return c.JSON(ToUserResponse(&user))
	}
}
