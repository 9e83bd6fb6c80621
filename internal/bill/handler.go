package bill

import (
	"errors"
	"fmt"
	"time"

	"letscrap-backend/internal/audit"
	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/metrics"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type GenerateRequest struct {
	UserID         uint          `json:"user_id" validate:"required"`
	ScrapRequestID *uint         `json:"scrap_request_id"`
	Items          []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// POST /api/bills/generate (dealer or admin)
func GenerateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		var body GenerateRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		var customer models.User
		if err := database.DB.First(&customer, body.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "User not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load user")
		}

		var issuer *uint
		if me.Is(models.RoleDealer) {
			id := me.UserID
			issuer = &id
		}

		var linked *models.ScrapRequest
		if body.ScrapRequestID != nil {
			var r models.ScrapRequest
			if err := database.DB.First(&r, *body.ScrapRequestID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fiber.NewError(fiber.StatusNotFound, "Scrap request not found")
				}
				return fiber.NewError(fiber.StatusInternalServerError, "Could not load scrap request")
			}
			if r.UserID != customer.ID {
				return fiber.NewError(fiber.StatusBadRequest, "Scrap request does not belong to this user")
			}
			if issuer != nil && (r.DealerID == nil || *r.DealerID != *issuer) {
				return fiber.NewError(fiber.StatusForbidden, "Scrap request is not assigned to you")
			}
			linked = &r
		}

		b := New(customer.ID, issuer, body.ScrapRequestID, body.Items, time.Now())

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
			if linked != nil {
				return tx.Model(&models.ScrapRequest{}).
					Where("id = ?", linked.ID).
					Update("final_amount", b.TotalAmount).Error
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Error generating bill")
		}
		metrics.BillsGenerated.Inc()

		b.User = customer
		resp := ToResponse(&b)

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      me.UserID,
			UserName:    me.Name,
			EntityType:  audit.EntityBill,
			EntityID:    b.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("bill of %.2f for %s", b.TotalAmount, customer.Name),
			After:       resp,
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Bill generated successfully",
			"bill":    resp,
		})
	}
}

// GET /api/bills?user_id=
func ListHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Preload("Items").Preload("User")
		switch me.Role {
		case models.RoleUser:
			dbq = dbq.Where("user_id = ?", me.UserID)
		case models.RoleDealer:
			dbq = dbq.Where("dealer_id = ?", me.UserID)
		case models.RoleAdmin:
			if uid := c.QueryInt("user_id"); uid > 0 {
				dbq = dbq.Where("user_id = ?", uid)
			}
		default:
			return fiber.NewError(fiber.StatusForbidden, "Unknown role")
		}

		var bills []models.Bill
		if err := dbq.Order("generated_at DESC, id DESC").Find(&bills).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch bills")
		}

		res := make([]Response, 0, len(bills))
		for i := range bills {
			res = append(res, ToResponse(&bills[i]))
		}
		return c.JSON(res)
	}
}

// GET /api/bills/:id
func GetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid bill id")
		}

		var b models.Bill
		if err := database.DB.Preload("Items").Preload("User").First(&b, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Bill not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load bill")
		}

		issuer := b.DealerID != nil && *b.DealerID == me.UserID
		if !me.Is(models.RoleAdmin) && b.UserID != me.UserID && !issuer {
			return fiber.NewError(fiber.StatusForbidden, "You cannot view this bill")
		}
		return c.JSON(ToResponse(&b))
	}
}
