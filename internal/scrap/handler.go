package scrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"letscrap-backend/internal/audit"
	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/authz"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/events"
	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/metrics"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ItemRequest struct {
	ItemType string  `json:"item_type" validate:"required,max=50"`
	Weight   float64 `json:"weight" validate:"gt=0"`
}

type AddressRequest struct {
	Street string `json:"street" validate:"required,max=255"`
	City   string `json:"city" validate:"max=100"`
	State  string `json:"state" validate:"max=100"`
	Zip    string `json:"zip" validate:"max=20"`
}

type CreateScrapRequestRequest struct {
	Items         []ItemRequest  `json:"items" validate:"required,min=1,dive"`
	PickupAddress AddressRequest `json:"pickup_address"`
	TimeSlot      string         `json:"time_slot" validate:"max=50"`
	PickupDate    string         `json:"pickup_date" validate:"omitempty,datetime=2006-01-02"` // "2025-12-09"
}

type UpdateStatusRequest struct {
	Status      models.RequestStatus `json:"status" validate:"required"`
	DealerID    *uint                `json:"dealer_id"`                            // admin accepting on behalf of a dealer
	FinalAmount *float64             `json:"final_amount" validate:"omitempty,gte=0"` // on completion
}

type RateRequest struct {
	Rating int    `json:"rating" validate:"gte=1,lte=5"`
	Review string `json:"review" validate:"max=500"`
}

// IsParticipant reports whether userID owns the request or is its assigned dealer.
func IsParticipant(userID uint, r *models.ScrapRequest) bool {
	return r.UserID == userID || (r.DealerID != nil && *r.DealerID == userID)
}

func canView(me auth.Identity, r *models.ScrapRequest) bool {
	switch {
	case me.Is(models.RoleAdmin):
		return true
	case IsParticipant(me.UserID, r):
		return true
	case me.Is(models.RoleDealer) && r.Status == models.StatusPending:
		return true
	}
	return false
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Items").Preload("User").Preload("Dealer")
}

// Load fetches a request with items and parties, mapping a missing row to 404.
func Load(id uint) (*models.ScrapRequest, error) {
	var r models.ScrapRequest
	if err := withDetails(database.DB).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Scrap request not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not load scrap request")
	}
	return &r, nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

func statusFilter(c *fiber.Ctx, dbq *gorm.DB) (*gorm.DB, error) {
	s := models.RequestStatus(c.Query("status"))
	if s == "" {
		return dbq, nil
	}
	if !ValidStatus(s) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Unknown status")
	}
	return dbq.Where("scrap_requests.status = ?", s), nil
}

// POST /api/scrap-requests (user)
func CreateScrapRequestHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		var body CreateScrapRequestRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		items := make([]models.ScrapItem, 0, len(body.Items))
		for _, it := range body.Items {
			items = append(items, models.ScrapItem{
				ItemType: strings.TrimSpace(it.ItemType),
				Weight:   it.Weight,
			})
		}

		req := models.ScrapRequest{
			UserID: me.UserID,
			Items:  items,
			PickupAddress: models.Address{
				Street: strings.TrimSpace(body.PickupAddress.Street),
				City:   strings.TrimSpace(body.PickupAddress.City),
				State:  strings.TrimSpace(body.PickupAddress.State),
				Zip:    strings.TrimSpace(body.PickupAddress.Zip),
			},
			Status:   models.StatusPending,
			TimeSlot: strings.TrimSpace(body.TimeSlot),
		}
		if body.PickupDate != "" {
			d, err := time.Parse("2006-01-02", body.PickupDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "pickup_date must be YYYY-MM-DD")
			}
			req.PickupDate = &d
		}

		if err := database.DB.Create(&req).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to create scrap request")
		}
		metrics.ScrapRequestsCreated.Inc()

		created, err := Load(req.ID)
		if err != nil {
			return err
		}
		resp := ToResponse(created)

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      me.UserID,
			UserName:    me.Name,
			EntityType:  audit.EntityScrapRequest,
			EntityID:    req.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("scrap request with %d item(s)", len(items)),
			After:       resp,
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Scrap request created successfully",
			"request": resp,
		})
	}
}

// GET /api/scrap-requests?status=Pending
// Users see their own requests, dealers see open requests plus their own jobs, admins see all.
func ListScrapRequestsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		dbq := withDetails(database.DB.Model(&models.ScrapRequest{}))
		switch me.Role {
		case models.RoleUser:
			dbq = dbq.Where("user_id = ?", me.UserID)
		case models.RoleDealer:
			dbq = dbq.Where("status = ? OR dealer_id = ?", models.StatusPending, me.UserID)
		case models.RoleAdmin:
		default:
			return fiber.NewError(fiber.StatusForbidden, "Unknown role")
		}

		if dbq, err = statusFilter(c, dbq); err != nil {
			return err
		}

		var reqs []models.ScrapRequest
		if err := dbq.Order("created_at DESC, id DESC").Find(&reqs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch scrap requests")
		}
		return c.JSON(toResponses(reqs))
	}
}

// GET /api/scrap-requests/history
func HistoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}

		var reqs []models.ScrapRequest
		err = withDetails(database.DB).
			Where("user_id = ? OR dealer_id = ?", me.UserID, me.UserID).
			Where("status IN ?", models.FinishedStatuses).
			Order("updated_at DESC, id DESC").
			Find(&reqs).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch history")
		}
		return c.JSON(toResponses(reqs))
	}
}

// GET /api/scrap-requests/user/:userId (self or admin)
func UserRequestsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		userID, err := paramID(c, "userId")
		if err != nil {
			return err
		}
		if userID != me.UserID && !me.Is(models.RoleAdmin) {
			return fiber.NewError(fiber.StatusForbidden, "You can only view your own requests")
		}

		dbq := withDetails(database.DB.Model(&models.ScrapRequest{})).Where("user_id = ?", userID)
		if dbq, err = statusFilter(c, dbq); err != nil {
			return err
		}

		var reqs []models.ScrapRequest
		if err := dbq.Order("created_at DESC, id DESC").Find(&reqs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch user requests")
		}
		return c.JSON(toResponses(reqs))
	}
}

// GET /api/scrap-requests/:id
func GetScrapRequestHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}

		r, err := Load(id)
		if err != nil {
			return err
		}
		if !canView(me, r) {
			return fiber.NewError(fiber.StatusForbidden, "You cannot view this request")
		}
		return c.JSON(ToResponse(r))
	}
}

// PUT /api/scrap-requests/:id/status
func UpdateStatusHandler(enf *authz.Enforcer, pub events.Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}

		var body UpdateStatusRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		if !ValidStatus(body.Status) {
			return fiber.NewError(fiber.StatusBadRequest, "Unknown target status")
		}

		r, err := Load(id)
		if err != nil {
			return err
		}
		from := r.Status

		// Pending is never a target, so it always fails here
		if !CanTransition(from, body.Status) {
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("Cannot change status from %s to %s", from, body.Status))
		}

		action, _ := ActionFor(body.Status)
		if !enf.Allowed(me.Role, authz.ResourceScrapRequest, action) {
			return fiber.NewError(fiber.StatusForbidden, "You are not allowed to set this status")
		}

		updates := map[string]interface{}{"status": body.Status}

		switch body.Status {
		case models.StatusAccepted:
			dealerID, err := acceptingDealer(me, body.DealerID)
			if err != nil {
				return err
			}
			updates["dealer_id"] = dealerID

		case models.StatusPickedUp, models.StatusCompleted:
			if me.Is(models.RoleDealer) && (r.DealerID == nil || *r.DealerID != me.UserID) {
				return fiber.NewError(fiber.StatusForbidden, "Only the assigned dealer can update this request")
			}
			if body.Status == models.StatusCompleted {
				updates["completed_at"] = time.Now()
				if body.FinalAmount != nil {
					updates["final_amount"] = *body.FinalAmount
				}
			}

		case models.StatusCancelled:
			if me.Is(models.RoleUser) && r.UserID != me.UserID {
				return fiber.NewError(fiber.StatusForbidden, "Only the owner can cancel this request")
			}
		}

		// conditional on the status we validated against, so concurrent changes lose cleanly
		res := database.DB.Model(&models.ScrapRequest{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update scrap request")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusConflict, "Scrap request was changed by someone else, reload and retry")
		}
		metrics.StatusTransitions.WithLabelValues(string(body.Status)).Inc()

		updated, err := Load(id)
		if err != nil {
			return err
		}
		resp := ToResponse(updated)

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      me.UserID,
			UserName:    me.Name,
			EntityType:  audit.EntityScrapRequest,
			EntityID:    id,
			Action:      models.AuditActionStatusChange,
			Description: fmt.Sprintf("%s -> %s", from, body.Status),
			Before:      ToResponse(r),
			After:       resp,
		})

		ev := events.StatusChanged{
			RequestID: id,
			UserID:    updated.UserID,
			DealerID:  updated.DealerID,
			From:      from,
			Status:    updated.Status,
			ChangedBy: me.UserID,
			ChangedAt: updated.UpdatedAt,
		}
		if err := pub.PublishStatusChanged(c.UserContext(), ev); err != nil {
			logging.Warn().Err(err).Uint("request_id", id).Msg("status event not published")
		}

		return c.JSON(fiber.Map{
			"message": "Scrap request updated successfully",
			"request": resp,
		})
	}
}

// acceptingDealer resolves who takes the job: the caller when a dealer, the named dealer when an admin.
func acceptingDealer(me auth.Identity, bodyDealerID *uint) (uint, error) {
	if me.Is(models.RoleDealer) {
		return me.UserID, nil
	}
	if bodyDealerID == nil || *bodyDealerID == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "dealer_id is required")
	}

	var dealer models.User
	err := database.DB.Where("id = ? AND role = ?", *bodyDealerID, models.RoleDealer).First(&dealer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fiber.NewError(fiber.StatusBadRequest, "dealer_id does not belong to a dealer")
		}
		return 0, fiber.NewError(fiber.StatusInternalServerError, "Could not load dealer")
	}
	return dealer.ID, nil
}

// POST /api/scrap-requests/:id/rating
func RateHandler(enf *authz.Enforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		if !enf.Allowed(me.Role, authz.ResourceScrapRequest, authz.ActionRate) {
			return fiber.NewError(fiber.StatusForbidden, "You are not allowed to rate requests")
		}
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}

		var body RateRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		r, err := Load(id)
		if err != nil {
			return err
		}
		if r.UserID != me.UserID {
			return fiber.NewError(fiber.StatusForbidden, "Only the owner can rate this request")
		}
		if r.Status != models.StatusCompleted {
			return fiber.NewError(fiber.StatusConflict, "Only completed requests can be rated")
		}
		if r.Rating != nil {
			return fiber.NewError(fiber.StatusConflict, "Request already rated")
		}

		now := time.Now()
		res := database.DB.Model(&models.ScrapRequest{}).
			Where("id = ? AND rating IS NULL", id).
			Updates(map[string]interface{}{
				"rating":   body.Rating,
				"review":   strings.TrimSpace(body.Review),
				"rated_at": now,
			})
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to save rating")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusConflict, "Request already rated")
		}

		updated, err := Load(id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"message": "Thanks for rating your pickup",
			"request": ToResponse(updated),
		})
	}
}

// DELETE /api/scrap-requests/:id
// Owners may withdraw a request while it is still Pending; admins may delete any request.
func DeleteScrapRequestHandler(enf *authz.Enforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		if !enf.Allowed(me.Role, authz.ResourceScrapRequest, authz.ActionDelete) {
			return fiber.NewError(fiber.StatusForbidden, "You cannot delete this request")
		}
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}

		r, err := Load(id)
		if err != nil {
			return err
		}

		if !me.Is(models.RoleAdmin) {
			if r.UserID != me.UserID {
				return fiber.NewError(fiber.StatusForbidden, "You cannot delete this request")
			}
			if r.Status != models.StatusPending {
				return fiber.NewError(fiber.StatusConflict, "Only pending requests can be deleted")
			}
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("scrap_request_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
				return err
			}
			if err := tx.Where("scrap_request_id = ?", id).Delete(&models.ScrapItem{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.ScrapRequest{}, id).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete scrap request")
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      me.UserID,
			UserName:    me.Name,
			EntityType:  audit.EntityScrapRequest,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "deleted in status " + string(r.Status),
			Before:      ToResponse(r),
		})

		return c.JSON(fiber.Map{"message": "Scrap request deleted successfully"})
	}
}
