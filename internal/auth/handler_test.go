package auth

import (
	"fmt"
	"testing"

	"letscrap-backend/internal/config"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/testutil"
	"letscrap-backend/internal/web"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(t *testing.T) (*fiber.App, *config.Config) {
	t.Helper()
	testutil.SetupDB(t)
	cfg := testutil.Config()

	app := web.NewApp()
	api := app.Group("/api")
	api.Post("/auth/register", RegisterHandler())
	api.Post("/auth/register-admin", RegisterAdminHandler())
	api.Post("/auth/login", LoginHandler(cfg))

	protected := api.Group("", JWTMiddleware(cfg))
	protected.Get("/auth/me", MeHandler())
	protected.Get("/dealer-only", RequireRole(models.RoleDealer), func(c *fiber.Ctx) error {
		me, err := Current(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": me.UserID, "name": me.Name})
	})
	return app, cfg
}

func TestRegister(t *testing.T) {
	app, _ := newAuthApp(t)

	code, raw := testutil.Call(t, app, "POST", "/api/auth/register", "", fiber.Map{
		"name": "  Meera  ", "email": " Meera@Example.com ", "password": "secret123",
		"address": fiber.Map{"street": "4 Lake View", "city": "Nagpur"},
	})
	require.Equal(t, fiber.StatusCreated, code, string(raw))
	assert.Contains(t, string(raw), `"role":"user"`)

	var stored models.User
	require.NoError(t, database.DB.Where("email = ?", "meera@example.com").First(&stored).Error)
	assert.Equal(t, "Meera", stored.Name)
	assert.Equal(t, "Nagpur", stored.Address.City)
	assert.NotEqual(t, "secret123", stored.PasswordHash)

	var logs int64
	database.DB.Model(&models.AuditLog{}).Where("entity_id = ? AND action = ?", stored.ID, models.AuditActionCreate).Count(&logs)
	assert.Equal(t, int64(1), logs)
}

func TestRegisterRejects(t *testing.T) {
	app, _ := newAuthApp(t)
	testutil.CreateUser(t, "Taken Name", models.RoleUser)
	dealer := testutil.CreateUser(t, "Known Dealer", models.RoleDealer)

	tests := []struct {
		name string
		body fiber.Map
		code int
	}{
		{"missing email", fiber.Map{"name": "A", "password": "secret123"}, fiber.StatusBadRequest},
		{"bad email", fiber.Map{"name": "A", "email": "nope", "password": "secret123"}, fiber.StatusBadRequest},
		{"short password", fiber.Map{"name": "A", "email": "a@example.com", "password": "123"}, fiber.StatusBadRequest},
		{"admin role", fiber.Map{"name": "A", "email": "a@example.com", "password": "secret123", "role": "admin"}, fiber.StatusBadRequest},
		{"dealer without phone", fiber.Map{"name": "A", "email": "a@example.com", "password": "secret123", "role": "dealer"}, fiber.StatusBadRequest},
		{"duplicate email", fiber.Map{"name": "A", "email": "TAKEN.name@example.com", "password": "secret123"}, fiber.StatusConflict},
		{"duplicate phone", fiber.Map{"name": "A", "email": "a@example.com", "password": "secret123", "role": "dealer", "phone": *dealer.Phone}, fiber.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, raw := testutil.Call(t, app, "POST", "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.code, code, string(raw))
			assert.Contains(t, string(raw), `"error"`)
		})
	}
}

func TestLoginAndMe(t *testing.T) {
	app, cfg := newAuthApp(t)
	dealer := testutil.CreateUser(t, "Sunil Traders", models.RoleDealer)

	code, _ := testutil.Call(t, app, "POST", "/api/auth/login", "", fiber.Map{"email": dealer.Email, "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, code)
	code, _ = testutil.Call(t, app, "POST", "/api/auth/login", "", fiber.Map{"email": "ghost@example.com", "password": "secret123"})
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, raw := testutil.Call(t, app, "POST", "/api/auth/login", "", fiber.Map{"email": "  SUNIL.traders@example.com", "password": testutil.Password})
	require.Equal(t, fiber.StatusOK, code, string(raw))
	login := testutil.Decode[struct {
		Token string `json:"token"`
	}](t, raw)

	claims, err := ParseToken(cfg.JWTSecret, login.Token)
	require.NoError(t, err)
	assert.Equal(t, dealer.ID, claims.UserID)

	code, raw = testutil.Call(t, app, "GET", "/api/auth/me", login.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	me := testutil.Decode[UserResponse](t, raw)
	assert.Equal(t, dealer.ID, me.ID)
	assert.Equal(t, models.DealerOffline, me.DealerStatus)
	assert.NotContains(t, string(raw), "password")
}

func TestMiddleware(t *testing.T) {
	app, cfg := newAuthApp(t)
	u := testutil.CreateUser(t, "Plain User", models.RoleUser)
	d := testutil.CreateUser(t, "Dealer Dan", models.RoleDealer)
	userToken, err := GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &u)
	require.NoError(t, err)
	dealerToken, err := GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &d)
	require.NoError(t, err)

	code, raw := testutil.Call(t, app, "GET", "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Contains(t, string(raw), "Authorization header missing")

	code, _ = testutil.Call(t, app, "GET", "/api/auth/me", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = testutil.Call(t, app, "GET", "/api/dealer-only", userToken, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, raw = testutil.Call(t, app, "GET", "/api/dealer-only", dealerToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"name":"Dealer Dan"}`, d.ID), string(raw))

	// token for an account that no longer exists
	require.NoError(t, database.DB.Delete(&models.User{}, u.ID).Error)
	code, _ = testutil.Call(t, app, "GET", "/api/auth/me", userToken, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestRegisterAdminOnlyOnce(t *testing.T) {
	app, _ := newAuthApp(t)

	code, raw := testutil.Call(t, app, "POST", "/api/auth/register-admin", "", fiber.Map{
		"name": "Root", "email": "root@example.com", "password": "secret123",
	})
	require.Equal(t, fiber.StatusCreated, code, string(raw))
	assert.Contains(t, string(raw), `"role":"admin"`)

	code, raw = testutil.Call(t, app, "POST", "/api/auth/register-admin", "", fiber.Map{
		"name": "Root Two", "email": "root2@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.Contains(t, string(raw), "An admin already exists")

	// the CLI path skips the first-admin check
	second, err := CreateAdmin("Root Two", "root2@example.com", "secret123", false)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, second.Role)

	_, err = CreateAdmin("Dup", "root2@example.com", "secret123", false)
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusConflict, fe.Code)
}

// the pre-insert checks can lose a race; the unique index must still read as a conflict
func TestInsertUserDuplicateIsConflict(t *testing.T) {
	testutil.SetupDB(t)
	existing := testutil.CreateUser(t, "Asha Patil", models.RoleUser)

	err := insertUser(&models.User{
		Name:         "Asha Again",
		Email:        existing.Email,
		PasswordHash: "x",
		Role:         models.RoleUser,
		DealerStatus: models.DealerOffline,
	})
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusConflict, fe.Code)
	assert.Equal(t, "User already exists", fe.Message)

	var n int64
	require.NoError(t, database.DB.Model(&models.User{}).Where("email = ?", existing.Email).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
