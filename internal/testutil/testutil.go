// Package testutil sets up an in-memory database and accounts for handler tests.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"letscrap-backend/internal/config"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const Password = "secret123"

var phoneSeq atomic.Int64

func Config() *config.Config {
	return &config.Config{
		HTTPPort:      "0",
		ChatPort:      "1",
		JWTSecret:     strings.Repeat("k", 32),
		TokenTTL:      time.Hour,
		CORSOrigins:   "*",
		AuthRateLimit: 1000,
	}
}

// SetupDB points database.DB at a fresh in-memory SQLite database.
func SetupDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		_ = sqlDB.Close()
	})
	return db
}

// CreateUser inserts an account whose password is Password.
func CreateUser(t testing.TB, name string, role models.UserRole) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	u := models.User{
		Name:         name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		DealerStatus: models.DealerOffline,
	}
	if role == models.RoleDealer {
		phone := fmt.Sprintf("98%08d", phoneSeq.Add(1))
		u.Phone = &phone
	}
	require.NoError(t, database.DB.Create(&u).Error)
	return u
}

// CreateRequest inserts a scrap request owned by userID.
func CreateRequest(t testing.TB, userID uint, status models.RequestStatus, dealerID *uint, items ...models.ScrapItem) models.ScrapRequest {
	t.Helper()

	if len(items) == 0 {
		items = []models.ScrapItem{{ItemType: "Paper", Weight: 5}}
	}
	req := models.ScrapRequest{
		UserID:        userID,
		DealerID:      dealerID,
		Items:         items,
		PickupAddress: models.Address{Street: "12 MG Road", City: "Pune"},
		Status:        status,
	}
	require.NoError(t, database.DB.Create(&req).Error)
	return req
}

// Call sends one request through app and returns the status code and raw body.
// body is JSON-encoded unless nil; token is sent as a bearer token unless empty.
func Call(t testing.TB, app *fiber.App, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// Decode unmarshals a response body into T.
func Decode[T any](t testing.TB, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}
