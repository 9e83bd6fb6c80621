package dashboard

import (
	"testing"
	"time"

	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/testutil"
	"letscrap-backend/internal/web"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Thursday
var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func completed(t *testing.T, userID, dealerID uint, at time.Time, amount float64) {
	t.Helper()
	req := testutil.CreateRequest(t, userID, models.StatusCompleted, &dealerID)
	require.NoError(t, database.DB.Model(&req).Updates(map[string]any{
		"completed_at": at,
		"final_amount": amount,
	}).Error)
}

type fixture struct {
	user, dealer, rival models.User
}

func seed(t *testing.T) fixture {
	t.Helper()
	testutil.SetupDB(t)
	f := fixture{
		user:   testutil.CreateUser(t, "Household", models.RoleUser),
		dealer: testutil.CreateUser(t, "Dealer One", models.RoleDealer),
		rival:  testutil.CreateUser(t, "Dealer Two", models.RoleDealer),
	}
	completed(t, f.user.ID, f.dealer.ID, now.Add(-3*time.Hour), 50)
	completed(t, f.user.ID, f.dealer.ID, time.Date(2026, 10, 13, 18, 0, 0, 0, time.UTC), 20.5)
	completed(t, f.user.ID, f.dealer.ID, time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC), 10)
	completed(t, f.user.ID, f.rival.ID, now.Add(-time.Hour), 30)
	// not completed, ignored
	testutil.CreateRequest(t, f.user.ID, models.StatusPickedUp, &f.dealer.ID)
	return f
}

func TestEarningsChartDaily(t *testing.T) {
	f := seed(t)

	chart, err := EarningsChart(&f.dealer.ID, PeriodDaily, 3, now)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-13", chart.From)
	assert.Equal(t, "2026-10-15", chart.To)
	require.Len(t, chart.Points, 3)
	assert.Equal(t, ChartPoint{Label: "2026-10-13", Pickups: 1, Earnings: 20.5}, chart.Points[0])
	assert.Equal(t, ChartPoint{Label: "2026-10-14"}, chart.Points[1])
	assert.Equal(t, ChartPoint{Label: "2026-10-15", Pickups: 1, Earnings: 50}, chart.Points[2])
	assert.Equal(t, ChartTotals{Pickups: 2, Earnings: 70.5}, chart.GrandTotals)

	platform, err := EarningsChart(nil, PeriodDaily, 3, now)
	require.NoError(t, err)
	assert.Nil(t, platform.DealerID)
	assert.Equal(t, ChartTotals{Pickups: 3, Earnings: 100.5}, platform.GrandTotals)
}

func TestEarningsChartWeeklyAndMonthly(t *testing.T) {
	f := seed(t)

	weekly, err := EarningsChart(&f.dealer.ID, PeriodWeekly, 2, now)
	require.NoError(t, err)
	require.Len(t, weekly.Points, 2)
	assert.Equal(t, "2026-10-05", weekly.Points[0].Label)
	assert.Equal(t, 0, weekly.Points[0].Pickups)
	assert.Equal(t, "2026-10-12", weekly.Points[1].Label)
	assert.Equal(t, 3, weekly.Points[1].Pickups)
	assert.Equal(t, "2026-10-18", weekly.To)

	monthly, err := EarningsChart(nil, PeriodMonthly, 2, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", monthly.From)
	assert.Equal(t, "2026-10-31", monthly.To)
	assert.Equal(t, ChartTotals{Pickups: 4, Earnings: 110.5}, monthly.GrandTotals)
}

func TestEarningsChartIgnoresPickupsOutsideWindow(t *testing.T) {
	f := seed(t)
	completed(t, f.user.ID, f.dealer.ID, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), 999)
	completed(t, f.user.ID, f.dealer.ID, time.Date(2026, 10, 12, 23, 59, 59, 0, time.UTC), 999)
	completed(t, f.user.ID, f.dealer.ID, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), 999)
	completed(t, f.user.ID, f.dealer.ID, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), 4.5)

	chart, err := EarningsChart(&f.dealer.ID, PeriodDaily, 3, now)
	require.NoError(t, err)
	assert.Equal(t, ChartTotals{Pickups: 3, Earnings: 75}, chart.GrandTotals)
	assert.Equal(t, ChartPoint{Label: "2026-10-13", Pickups: 2, Earnings: 25}, chart.Points[0])
}

func TestBucketStart(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), bucketStart(sunday, PeriodWeekly))
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), bucketStart(sunday, PeriodMonthly))
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), bucketStart(sunday, PeriodDaily))
}

func TestEarningsChartHandler(t *testing.T) {
	f := seed(t)
	cfg := testutil.Config()

	app := web.NewApp()
	api := app.Group("/api", auth.JWTMiddleware(cfg))
	api.Get("/dashboard/earnings-chart", auth.RequireRole(models.RoleDealer, models.RoleAdmin), EarningsChartHandler())

	admin := testutil.CreateUser(t, "Site Admin", models.RoleAdmin)
	token := func(u models.User) string {
		s, err := auth.GenerateToken(cfg.JWTSecret, cfg.TokenTTL, &u)
		require.NoError(t, err)
		return s
	}

	code, _ := testutil.Call(t, app, "GET", "/api/dashboard/earnings-chart", token(f.user), nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, raw := testutil.Call(t, app, "GET", "/api/dashboard/earnings-chart?period=monthly&count=1", token(f.dealer), nil)
	require.Equal(t, fiber.StatusOK, code, string(raw))
	resp := testutil.Decode[ChartResponse](t, raw)
	require.NotNil(t, resp.DealerID)
	assert.Equal(t, f.dealer.ID, *resp.DealerID)
	assert.Len(t, resp.Points, 1)

	// a dealer cannot widen the scope
	code, raw = testutil.Call(t, app, "GET", "/api/dashboard/earnings-chart?dealer_id=999", token(f.dealer), nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, f.dealer.ID, *testutil.Decode[ChartResponse](t, raw).DealerID)

	code, raw = testutil.Call(t, app, "GET", "/api/dashboard/earnings-chart", token(admin), nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, testutil.Decode[ChartResponse](t, raw).Points, 7)

	for _, q := range []string{"?period=yearly", "?count=0", "?count=1000", "?dealer_id=abc"} {
		code, _ = testutil.Call(t, app, "GET", "/api/dashboard/earnings-chart"+q, token(admin), nil)
		assert.Equal(t, fiber.StatusBadRequest, code, q)
	}
}
