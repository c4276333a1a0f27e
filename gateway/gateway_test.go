package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/gateway"
	"github.com/evansochadeka/BenFarm/pkg/app"
	"github.com/evansochadeka/BenFarm/pkg/assistant"
	"github.com/evansochadeka/BenFarm/pkg/checkout"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
	"github.com/evansochadeka/BenFarm/pkg/weather"
)

type fakeText struct{ reply string }

func (f fakeText) Generate(context.Context, assistant.Prompt) (string, error) {
	return f.reply, nil
}

type fakeWeather struct{}

func (fakeWeather) Current(_ context.Context, location string) (*weather.Conditions, error) {
	return &weather.Conditions{Location: location, Temp: 24, Humidity: 55, Description: "clear sky"}, nil
}

func (fakeWeather) Forecast(context.Context, string) ([]weather.ForecastEntry, error) {
	return nil, nil
}

type server struct {
	t       *testing.T
	app     *app.App
	handler http.Handler
}

func newServer(t *testing.T, mutate ...func(*config.Config)) *server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Assistant.RatePerMin = 100
	for _, m := range mutate {
		m(cfg)
	}
	a, err := app.New(context.Background(), cfg, zap.NewNop(),
		app.WithDB(testutil.DB(t)),
		app.WithTextClient(fakeText{reply: "Use certified seed and rotate crops."}),
		app.WithWeatherClient(fakeWeather{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &server{t: t, app: a, handler: gateway.NewGateway(a).Handler()}
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

var signups int64

// signup registers a user with role and returns a session token.
func (s *server) signup(role models.Role) (string, *models.User) {
	s.t.Helper()
	email := fmt.Sprintf("%s%d@example.com", role, atomic.AddInt64(&signups, 1))
	w := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "full_name": "Test " + string(role), "role": string(role),
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	decode(s.t, w, &out)
	require.NotEmpty(s.t, out.Token)
	return out.Token, out.User
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	token, user := s.signup(models.RoleFarmer)

	w := s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.Email)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodGet, "/api/v1/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": user.Email, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": user.Email, "password": "secret123", "full_name": "Dup", "role": "farmer",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "boss@example.com", "password": "secret123", "full_name": "Boss", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionCookie(t *testing.T) {
	s := newServer(t)
	token, _ := s.signup(models.RoleRider)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newServer(t)
	shop, _ := s.signup(models.RoleAgrovet)
	farmer, _ := s.signup(models.RoleFarmer)

	w := s.do(http.MethodPost, "/api/v1/inventory", shop, map[string]interface{}{
		"product_name": "DAP Fertilizer", "category": "fertilizer", "quantity": 5, "unit": "bag", "price": "100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Product models.InventoryItem `json:"product"`
	}
	decode(t, w, &created)
	productID := created.Product.ID

	w = s.do(http.MethodPost, "/api/v1/cart/items", farmer, map[string]interface{}{"product_id": productID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/checkout", farmer, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res checkout.Result
	decode(t, w, &res)
	assert.Equal(t, "360.00", res.Total.StringFixed(2))

	w = s.do(http.MethodPost, "/api/v1/checkout", farmer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cart empty")

	w = s.do(http.MethodPost, "/api/v1/cart/items", farmer, map[string]interface{}{"product_id": productID, "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/checkout", farmer, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	var short struct {
		Error      string               `json:"error"`
		Shortfalls []checkout.Shortfall `json:"shortfalls"`
	}
	decode(t, w, &short)
	assert.Equal(t, "insufficient stock", short.Error)
	require.Len(t, short.Shortfalls, 1)
	assert.Equal(t, 2, short.Shortfalls[0].Available)

	w = s.do(http.MethodGet, "/api/v1/orders", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Orders []models.Order `json:"orders"`
	}
	decode(t, w, &mine)
	require.Len(t, mine.Orders, 1)

	w = s.do(http.MethodGet, "/api/v1/sales/orders", shop, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), res.Reference)

	w = s.do(http.MethodGet, "/api/v1/inventory/ledger", shop, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"order"`)
}

func TestCapabilityGates(t *testing.T) {
	s := newServer(t)
	farmer, _ := s.signup(models.RoleFarmer)
	rider, _ := s.signup(models.RoleRider)

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/api/v1/products", "", http.StatusOK},
		{http.MethodGet, "/api/v1/cart", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/inventory", farmer, http.StatusForbidden},
		{http.MethodGet, "/api/v1/cart", rider, http.StatusForbidden},
		{http.MethodGet, "/api/v1/pos/dashboard", farmer, http.StatusForbidden},
		{http.MethodGet, "/api/v1/admin/users", farmer, http.StatusForbidden},
		{http.MethodPost, "/api/v1/disease/detect", rider, http.StatusForbidden},
		{http.MethodGet, "/api/v1/orders/abc", farmer, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/products/9999", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := s.do(tc.method, tc.path, tc.token, nil)
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestAssistantRateLimit(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.Assistant.RatePerMin = 2 })
	farmer, _ := s.signup(models.RoleFarmer)

	for i := 0; i < 2; i++ {
		w := s.do(http.MethodPost, "/api/v1/assistant/chat", farmer, map[string]string{"message": "How do I plant maize?"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "certified seed")
	}
	w := s.do(http.MethodPost, "/api/v1/assistant/chat", farmer, map[string]string{"message": "again"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestDiseaseDetectionAndReview(t *testing.T) {
	s := newServer(t)
	farmer, _ := s.signup(models.RoleFarmer)

	w := s.do(http.MethodPost, "/api/v1/disease/detect", farmer, map[string]string{"description": "yellow spots on maize leaves"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out struct {
		Report models.DiseaseReport `json:"report"`
	}
	decode(t, w, &out)

	admin, _, err := s.app.Auth.Login(context.Background(), s.app.Config.Auth.AdminEmail, s.app.Config.Auth.AdminPassword)
	require.NoError(t, err)
	adminToken, err := s.app.Tokens.Issue(admin)
	require.NoError(t, err)

	path := fmt.Sprintf("/api/v1/disease/reports/%d/review", out.Report.ID)
	w = s.do(http.MethodPost, path, farmer, map[string]string{"notes": "ok"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, path, adminToken, map[string]string{"notes": "Confirmed leaf blight"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), string(models.ReportStatusReviewed))

	w = s.do(http.MethodGet, "/api/v1/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats app.Stats
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.DiseaseReports)
	assert.Equal(t, int64(1), stats.Users[string(models.RoleFarmer)])

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/disease/reports/%d", out.Report.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/disease/reports/%d", out.Report.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReviewsAndDirectory(t *testing.T) {
	s := newServer(t)
	farmer, _ := s.signup(models.RoleFarmer)
	shop, shopUser := s.signup(models.RoleAgrovet)
	rider, _ := s.signup(models.RoleRider)

	w := s.do(http.MethodGet, "/api/v1/agrovets", rider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodGet, "/api/v1/agrovets", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), shopUser.Email)

	w = s.do(http.MethodPost, "/api/v1/reviews", farmer, map[string]interface{}{
		"agrovet_id": shopUser.ID, "rating": 9, "title": "t", "content": "c",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/api/v1/reviews", farmer, map[string]interface{}{
		"agrovet_id": shopUser.ID, "rating": 4, "title": "Fair prices", "content": "Good advice on fertilizer",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Review models.Review `json:"review"`
	}
	decode(t, w, &created)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/reviews/%d/response", created.Review.ID), shop, map[string]string{"response": "Karibu tena"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	admin, _, err := s.app.Auth.Login(context.Background(), s.app.Config.Auth.AdminEmail, s.app.Config.Auth.AdminPassword)
	require.NoError(t, err)
	adminToken, err := s.app.Tokens.Issue(admin)
	require.NoError(t, err)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/reviews/%d/feature", created.Review.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"is_featured":true`)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/reviews/%d/reject", created.Review.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/agrovets/%d/reviews", shopUser.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Rating  struct{ Count int64 } `json:"rating"`
		Reviews []models.Review       `json:"reviews"`
	}
	decode(t, w, &summary)
	assert.Zero(t, summary.Rating.Count)
	assert.Empty(t, summary.Reviews)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/reviews/%d", created.Review.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/admin/reviews", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestWeatherAndNotifications(t *testing.T) {
	s := newServer(t)
	farmer, user := s.signup(models.RoleFarmer)

	w := s.do(http.MethodGet, "/api/v1/weather?location=Eldoret", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Success bool           `json:"success"`
		Weather weather.Report `json:"weather"`
	}
	decode(t, w, &out)
	assert.True(t, out.Success)
	assert.Equal(t, "Eldoret", out.Weather.Location)
	assert.NotEmpty(t, out.Weather.Recommendations.General)

	other, _ := s.signup(models.RoleAgrovet)
	w = s.do(http.MethodPost, "/api/v1/messages", other, map[string]interface{}{"receiver_id": user.ID, "content": "Stock arrived"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, s.app.Dispatcher.Flush(5*time.Second))

	w = s.do(http.MethodGet, "/api/v1/notifications", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int64                 `json:"unread"`
	}
	decode(t, w, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, int64(1), list.Unread)

	w = s.do(http.MethodPost, "/api/v1/notifications/read-all", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/messages", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Stock arrived")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, w.Body.String())

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `http_requests_total{endpoint="/health"`), w.Body.String())
}
