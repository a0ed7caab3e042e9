package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"billing-engine/internal/adapters/web"
	"billing-engine/internal/app"
	"billing-engine/internal/core"
	"billing-engine/internal/store/memory"
)

const testSecret = "test-secret-that-is-long-enough-123456"

type server struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	orgID   int
	token   string
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	org := &core.Organization{Name: "Acme Plumbing"}
	require.NoError(t, store.CreateOrganization(ctx, org))

	svc := app.NewAppService(app.Deps{Store: store, Logger: zaptest.NewLogger(t)})
	_, err := svc.RegisterUser(ctx, org.ID, app.RegisterUserRequest{Username: "admin", Password: "correct-horse", Role: core.RoleAdmin})
	require.NoError(t, err)

	s := &server{
		t:       t,
		handler: web.NewHandler(svc, web.Config{JWTSecret: testSecret}, zaptest.NewLogger(t)),
		store:   store,
		orgID:   org.ID,
	}
	s.token = s.login("admin", "correct-horse")
	return s
}

func (s *server) login(username, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, "")
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(s.t, body.Token)
	return body.Token
}

func (s *server) do(method, path string, body any, token string) *httptest.ResponseRecorder {
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
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) authed(method, path string, body any) *httptest.ResponseRecorder {
	return s.do(method, path, body, s.token)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func (s *server) createCustomer() int {
	rec := s.authed(http.MethodPost, "/api/customers", map[string]string{"full_name": "Jane Homeowner", "email": "jane@example.test"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[core.Customer](s.t, rec).ID
}

func (s *server) createEstimate(customerID int) core.Estimate {
	rec := s.authed(http.MethodPost, "/api/estimates", map[string]any{
		"customer_id": customerID,
		"title":       "Kitchen faucet",
		"tax_rate":    "10",
		"discount":    "10",
		"items": []map[string]any{
			{"name": "Faucet", "type": "PRODUCT", "quantity": "2", "unit_price": "50"},
		},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[core.Estimate](s.t, rec)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/customers", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/customers", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// tokens signed with another key are rejected
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1, "organization_id": s.orgID, "role": "ADMIN",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/customers", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.authed(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"admin"`)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterUserRequiresAdmin(t *testing.T) {
	s := newServer(t)
	rec := s.authed(http.MethodPost, "/api/users", map[string]string{"username": "olly", "password": "operator-pass", "role": "OPERATOR"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	operator := s.login("olly", "operator-pass")
	rec = s.do(http.MethodPost, "/api/users", map[string]string{"username": "eve", "password": "whatever-pass"}, operator)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEstimateConversionFlow(t *testing.T) {
	s := newServer(t)
	custID := s.createCustomer()
	est := s.createEstimate(custID)
	assert.Equal(t, "99", est.TotalAmount.String())
	assert.Equal(t, core.EstimateStatusDraft, est.Status)

	path := "/api/estimates/" + itoa(est.ID)
	rec := s.authed(http.MethodPost, path+"/convert", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[core.ConversionResult](t, rec)
	assert.True(t, conv.Created)

	rec = s.authed(http.MethodPost, path+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, conv.SaleID, decode[core.ConversionResult](t, rec).SaleID)

	// structural edits are locked, metadata is not
	rec = s.authed(http.MethodPut, path, map[string]any{
		"customer_id": custID,
		"items":       []map[string]any{{"name": "x", "quantity": "1", "unit_price": "1"}},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, core.CodeEstimateLocked, decode[errBody](t, rec).Code)

	rec = s.authed(http.MethodPatch, path, map[string]any{"po_number": "PO-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PO-9", decode[core.Estimate](t, rec).PONumber)

	salePath := "/api/sales/" + itoa(conv.SaleID)
	rec = s.authed(http.MethodPost, salePath+"/payments", map[string]any{"amount": "60", "method": "cash"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.authed(http.MethodPost, salePath+"/payments", map[string]any{"amount": "60"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errBody](t, rec)
	assert.Equal(t, core.CodeExceedsBalance, body.Code)
	assert.NotEmpty(t, body.RequestID)

	rec = s.authed(http.MethodGet, salePath+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[app.PaymentListResult](t, rec).Payments, 1)

	rec = s.authed(http.MethodPost, path+"/unconvert", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	un := decode[core.UnconvertResult](t, rec)
	assert.Equal(t, 1, un.RemovedPayments)

	rec = s.authed(http.MethodGet, salePath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRepairAndIntegrity(t *testing.T) {
	s := newServer(t)
	est := s.createEstimate(s.createCustomer())
	path := "/api/estimates/" + itoa(est.ID)

	rec := s.authed(http.MethodPost, path+"/convert", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	conv := decode[core.ConversionResult](t, rec)
	s.store.DeleteSaleOutOfBand(conv.SaleID)

	rec = s.authed(http.MethodGet, "/api/reports/integrity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":false`)

	rec = s.authed(http.MethodPost, path+"/repair", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[core.RepairResult](t, rec).Repaired)

	rec = s.authed(http.MethodGet, "/api/reports/integrity", nil)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
}

func TestTenantIsolation(t *testing.T) {
	s := newServer(t)
	est := s.createEstimate(s.createCustomer())

	other := &core.Organization{Name: "Other Co"}
	require.NoError(t, s.store.CreateOrganization(context.Background(), other))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 99, "organization_id": other.ID, "role": "OPERATOR",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/api/estimates/"+itoa(est.ID), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodPost, "/api/estimates/"+itoa(est.ID)+"/convert", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	s := newServer(t)

	rec := s.authed(http.MethodPost, "/api/customers", map[string]string{"email": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeInvalidInput, decode[errBody](t, rec).Code)

	rec = s.authed(http.MethodGet, "/api/estimates/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/customers", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.authed(http.MethodGet, "/api/reports/summary?preset=forever", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.authed(http.MethodPost, "/api/estimates/draft", map[string]string{"description": "fix sink"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	cust := s.createCustomer()
	rec = s.authed(http.MethodPost, "/api/estimates", map[string]any{
		"customer_id": cust,
		"items":       []map[string]any{{"name": "Screw", "quantity": "1e20", "unit_price": 1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeInvalidInput, decode[errBody](t, rec).Code)
}

func TestPublicEstimate(t *testing.T) {
	s := newServer(t)
	est := s.createEstimate(s.createCustomer())

	rec := s.do(http.MethodGet, "/public/estimates/"+est.PublicToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Plumbing")
	assert.Contains(t, rec.Body.String(), "$99.00")
	assert.Contains(t, rec.Body.String(), "Approve estimate")

	rec = s.do(http.MethodPost, "/api/public/estimates/"+est.PublicToken+"/approve", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[core.ConversionResult](t, rec).Created)

	rec = s.do(http.MethodGet, "/public/estimates/"+est.PublicToken, nil, "")
	assert.NotContains(t, rec.Body.String(), "Approve estimate")

	rec = s.do(http.MethodGet, "/api/public/estimates/not-a-token", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentsAndReports(t *testing.T) {
	s := newServer(t)
	est := s.createEstimate(s.createCustomer())

	rec := s.authed(http.MethodGet, "/api/estimates/"+itoa(est.ID)+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = s.authed(http.MethodPost, "/api/estimates/"+itoa(est.ID)+"/send", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.authed(http.MethodGet, "/api/delivery-logs?estimate_id="+itoa(est.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[app.DeliveryLogListResult](t, rec).Logs, 1)

	rec = s.authed(http.MethodGet, "/api/reports/summary?preset=last7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"preset":"last7"`)

	rec = s.authed(http.MethodGet, "/api/reports/summary.xlsx?preset=ytd", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func TestCORS(t *testing.T) {
	h := web.CORS("https://app.acme.test, https://admin.acme.test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
	req.Header.Set("Origin", "https://admin.acme.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.acme.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/api/sales/1/pdf", nil)
	req.Header.Set("Origin", "https://app.acme.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	req = httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
