package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-offers/internal/cache"
	"storefront-offers/internal/catalog"
	"storefront-offers/internal/database"
	"storefront-offers/internal/events"
	"storefront-offers/internal/features"
	"storefront-offers/internal/lifecycle"
	"storefront-offers/internal/middleware"
	"storefront-offers/internal/models"
	"storefront-offers/internal/pricing"
	"storefront-offers/internal/selector"
	"storefront-offers/internal/service"
	"storefront-offers/internal/shipping"
)

func setupTestRouter(t *testing.T, rng selector.RandomSource, quoter shipping.Quoter) (*chi.Mux, *features.Manager) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test_handler.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if quoter == nil {
		quoter = shipping.NewTableQuoter(db, shipping.DefaultTableOptions(), zerolog.Nop())
	}

	kv := cache.NewInMemoryCache()
	em := events.NewManager(true, zerolog.Nop())
	flags := features.NewDefaultManager(nil)
	cat := catalog.Default()

	svc := service.NewService(service.Dependencies{
		Catalog:  cat,
		Selector: selector.New(cat, kv, rng, zerolog.Nop()),
		Offers:   lifecycle.NewStore(kv, em, zerolog.Nop()),
		Products: db,
		Pricer:   pricing.NewPricer(),
		Quoter:   quoter,
		Flags:    flags,
		Events:   em,
		Logger:   zerolog.Nop(),
	})

	r := chi.NewRouter()
	r.Use(middleware.ProfileMiddleware)
	NewHandler(svc).Routes(r)
	return r, flags
}

func doRequest(r http.Handler, method, path, profile string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if profile != "" {
		req.Header.Set(middleware.ProfileHeader, profile)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, nil)

	rr := doRequest(r, "GET", "/health", "", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", rr.Body.String())
	}
}

func TestDrawThenActiveThenClear(t *testing.T) {
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, nil)
	profile := uuid.New().String()

	rr := doRequest(r, "GET", "/offers/active", profile, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 before any draw, got %d", rr.Code)
	}

	rr = doRequest(r, "POST", "/offers/draw", profile, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var draw models.DrawResponse
	if err := json.NewDecoder(rr.Body).Decode(&draw); err != nil {
		t.Fatalf("Failed to decode draw: %v", err)
	}
	if draw.Offer.ID != "discount_100" || !draw.Activated {
		t.Errorf("Expected activated discount_100, got %s (activated=%v)", draw.Offer.ID, draw.Activated)
	}

	rr = doRequest(r, "GET", "/offers/active", profile, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var active models.Offer
	json.NewDecoder(rr.Body).Decode(&active)
	if active.ID != "discount_100" {
		t.Errorf("Expected active discount_100, got %s", active.ID)
	}

	rr = doRequest(r, "DELETE", "/offers/active", profile, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}

	rr = doRequest(r, "GET", "/offers/active", profile, nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204 after clear, got %d", rr.Code)
	}
}

func TestDraw_ProfileRequired(t *testing.T) {
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, nil)

	rr := doRequest(r, "POST", "/offers/draw", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without profile, got %d", rr.Code)
	}

	rr = doRequest(r, "POST", "/offers/draw", "not-a-uuid", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed profile, got %d", rr.Code)
	}
}

func TestGetCatalog(t *testing.T) {
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, nil)
	profile := uuid.New().String()

	rr := doRequest(r, "GET", "/offers/catalog", profile, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp models.CatalogResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.FirstTime {
		t.Error("Expected a new profile to see the first-time table")
	}

	sum := 0.0
	for _, e := range resp.Entries {
		sum += e.Probability
		if e.Offer.ID == "golden_dragon" {
			t.Error("Special-trigger offers must not be listed")
		}
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Errorf("Expected probabilities to sum to 1, got %f", sum)
	}

	doRequest(r, "POST", "/offers/draw", profile, nil)
	rr = doRequest(r, "GET", "/offers/catalog", profile, nil)
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.FirstTime {
		t.Error("Expected the repeat table after a draw")
	}

	rr = doRequest(r, "GET", "/offers/catalog?first_time=maybe", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad first_time, got %d", rr.Code)
	}
}

func TestTriggerSpecial(t *testing.T) {
	r, flags := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, nil)
	profile := uuid.New().String()

	rr := doRequest(r, "POST", "/offers/special/golden_dragon", profile, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 while disabled, got %d", rr.Code)
	}

	flags.Enable(features.FeatureSpecialTriggerDraws)

	rr = doRequest(r, "POST", "/offers/special/golden_dragon", profile, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(r, "POST", "/offers/special/discount_10", profile, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for a standard offer, got %d", rr.Code)
	}
}

func TestPriceCart(t *testing.T) {
	fifty := shipping.QuoterFunc(func(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
		return decimal.NewFromInt(50), nil
	})
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, fifty)

	body := models.PriceCartRequest{
		Lines: []models.CartLine{
			{ProductID: 101, Quantity: 2},
			{ProductID: 102, Quantity: 1},
		},
		Pincode: "560001",
	}

	rr := doRequest(r, "POST", "/cart/price", "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var b models.PriceBreakdown
	if err := json.NewDecoder(rr.Body).Decode(&b); err != nil {
		t.Fatalf("Failed to decode breakdown: %v", err)
	}
	if !b.Total.Equal(decimal.NewFromInt(650)) {
		t.Errorf("Expected total 650, got %s", b.Total)
	}

	profile := uuid.New().String()
	doRequest(r, "POST", "/offers/draw", profile, nil)

	rr = doRequest(r, "POST", "/cart/price", profile, body)
	json.NewDecoder(rr.Body).Decode(&b)
	if !b.Total.Equal(decimal.NewFromInt(550)) {
		t.Errorf("Expected total 550 with discount_100 active, got %s", b.Total)
	}
}

func TestPriceCart_BadRequests(t *testing.T) {
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"invalid JSON", "{", http.StatusBadRequest},
		{"zero quantity", `{"lines":[{"product_id":101,"quantity":0}]}`, http.StatusBadRequest},
		{"unknown product", `{"lines":[{"product_id":4242,"quantity":1}]}`, http.StatusNotFound},
		{"bad pincode", `{"lines":[{"product_id":101,"quantity":1}],"pincode":"abc"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/cart/price", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPriceCart_BodyTooLarge(t *testing.T) {
	h := NewHandlerWithOptions(nil, NewHandlerOptions{MaxBodySize: 64, Logger: zerolog.Nop()})

	lines := make([]models.CartLine, 20)
	for i := range lines {
		lines[i] = models.CartLine{ProductID: 101, Quantity: 1, Key: uuid.New().String()}
	}
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(models.PriceCartRequest{Lines: lines})

	req := httptest.NewRequest("POST", "/cart/price", &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.PriceCart(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != "request body too large" {
		t.Errorf("Unexpected error message %q", resp.Error)
	}
}

func TestGetShippingQuote(t *testing.T) {
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, nil)

	rr := doRequest(r, "GET", "/shipping/quote?pincode=110001&weight_grams=1200", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var q models.ShippingQuoteResponse
	json.NewDecoder(rr.Body).Decode(&q)
	if !q.Charge.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected charge 80, got %s", q.Charge)
	}

	rr = doRequest(r, "GET", "/shipping/quote?pincode=110001&weight_grams=heavy", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestGetShippingQuote_ProviderFailure(t *testing.T) {
	failing := shipping.QuoterFunc(func(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("connection refused")
	})
	r, _ := setupTestRouter(t, &selector.FixedRNG{Values: []float64{0.5}}, failing)

	rr := doRequest(r, "GET", "/shipping/quote?pincode=110001", "", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}
	var e models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&e)
	if e.Error != "internal server error" {
		t.Errorf("Expected internal details to be hidden, got %q", e.Error)
	}
}
