/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Account creation and lookup
- Earn / redeem / restore flows over HTTP
- Error status mapping (400, 404, 409, 422)
- History limit parameter
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vivarx/rewards-engine/events"
	"github.com/vivarx/rewards-engine/rewards"
	"github.com/vivarx/rewards-engine/store/sqlite"
)

func setupTestRouter(t *testing.T) http.Handler {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine, err := rewards.NewEngine(store, rewards.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	return NewRouter(NewHandler(engine, store, nil), nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func createTestAccount(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, router, "POST", "/api/accounts",
		CreateAccountRequest{ID: id, Name: "Test User", Email: "test@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Failed to create account: status %d body %s", rec.Code, rec.Body.String())
	}
}

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

func TestCreateAccount_Success(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/accounts",
		CreateAccountRequest{ID: "acct-1", Name: "Ada", Email: "ada@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	account := decode[AccountDTO](t, rec)
	if account.ID != "acct-1" || account.Name != "Ada" {
		t.Errorf("Unexpected account payload: %+v", account)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/accounts", CreateAccountRequest{Name: "No ID"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing id, got %d", rec.Code)
	}
}

func TestCreateAccount_Duplicate(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "POST", "/api/accounts",
		CreateAccountRequest{ID: "acct-1", Name: "Again"})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate account, got %d", rec.Code)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/accounts/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown account, got %d", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error == "" {
		t.Error("Expected an error message in the body")
	}
}

func TestListAccounts(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	createTestAccount(t, router, "acct-2")

	rec := doJSON(t, router, "GET", "/api/accounts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	accounts := decode[[]AccountDTO](t, rec)
	if len(accounts) != 2 {
		t.Errorf("Expected 2 accounts, got %d", len(accounts))
	}
}

// =============================================================================
// STATUS
// =============================================================================

func TestGetStatus_FreshAccount(t *testing.T) {
	// GIVEN: A fresh account
	// WHEN: Requesting status
	// THEN: Everything is zeroed, tier STANDARD, reward LOCKED

	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "GET", "/api/accounts/acct-1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	status := decode[StatusDTO](t, rec)
	if status.RedeemablePoints != 0 || status.CumulativePoints != 0 {
		t.Errorf("Expected zero balances, got %+v", status)
	}
	if status.CurrentTier != "STANDARD" {
		t.Errorf("Expected STANDARD tier, got %s", status.CurrentTier)
	}
	if status.Status != string(rewards.StatusLocked) {
		t.Errorf("Expected LOCKED status, got %s", status.Status)
	}
	if status.NextRewardMilestone != 100 {
		t.Errorf("Expected milestone 100, got %d", status.NextRewardMilestone)
	}
}

// =============================================================================
// EARN
// =============================================================================

func TestEarnPoints_Success(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/earn",
		EarnRequest{Points: 250, Source: "purchase"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[EarnResponseDTO](t, rec)
	if resp.RedeemablePoints != 250 {
		t.Errorf("Expected 250 redeemable points, got %d", resp.RedeemablePoints)
	}
	if resp.AdjustedPoints != 250 || resp.RawPoints != 250 {
		t.Errorf("Expected STANDARD-tier points untouched, got %+v", resp)
	}
	if resp.AvailableReward != 20 {
		t.Errorf("Expected $20 available, got %.2f", resp.AvailableReward)
	}
	if resp.Status != string(rewards.StatusEligible) {
		t.Errorf("Expected ELIGIBLE, got %s", resp.Status)
	}
}

func TestEarnPoints_TierTransitionReported(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/earn",
		EarnRequest{Points: 1200, Source: "purchase"})
	resp := decode[EarnResponseDTO](t, rec)
	if !resp.TierChanged {
		t.Error("Expected tier_changed true")
	}
	if resp.PreviousTier != "STANDARD" || resp.CurrentTier != "SILVER" {
		t.Errorf("Expected STANDARD -> SILVER, got %s -> %s", resp.PreviousTier, resp.CurrentTier)
	}
}

func TestEarnPoints_FractionalPoints(t *testing.T) {
	// A $10.50 purchase at the base rate: 10.5 raw points, floor(10.5*1.0) = 10.
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/earn",
		EarnRequest{Points: 10.5, Source: "purchase"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for fractional points, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[EarnResponseDTO](t, rec)
	if resp.RawPoints != 10.5 {
		t.Errorf("Expected raw_points 10.5, got %v", resp.RawPoints)
	}
	if resp.AdjustedPoints != 10 {
		t.Errorf("Expected adjusted_points 10, got %d", resp.AdjustedPoints)
	}
	if resp.RedeemablePoints != 10 {
		t.Errorf("Expected 10 redeemable points, got %d", resp.RedeemablePoints)
	}

	history := decode[[]LedgerEntryDTO](t,
		doJSON(t, router, "GET", "/api/accounts/acct-1/history", nil))
	if len(history) != 1 || history[0].RawPoints != 10.5 {
		t.Errorf("Expected the fractional raw award on the ledger, got %+v", history)
	}
}

func TestEarnPoints_InvalidInput(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/earn",
		EarnRequest{Points: -5, Source: "purchase"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative points, got %d", rec.Code)
	}
}

func TestEarnPoints_UnknownAccount(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/accounts/ghost/earn",
		EarnRequest{Points: 10, Source: "purchase"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// =============================================================================
// REDEEM
// =============================================================================

func TestRedeem_Success(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 250, Source: "purchase"})

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/redeem", RedeemRequest{Amount: 20})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[RedeemResponseDTO](t, rec)
	if resp.RedeemedAmount != 20 {
		t.Errorf("Expected redeemed amount 20, got %.2f", resp.RedeemedAmount)
	}
	if resp.PointsUsed != 200 {
		t.Errorf("Expected 200 points used, got %d", resp.PointsUsed)
	}
	if resp.EntryID == "" {
		t.Error("Expected the redemption entry id for later restoration")
	}
	if resp.CashBalance != 20 {
		t.Errorf("Expected cash balance 20, got %.2f", resp.CashBalance)
	}
	if resp.Status != string(rewards.StatusRedeemed) {
		t.Errorf("Expected REDEEMED, got %s", resp.Status)
	}
}

func TestRedeem_NothingUnlocked(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/redeem", RedeemRequest{Amount: 10})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 with no reward unlocked, got %d", rec.Code)
	}
}

func TestRedeem_PartialUnitAmount(t *testing.T) {
	// $15 against a $10 unit backs exactly 150 points.
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 250, Source: "purchase"})

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/redeem", RedeemRequest{Amount: 15})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for a partial-unit amount, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[RedeemResponseDTO](t, rec)
	if resp.PointsUsed != 150 {
		t.Errorf("Expected 150 points used, got %d", resp.PointsUsed)
	}
	if resp.RedeemablePoints != 100 {
		t.Errorf("Expected 100 points left, got %d", resp.RedeemablePoints)
	}
}

func TestRedeem_FractionalPointsAmount(t *testing.T) {
	// $12.34 backs 123.4 points; fractional points are invalid.
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 250, Source: "purchase"})

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/redeem", RedeemRequest{Amount: 12.34})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an amount backing fractional points, got %d", rec.Code)
	}
}

func TestRedeem_ExceedsAvailable(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 150, Source: "purchase"})

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/redeem", RedeemRequest{Amount: 20})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 when exceeding available reward, got %d", rec.Code)
	}
}

// =============================================================================
// RESTORE
// =============================================================================

func TestRestore_RoundTrip(t *testing.T) {
	// GIVEN: An account that earned and redeemed
	// WHEN: Restoring the redemption
	// THEN: Points come back and cash drops; the redemption leaves the ledger

	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 250, Source: "purchase"})
	redeemed := decode[RedeemResponseDTO](t,
		doJSON(t, router, "POST", "/api/accounts/acct-1/redeem", RedeemRequest{Amount: 20}))

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/restore",
		RestoreRequest{Amount: 20, EntryID: redeemed.EntryID})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[RestoreResponseDTO](t, rec)
	if resp.RedeemablePoints != 250 {
		t.Errorf("Expected points restored to 250, got %d", resp.RedeemablePoints)
	}
	if resp.CashBalance != 0 {
		t.Errorf("Expected cash back to 0, got %.2f", resp.CashBalance)
	}
	if resp.RestoredEntry != redeemed.EntryID {
		t.Errorf("Expected restored entry %s, got %s", redeemed.EntryID, resp.RestoredEntry)
	}

	history := decode[[]LedgerEntryDTO](t,
		doJSON(t, router, "GET", "/api/accounts/acct-1/history", nil))
	for _, e := range history {
		if e.Type == string(rewards.EntryRewardRedeemed) {
			t.Error("Redemption entry should have been removed from the ledger")
		}
	}
}

func TestRestore_NoMatchingRedemption(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/restore", RestoreRequest{Amount: 20})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 with no matching redemption, got %d", rec.Code)
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func TestGetHistory_LimitParam(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	for i := 0; i < 3; i++ {
		doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 10, Source: "purchase"})
	}

	all := decode[[]LedgerEntryDTO](t,
		doJSON(t, router, "GET", "/api/accounts/acct-1/history", nil))
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}

	limited := decode[[]LedgerEntryDTO](t,
		doJSON(t, router, "GET", "/api/accounts/acct-1/history?limit=2", nil))
	if len(limited) != 2 {
		t.Errorf("Expected 2 entries with limit=2, got %d", len(limited))
	}

	rec := doJSON(t, router, "GET", "/api/accounts/acct-1/history?limit=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-numeric limit, got %d", rec.Code)
	}
}

// =============================================================================
// RESET
// =============================================================================

func TestReset(t *testing.T) {
	router := setupTestRouter(t)
	createTestAccount(t, router, "acct-1")
	doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 500, Source: "purchase"})

	rec := doJSON(t, router, "POST", "/api/accounts/acct-1/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	status := decode[StatusDTO](t, rec)
	if status.RedeemablePoints != 0 || status.CumulativePoints != 0 || status.CashBalance != 0 {
		t.Errorf("Expected zeroed account after reset, got %+v", status)
	}

	history := decode[[]LedgerEntryDTO](t,
		doJSON(t, router, "GET", "/api/accounts/acct-1/history", nil))
	if len(history) != 0 {
		t.Errorf("Expected empty history after reset, got %d entries", len(history))
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func TestHandlers_PublishLedgerEvents(t *testing.T) {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine, err := rewards.NewEngine(store, rewards.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	manager := events.NewManager()
	var seen []events.Type
	record := func(_ context.Context, e events.Event) {
		seen = append(seen, e.Type)
	}
	for _, typ := range []events.Type{
		events.PointsUpdated, events.RewardRedeemed, events.RewardRestored, events.PointsReset,
	} {
		manager.Subscribe(typ, record)
	}

	router := NewRouter(NewHandler(engine, store, manager), nil)
	createTestAccount(t, router, "acct-1")
	doJSON(t, router, "POST", "/api/accounts/acct-1/earn", EarnRequest{Points: 250, Source: "purchase"})
	doJSON(t, router, "POST", "/api/accounts/acct-1/redeem", RedeemRequest{Amount: 20})
	doJSON(t, router, "POST", "/api/accounts/acct-1/restore", RestoreRequest{Amount: 20})
	doJSON(t, router, "POST", "/api/accounts/acct-1/reset", nil)

	want := []events.Type{
		events.PointsUpdated,
		events.RewardRedeemed,
		events.RewardRestored,
		events.PointsReset,
	}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d events, got %d: %v", len(want), len(seen), seen)
	}
	for i, typ := range want {
		if seen[i] != typ {
			t.Errorf("Event %d: expected %s, got %s", i, typ, seen[i])
		}
	}
}

// =============================================================================
// OPERATIONAL ENDPOINTS
// =============================================================================

func TestHealthz(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /healthz, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	rec := doJSON(t, router, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /metrics, got %d", rec.Code)
	}
}
