package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"registro/internal/services"
	"registro/internal/storage"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := services.NewLedgerService(repo, nil)
	return NewServer(":0", ledger,
		services.NewRuleService(repo),
		services.NewAccountService(repo),
		services.NewRecurringProcessor(repo, ledger)).Handler
}

func doJSON(t *testing.T, h http.Handler, method, path string, ownerID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if ownerID > 0 {
		req.Header.Set("X-Owner-ID", fmt.Sprintf("%d", ownerID))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func createTestAccount(t *testing.T, h http.Handler, ownerID int64, initialCents int64) accountResponse {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/accounts", ownerID, map[string]any{
		"name":                  "Main",
		"kind":                  "checking",
		"currency":              "EUR",
		"initial_balance_cents": initialCents,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: status %d body %s", rr.Code, rr.Body.String())
	}
	var a accountResponse
	decodeInto(t, rr, &a)
	return a
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/healthz", 0, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
}

func TestMissingOwnerHeader(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/accounts", 0, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestMovementLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	account := createTestAccount(t, h, 1, 1_000_000)

	rr := doJSON(t, h, http.MethodPost, "/movements", 1, map[string]any{
		"account_id":   account.ID,
		"direction":    "expense",
		"amount_cents": 50_000,
		"description":  "Rent",
		"occurred_on":  "2024-01-05",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create movement: status %d body %s", rr.Code, rr.Body.String())
	}
	var created movementResponse
	decodeInto(t, rr, &created)

	// The account reflects the expense.
	rr = doJSON(t, h, http.MethodGet, fmt.Sprintf("/accounts/%d", account.ID), 1, nil)
	var after accountResponse
	decodeInto(t, rr, &after)
	if after.BalanceCents != 950_000 {
		t.Errorf("balance = %d, want 950000", after.BalanceCents)
	}

	// Partial update: raise the amount only.
	rr = doJSON(t, h, http.MethodPatch, fmt.Sprintf("/movements/%d", created.ID), 1, map[string]any{
		"amount_cents": 80_000,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update movement: status %d body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, fmt.Sprintf("/accounts/%d", account.ID), 1, nil)
	decodeInto(t, rr, &after)
	if after.BalanceCents != 920_000 {
		t.Errorf("balance after edit = %d, want 920000", after.BalanceCents)
	}

	// Delete restores the original balance.
	rr = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/movements/%d", created.ID), 1, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete movement: status %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodGet, fmt.Sprintf("/accounts/%d", account.ID), 1, nil)
	decodeInto(t, rr, &after)
	if after.BalanceCents != 1_000_000 {
		t.Errorf("balance after delete = %d, want 1000000", after.BalanceCents)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	h := newTestHandler(t)
	mine := createTestAccount(t, h, 1, 10_000)
	theirs := createTestAccount(t, h, 2, 10_000)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "missing account is 404",
			body: map[string]any{
				"account_id": 9999, "direction": "expense",
				"amount_cents": 100, "description": "x", "occurred_on": "2024-01-01",
			},
			want: http.StatusNotFound,
		},
		{
			name: "foreign account is 403",
			body: map[string]any{
				"account_id": theirs.ID, "direction": "expense",
				"amount_cents": 100, "description": "x", "occurred_on": "2024-01-01",
			},
			want: http.StatusForbidden,
		},
		{
			name: "zero amount is 422",
			body: map[string]any{
				"account_id": mine.ID, "direction": "expense",
				"amount_cents": 0, "description": "x", "occurred_on": "2024-01-01",
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "transfer without destination is 422",
			body: map[string]any{
				"account_id": mine.ID, "direction": "transfer",
				"amount_cents": 100, "description": "x", "occurred_on": "2024-01-01",
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown field is 400",
			body: map[string]any{
				"account_id": mine.ID, "direction": "expense",
				"amount_cents": 100, "description": "x", "occurred_on": "2024-01-01",
				"surprise": true,
			},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/movements", 1, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestRulesOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	account := createTestAccount(t, h, 1, 100_000)

	rr := doJSON(t, h, http.MethodPost, "/rules", 1, map[string]any{
		"account_id":   account.ID,
		"direction":    "expense",
		"amount_cents": 999,
		"description":  "Streaming",
		"cadence":      map[string]any{"frequency": "monthly", "interval": 1},
		"start_date":   "2024-01-10",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create rule: status %d body %s", rr.Code, rr.Body.String())
	}
	var rule ruleResponse
	decodeInto(t, rr, &rule)
	if rule.NextDue.String() != "2024-01-10" {
		t.Errorf("next_due = %s, want the start date", rule.NextDue)
	}

	// Trigger a pass pinned at the due date.
	rr = doJSON(t, h, http.MethodPost, "/rules/apply", 1, map[string]any{"now": "2024-01-10"})
	if rr.Code != http.StatusOK {
		t.Fatalf("apply rules: status %d body %s", rr.Code, rr.Body.String())
	}
	var result applyResponse
	decodeInto(t, rr, &result)
	if result.Count != 1 {
		t.Errorf("apply count = %d, want 1", result.Count)
	}

	// The materialized movement appears in the month listing.
	rr = doJSON(t, h, http.MethodGet, "/movements?year=2024&month=1", 1, nil)
	var movements []movementResponse
	decodeInto(t, rr, &movements)
	if len(movements) != 1 || movements[0].RuleID == nil {
		t.Fatalf("expected one rule-linked movement, got %v", movements)
	}

	rr = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/rules/%d", rule.ID), 1, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete rule: status %d", rr.Code)
	}
}
