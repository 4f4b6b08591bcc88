// Package http exposes the ledger as a JSON API. The owner id arrives in
// the X-Owner-ID header on every request; authentication itself is handled
// upstream.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"registro/internal/log"
	"registro/internal/services"
)

// API bundles the services the handlers delegate to.
type API struct {
	ledger    *services.LedgerService
	rules     *services.RuleService
	accounts  *services.AccountService
	processor *services.RecurringProcessor
	started   time.Time
}

// NewServer wires the routes and returns a configured http.Server.
func NewServer(addr string, ledger *services.LedgerService, rules *services.RuleService,
	accounts *services.AccountService, processor *services.RecurringProcessor) *http.Server {
	api := &API{
		ledger:    ledger,
		rules:     rules,
		accounts:  accounts,
		processor: processor,
		started:   time.Now(),
	}

	return &http.Server{
		Addr:           addr,
		Handler:        log.RequestLogger(api.routes()),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
}

func (a *API) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)

	mux.HandleFunc("POST /accounts", a.handleCreateAccount)
	mux.HandleFunc("GET /accounts", a.handleListAccounts)
	mux.HandleFunc("GET /accounts/{id}", a.handleGetAccount)

	mux.HandleFunc("POST /categories", a.handleCreateCategory)
	mux.HandleFunc("GET /categories", a.handleListCategories)

	mux.HandleFunc("POST /movements", a.handleCreateMovement)
	mux.HandleFunc("GET /movements", a.handleListMovements)
	mux.HandleFunc("PATCH /movements/{id}", a.handleUpdateMovement)
	mux.HandleFunc("DELETE /movements/{id}", a.handleDeleteMovement)

	mux.HandleFunc("POST /rules", a.handleCreateRule)
	mux.HandleFunc("GET /rules", a.handleListRules)
	mux.HandleFunc("PATCH /rules/{id}", a.handleUpdateRule)
	mux.HandleFunc("DELETE /rules/{id}", a.handleDeleteRule)
	mux.HandleFunc("POST /rules/apply", a.handleApplyRules)

	return mux
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(a.started).String(),
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}
