package http

import (
	"net/http"

	"registro/internal/core"
)

type accountRequest struct {
	Name                string           `json:"name"`
	Kind                core.AccountKind `json:"kind"`
	Currency            string           `json:"currency"`
	InitialBalanceCents int64            `json:"initial_balance_cents"`
}

type accountResponse struct {
	ID                  int64            `json:"id"`
	Name                string           `json:"name"`
	Kind                core.AccountKind `json:"kind"`
	Currency            string           `json:"currency"`
	InitialBalanceCents int64            `json:"initial_balance_cents"`
	BalanceCents        int64            `json:"balance_cents"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:                  a.ID,
		Name:                a.Name,
		Kind:                a.Kind,
		Currency:            a.Currency,
		InitialBalanceCents: a.InitialBalance.Cents,
		BalanceCents:        a.Balance.Cents,
	}
}

func (a *API) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	draft := core.Account{
		Name:           req.Name,
		Kind:           req.Kind,
		Currency:       req.Currency,
		InitialBalance: core.Money{Cents: req.InitialBalanceCents},
	}

	created, err := a.accounts.CreateAccount(r.Context(), owner, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(created))
}

func (a *API) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	accounts, err := a.accounts.ListAccounts(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]accountResponse, len(accounts))
	for i, acc := range accounts {
		out[i] = toAccountResponse(acc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	account, err := a.accounts.GetAccount(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type categoryRequest struct {
	Name      string         `json:"name"`
	Direction core.Direction `json:"direction"`
	ParentID  *int64         `json:"parent_id"`
}

type categoryResponse struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Direction core.Direction `json:"direction"`
	ParentID  *int64         `json:"parent_id,omitempty"`
	System    bool           `json:"system"`
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	draft := core.Category{
		Name:      req.Name,
		Direction: req.Direction,
		ParentID:  req.ParentID,
	}

	created, err := a.accounts.CreateCategory(r.Context(), owner, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, categoryResponse{
		ID:        created.ID,
		Name:      created.Name,
		Direction: created.Direction,
		ParentID:  created.ParentID,
		System:    created.System,
	})
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	categories, err := a.accounts.ListCategories(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]categoryResponse, len(categories))
	for i, c := range categories {
		out[i] = categoryResponse{
			ID:        c.ID,
			Name:      c.Name,
			Direction: c.Direction,
			ParentID:  c.ParentID,
			System:    c.System,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
