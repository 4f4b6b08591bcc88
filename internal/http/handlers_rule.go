package http

import (
	"net/http"
	"time"

	"registro/internal/core"
)

type ruleRequest struct {
	AccountID     int64          `json:"account_id"`
	DestinationID *int64         `json:"destination_id"`
	CategoryID    *int64         `json:"category_id"`
	Direction     core.Direction `json:"direction"`
	AmountCents   int64          `json:"amount_cents"`
	Description   string         `json:"description"`
	Cadence       core.Cadence   `json:"cadence"`
	StartDate     core.Date      `json:"start_date"`
	EndDate       *core.Date     `json:"end_date"`
}

type ruleResponse struct {
	ID            int64          `json:"id"`
	AccountID     int64          `json:"account_id"`
	DestinationID *int64         `json:"destination_id,omitempty"`
	CategoryID    *int64         `json:"category_id,omitempty"`
	Direction     core.Direction `json:"direction"`
	AmountCents   int64          `json:"amount_cents"`
	Description   string         `json:"description"`
	Cadence       core.Cadence   `json:"cadence"`
	StartDate     core.Date      `json:"start_date"`
	EndDate       *core.Date     `json:"end_date,omitempty"`
	LastRun       *core.Date     `json:"last_run,omitempty"`
	NextDue       core.Date      `json:"next_due"`
	Active        bool           `json:"active"`
}

func toRuleResponse(r core.RecurringRule) ruleResponse {
	return ruleResponse{
		ID:            r.ID,
		AccountID:     r.AccountID,
		DestinationID: r.DestinationID,
		CategoryID:    r.CategoryID,
		Direction:     r.Direction,
		AmountCents:   r.Amount.Cents,
		Description:   r.Description,
		Cadence:       r.Cadence,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		LastRun:       r.LastRun,
		NextDue:       r.NextDue,
		Active:        r.Active,
	}
}

func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	draft := core.RecurringRule{
		AccountID:     req.AccountID,
		DestinationID: req.DestinationID,
		CategoryID:    req.CategoryID,
		Direction:     req.Direction,
		Amount:        core.Money{Cents: req.AmountCents},
		Description:   req.Description,
		Cadence:       req.Cadence,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	}

	created, err := a.rules.CreateRule(r.Context(), owner, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRuleResponse(created))
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	rules, err := a.rules.ListRules(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]ruleResponse, len(rules))
	for i, rule := range rules {
		out[i] = toRuleResponse(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
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

	var changes core.RuleUpdate
	if err := decodeBody(r, &changes); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	updated, err := a.rules.UpdateRule(r.Context(), owner, id, changes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(updated))
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
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

	if err := a.rules.DeleteRule(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type applyRequest struct {
	Now *core.Date `json:"now"`
}

type applyResponse struct {
	Count     int                `json:"count"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Movements []movementResponse `json:"movements"`
}

// handleApplyRules triggers one scheduler pass. The optional "now" field
// pins the processing date, mainly for backfills and tests.
func (a *API) handleApplyRules(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	now := time.Now()
	if req.Now != nil {
		now = req.Now.Time
	}

	result, err := a.processor.ApplyDueRules(r.Context(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := applyResponse{
		Count:     result.Count,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		Movements: make([]movementResponse, len(result.Movements)),
	}
	for i, m := range result.Movements {
		out.Movements[i] = toMovementResponse(m)
	}
	writeJSON(w, http.StatusOK, out)
}
