package http

import (
	"net/http"
	"strconv"
	"time"

	"registro/internal/core"
)

type movementRequest struct {
	AccountID     int64          `json:"account_id"`
	DestinationID *int64         `json:"destination_id"`
	CategoryID    *int64         `json:"category_id"`
	Direction     core.Direction `json:"direction"`
	AmountCents   int64          `json:"amount_cents"`
	Description   string         `json:"description"`
	OccurredOn    core.Date      `json:"occurred_on"`
	Tags          []string       `json:"tags"`
}

type movementResponse struct {
	ID            int64          `json:"id"`
	AccountID     int64          `json:"account_id"`
	DestinationID *int64         `json:"destination_id,omitempty"`
	CategoryID    *int64         `json:"category_id,omitempty"`
	Direction     core.Direction `json:"direction"`
	AmountCents   int64          `json:"amount_cents"`
	Description   string         `json:"description"`
	OccurredOn    core.Date      `json:"occurred_on"`
	Tags          []string       `json:"tags,omitempty"`
	RuleID        *int64         `json:"rule_id,omitempty"`
}

func toMovementResponse(m core.Movement) movementResponse {
	return movementResponse{
		ID:            m.ID,
		AccountID:     m.AccountID,
		DestinationID: m.DestinationID,
		CategoryID:    m.CategoryID,
		Direction:     m.Direction,
		AmountCents:   m.Amount.Cents,
		Description:   m.Description,
		OccurredOn:    m.OccurredOn,
		Tags:          m.Tags,
		RuleID:        m.RuleID,
	}
}

func (a *API) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req movementRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	draft := core.Movement{
		AccountID:     req.AccountID,
		DestinationID: req.DestinationID,
		CategoryID:    req.CategoryID,
		Direction:     req.Direction,
		Amount:        core.Money{Cents: req.AmountCents},
		Description:   req.Description,
		OccurredOn:    req.OccurredOn,
		Tags:          req.Tags,
	}

	created, err := a.ledger.CreateMovement(r.Context(), owner, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMovementResponse(created))
}

func (a *API) handleListMovements(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	now := time.Now()
	year := now.Year()
	month := int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "invalid year")
			return
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			writeBadRequest(w, "invalid month")
			return
		}
	}

	movements, err := a.ledger.ListMovements(r.Context(), owner, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]movementResponse, len(movements))
	for i, m := range movements {
		out[i] = toMovementResponse(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleUpdateMovement(w http.ResponseWriter, r *http.Request) {
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

	var changes core.MovementUpdate
	if err := decodeBody(r, &changes); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	updated, err := a.ledger.UpdateMovement(r.Context(), owner, id, changes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMovementResponse(updated))
}

func (a *API) handleDeleteMovement(w http.ResponseWriter, r *http.Request) {
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

	if err := a.ledger.DeleteMovement(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
