package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types carried on the movement events queue.
const (
	TypeMovementSync   = "movement.sync"
	TypeMovementDelete = "movement.delete"
)

// Envelope wraps every published message so the consumer can route on Type
// before decoding the payload.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MovementSyncMessage asks the worker to export one movement. It carries
// only the id; the worker fetches the current row from storage, so stale
// duplicate deliveries are harmless.
type MovementSyncMessage struct {
	ID int64 `json:"id"`
}

// MovementDeleteMessage tells the worker a movement was soft-deleted.
type MovementDeleteMessage struct {
	ID int64 `json:"id"`
}

func newEnvelope(msgType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   body,
	}
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}
