package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds carried on the sync queue. The worker dispatches on Kind.
const (
	KindTransactionSync = "transaction_sync"
	KindLimitAlert      = "limit_alert"
)

// TransactionSyncMessage tells the worker a transaction was committed.
// It carries only identifiers, the worker loads the ledger itself.
type TransactionSyncMessage struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// LimitAlertMessage signals that a commit pushed monthly spending past
// the user's configured limit.
type LimitAlertMessage struct {
	UserID     string    `json:"user_id"`
	SpentCents int64     `json:"spent_cents"`
	LimitCents int64     `json:"limit_cents"`
	Timestamp  time.Time `json:"timestamp"`
}

// Envelope wraps a payload with its kind so a single queue can carry
// both message types.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func NewTransactionSyncMessage(userID, transactionID string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		UserID:        userID,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func NewLimitAlertMessage(userID string, spentCents, limitCents int64) *LimitAlertMessage {
	return &LimitAlertMessage{
		UserID:     userID,
		SpentCents: spentCents,
		LimitCents: limitCents,
		Timestamp:  time.Now(),
	}
}

func encodeEnvelope(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{Kind: kind, Payload: raw})
}

// DecodeEnvelope parses a queue delivery into its typed payload.
func DecodeEnvelope(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Kind {
	case KindTransactionSync:
		var msg TransactionSyncMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return env.Kind, nil, fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
		}
		return env.Kind, &msg, nil
	case KindLimitAlert:
		var msg LimitAlertMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return env.Kind, nil, fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
		}
		return env.Kind, &msg, nil
	default:
		return env.Kind, nil, fmt.Errorf("unknown message kind %q", env.Kind)
	}
}
