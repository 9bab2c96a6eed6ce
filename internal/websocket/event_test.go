package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name     string
		et       EventType
		expected string
	}{
		{"created", EventTypeCreated, "created"},
		{"updated", EventTypeUpdated, "updated"},
		{"deleted", EventTypeDeleted, "deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.et))
		})
	}
}

func TestEntityType_String(t *testing.T) {
	tests := []struct {
		name     string
		et       EntityType
		expected string
	}{
		{"loan", EntityTypeLoan, "loan"},
		{"investment", EntityTypeInvestment, "investment"},
		{"transaction", EntityTypeTransaction, "transaction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.et))
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"id":     "b7f9a9e2",
		"status": "current",
		"amount": "100.00",
	}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeLoan, payload)
	after := time.Now()

	assert.Equal(t, "loan.created", evt.Type)
	assert.Equal(t, EntityTypeLoan, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_JSON_Serialization(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"id":     "b7f9a9e2",
		"code":   "TRX-2026-1A2B3C4D",
		"amount": "100.00",
	}

	evt := Event{
		Type:      "transaction.created",
		Entity:    EntityTypeTransaction,
		Payload:   payload,
		Timestamp: fixedTime,
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, evt.Entity, decoded.Entity)
	assert.Equal(t, fixedTime.UTC(), decoded.Timestamp.UTC())

	// Payload should be preserved
	decodedPayload, ok := decoded.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "b7f9a9e2", decodedPayload["id"])
	assert.Equal(t, "TRX-2026-1A2B3C4D", decodedPayload["code"])
	assert.Equal(t, "100.00", decodedPayload["amount"])
}

func TestEvent_ToJSON(t *testing.T) {
	payload := map[string]interface{}{
		"id": "b7f9a9e2",
	}

	evt := NewEvent(EventTypeUpdated, EntityTypeTransaction, payload)

	data, err := evt.ToJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// Verify it's valid JSON
	var decoded map[string]interface{}
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, "transaction.updated", decoded["type"])
	assert.Equal(t, "transaction", decoded["entity"])
	assert.NotNil(t, decoded["payload"])
	assert.NotNil(t, decoded["timestamp"])
}

func TestLoanEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{
		"id":     "b7f9a9e2",
		"code":   "LN-2026-1A2B3C4D",
		"status": "fundraising",
	}

	t.Run("LoanCreated", func(t *testing.T) {
		evt := LoanCreated(payload)
		assert.Equal(t, "loan.created", evt.Type)
		assert.Equal(t, EntityTypeLoan, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})

	t.Run("LoanUpdated", func(t *testing.T) {
		evt := LoanUpdated(payload)
		assert.Equal(t, "loan.updated", evt.Type)
		assert.Equal(t, EntityTypeLoan, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})
}

func TestInvestmentEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{
		"id":     "c4d5e6f7",
		"amount": "5000000",
	}

	t.Run("InvestmentCreated", func(t *testing.T) {
		evt := InvestmentCreated(payload)
		assert.Equal(t, "investment.created", evt.Type)
		assert.Equal(t, EntityTypeInvestment, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})

	t.Run("InvestmentUpdated", func(t *testing.T) {
		evt := InvestmentUpdated(payload)
		assert.Equal(t, "investment.updated", evt.Type)
		assert.Equal(t, EntityTypeInvestment, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})

	t.Run("InvestmentDeleted", func(t *testing.T) {
		evt := InvestmentDeleted(payload)
		assert.Equal(t, "investment.deleted", evt.Type)
		assert.Equal(t, EntityTypeInvestment, evt.Entity)
		assert.Equal(t, payload, evt.Payload)
	})
}

func TestTransactionEvent_Helpers(t *testing.T) {
	txPayload := map[string]interface{}{
		"id":     "d8e9f0a1",
		"type":   "interest_payment",
		"amount": "1000000",
	}

	t.Run("TransactionCreated", func(t *testing.T) {
		evt := TransactionCreated(txPayload)
		assert.Equal(t, "transaction.created", evt.Type)
		assert.Equal(t, EntityTypeTransaction, evt.Entity)
		assert.Equal(t, txPayload, evt.Payload)
	})

	t.Run("TransactionUpdated", func(t *testing.T) {
		evt := TransactionUpdated(txPayload)
		assert.Equal(t, "transaction.updated", evt.Type)
		assert.Equal(t, EntityTypeTransaction, evt.Entity)
		assert.Equal(t, txPayload, evt.Payload)
	})
}
