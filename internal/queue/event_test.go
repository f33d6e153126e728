package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

func TestNewRefundIntentEvent(t *testing.T) {
	b := &model.Booking{ID: 7, CustomerID: 42, ServiceID: 1}
	p := &model.Payment{ID: 3, BookingID: 7, AmountCents: 5450, ProcessorRef: "ch_test_123"}
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	ev := NewRefundIntentEvent(b, p, "customer no-show", at)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, uint64(7), ev.BookingID)
	assert.Equal(t, uint64(42), ev.CustomerID)
	assert.Equal(t, uint64(3), ev.PaymentID)
	assert.Equal(t, int64(5450), ev.AmountCents)
	assert.Equal(t, "2025-06-15T12:00:00Z", ev.RequestedAt)

	// two events for the same cancellation are distinguishable
	ev2 := NewRefundIntentEvent(b, p, "customer no-show", at)
	assert.NotEqual(t, ev.EventID, ev2.EventID)
}

func TestHandleRefundIntentAppendsLog(t *testing.T) {
	t.Chdir(t.TempDir())

	ev := RefundIntentEvent{
		EventID:      "ev-1",
		BookingID:    7,
		CustomerID:   42,
		PaymentID:    3,
		ProcessorRef: "ch_test_123",
		AmountCents:  5450,
		Reason:       "hold expired",
		RequestedAt:  "2025-06-15T12:00:00Z",
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, handleRefundIntent(body))
	require.NoError(t, handleRefundIntent(body))

	data, err := os.ReadFile(filepath.Join("logs", "refund.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "booking_id=7")
	assert.Contains(t, string(data), "processor_ref=ch_test_123")
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestHandleRefundIntentRejectsGarbage(t *testing.T) {
	assert.Error(t, handleRefundIntent([]byte("not json")))
}
