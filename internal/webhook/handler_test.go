package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelreig/marina-backend/internal/order"
	"github.com/marcelreig/marina-backend/internal/payment"
)

const testSecret = "whsec_test_secret"

type mockRecorder struct {
	RecordCheckoutFunc func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error)
	calls              int
}

func (m *mockRecorder) RecordCheckout(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
	m.calls++
	return m.RecordCheckoutFunc(ctx, sess)
}

// signPayload builds a Stripe-Signature header for the payload the way the
// provider does: v1 = HMAC-SHA256(secret, "<timestamp>.<payload>").
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(email string) []byte {
	customer := `"customer_details":{"email":null,"phone":"+34600111222"}`
	if email != "" {
		customer = fmt.Sprintf(`"customer_details":{"email":%q,"phone":"+34600111222"}`, email)
	}
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_123",
				"payment_status": "paid",
				"currency": "eur",
				"amount_total": 2200,
				%s,
				"shipping_details": {
					"name": "Jane Doe",
					"address": {"line1": "Calle Mayor 1", "city": "Palma", "postal_code": "07001", "country": "ES"}
				}
			}
		}
	}`, customer))
}

func deliver(h *Handler, payload []byte, sigHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(payload)))
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	w := httptest.NewRecorder()
	h.HandleEvent(w, req)
	return w
}

func TestHandler_HandleEvent(t *testing.T) {
	t.Run("verified_checkout_completed_records_order", func(t *testing.T) {
		var recorded payment.CheckoutSession
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				recorded = sess
				return order.RecordOutcome{Result: order.ResultInserted, Order: &order.Order{}}, nil
			},
		}
		h := NewHandler(recorder, testSecret, false)

		payload := checkoutCompletedPayload("jane@example.com")
		w := deliver(h, payload, signPayload(payload, testSecret, time.Now()))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
		require.Equal(t, 1, recorder.calls)
		assert.Equal(t, "cs_test_123", recorded.ID)
		assert.Equal(t, "paid", recorded.PaymentStatus)
		assert.Equal(t, "jane@example.com", recorded.CustomerEmail)
		require.NotNil(t, recorded.Shipping)
		assert.Equal(t, "Jane Doe", recorded.Shipping.Name)
		assert.Equal(t, "Palma", recorded.Shipping.City)
	})

	t.Run("missing_email_passes_through_as_empty", func(t *testing.T) {
		var recorded payment.CheckoutSession
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				recorded = sess
				return order.RecordOutcome{Result: order.ResultInserted, Order: &order.Order{}}, nil
			},
		}
		h := NewHandler(recorder, testSecret, false)

		payload := checkoutCompletedPayload("")
		w := deliver(h, payload, signPayload(payload, testSecret, time.Now()))

		assert.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, 1, recorder.calls)
		assert.Empty(t, recorded.CustomerEmail)
		assert.NotEmpty(t, recorded.RawCustomerDetails, "raw customer details must travel along for the alert record")
	})

	t.Run("invalid_signature_is_rejected_with_no_side_effects", func(t *testing.T) {
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				return order.RecordOutcome{}, nil
			},
		}
		h := NewHandler(recorder, testSecret, false)

		payload := checkoutCompletedPayload("jane@example.com")
		w := deliver(h, payload, signPayload(payload, "whsec_wrong_secret", time.Now()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, recorder.calls)
	})

	t.Run("missing_signature_is_rejected", func(t *testing.T) {
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				return order.RecordOutcome{}, nil
			},
		}
		h := NewHandler(recorder, testSecret, false)

		w := deliver(h, checkoutCompletedPayload("jane@example.com"), "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, recorder.calls)
	})

	t.Run("stale_signature_is_rejected", func(t *testing.T) {
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				return order.RecordOutcome{}, nil
			},
		}
		h := NewHandler(recorder, testSecret, false)

		payload := checkoutCompletedPayload("jane@example.com")
		w := deliver(h, payload, signPayload(payload, testSecret, time.Now().Add(-time.Hour)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, recorder.calls)
	})

	t.Run("other_event_types_are_acknowledged_without_action", func(t *testing.T) {
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				return order.RecordOutcome{}, nil
			},
		}
		h := NewHandler(recorder, testSecret, false)

		payload := []byte(`{"id":"evt_test_2","type":"payment_intent.succeeded","data":{"object":{"id":"pi_test_1"}}}`)
		w := deliver(h, payload, signPayload(payload, testSecret, time.Now()))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
		assert.Equal(t, 0, recorder.calls)
	})

	t.Run("recording_failure_is_still_acknowledged", func(t *testing.T) {
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				return order.RecordOutcome{}, errors.New("provider is unreachable")
			},
		}
		h := NewHandler(recorder, testSecret, false)

		payload := checkoutCompletedPayload("jane@example.com")
		w := deliver(h, payload, signPayload(payload, testSecret, time.Now()))

		assert.Equal(t, http.StatusOK, w.Code, "non-2xx would trigger futile provider retries")
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
		assert.Equal(t, 1, recorder.calls)
	})

	t.Run("no_secret_rejects_unless_insecure_mode", func(t *testing.T) {
		recorder := &mockRecorder{
			RecordCheckoutFunc: func(ctx context.Context, sess payment.CheckoutSession) (order.RecordOutcome, error) {
				return order.RecordOutcome{Result: order.ResultInserted, Order: &order.Order{}}, nil
			},
		}

		h := NewHandler(recorder, "", false)
		w := deliver(h, checkoutCompletedPayload("jane@example.com"), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, recorder.calls)

		h = NewHandler(recorder, "", true)
		w = deliver(h, checkoutCompletedPayload("jane@example.com"), "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, recorder.calls)
	})
}
