package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

func TestFromStripeSession(t *testing.T) {
	t.Run("full_session", func(t *testing.T) {
		s := &stripe.CheckoutSession{
			ID:            "cs_test_123",
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			Currency:      stripe.CurrencyEUR,
			CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
				Email: "jane@example.com",
				Phone: "+34600111222",
			},
			ShippingDetails: &stripe.ShippingDetails{
				Name: "Jane Doe",
				Address: &stripe.Address{
					Line1:      "Calle Mayor 1",
					City:       "Palma",
					PostalCode: "07001",
					Country:    "ES",
				},
			},
		}

		sess := FromStripeSession(s)

		assert.Equal(t, "cs_test_123", sess.ID)
		assert.Equal(t, "paid", sess.PaymentStatus)
		assert.Equal(t, "eur", sess.Currency)
		assert.Equal(t, "jane@example.com", sess.CustomerEmail)
		assert.Equal(t, "+34600111222", sess.CustomerPhone)
		require.NotNil(t, sess.Shipping)
		assert.Equal(t, "Jane Doe", sess.Shipping.Name)
		assert.Equal(t, "07001", sess.Shipping.PostalCode)
		assert.NotEmpty(t, sess.RawCustomerDetails)
	})

	t.Run("bare_session", func(t *testing.T) {
		sess := FromStripeSession(&stripe.CheckoutSession{ID: "cs_test_456"})

		assert.Equal(t, "cs_test_456", sess.ID)
		assert.Empty(t, sess.CustomerEmail)
		assert.Nil(t, sess.Shipping)
		assert.Nil(t, sess.RawCustomerDetails)
	})
}
