package payment

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v78"
)

// CheckoutSession is the provider-independent view of a completed checkout
// session that the rest of the service works with.
type CheckoutSession struct {
	ID            string
	PaymentStatus string
	Currency      string
	CustomerEmail string
	CustomerPhone string
	Shipping      *Shipping
	// RawCustomerDetails keeps the provider's customer_details payload
	// verbatim for diagnostic alerts.
	RawCustomerDetails json.RawMessage
}

type Shipping struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// LineItem is a purchased line item as reported by the provider.
// AmountTotalMinor is the total charged for the line in minor currency
// units (e.g. cents), not a unit price.
type LineItem struct {
	Description      string
	Quantity         int64
	AmountTotalMinor int64
}

// CheckoutItem is a line item to sell when creating a checkout session.
type CheckoutItem struct {
	Name            string
	UnitAmountMinor int64
	Quantity        int64
}

// CreatedSession is the provider-hosted session returned to the storefront.
type CreatedSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// FromStripeSession normalizes a Stripe checkout session object, e.g. one
// embedded in a webhook event payload.
func FromStripeSession(s *stripe.CheckoutSession) CheckoutSession {
	sess := CheckoutSession{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		Currency:      string(s.Currency),
	}

	if s.CustomerDetails != nil {
		sess.CustomerEmail = s.CustomerDetails.Email
		sess.CustomerPhone = s.CustomerDetails.Phone
		if raw, err := json.Marshal(s.CustomerDetails); err == nil {
			sess.RawCustomerDetails = raw
		}
	}

	if s.ShippingDetails != nil {
		shipping := &Shipping{Name: s.ShippingDetails.Name}
		if addr := s.ShippingDetails.Address; addr != nil {
			shipping.Line1 = addr.Line1
			shipping.Line2 = addr.Line2
			shipping.City = addr.City
			shipping.State = addr.State
			shipping.PostalCode = addr.PostalCode
			shipping.Country = addr.Country
		}
		sess.Shipping = shipping
	}

	return sess
}
