package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
)

// ErrUnknownSession is returned when the provider has no checkout session
// with the requested id.
var ErrUnknownSession = errors.New("payment: unknown checkout session")

// listPageSize is the provider's maximum page size; the iterator keeps
// fetching pages until the listing is exhausted.
const listPageSize = 100

// StripeClient talks to the Stripe API. The package-level stripe.Key must
// be set before use.
type StripeClient struct {
	successURL string
	cancelURL  string
	currency   string
}

func NewStripeClient(successURL, cancelURL, currency string) *StripeClient {
	return &StripeClient{
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   currency,
	}
}

// CreateCheckoutSession opens a provider-hosted checkout session for the
// given items. Prices are supplied by the caller, which is expected to have
// resolved them server-side.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, items []CheckoutItem) (*CreatedSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(it.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.currency),
				UnitAmount: stripe.Int64(it.UnitAmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
		LineItems:  lineItems,
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: failed to create checkout session: %w", err)
	}

	return &CreatedSession{ID: s.ID, URL: s.URL}, nil
}

// GetCheckoutSession fetches a session directly from the provider.
func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := session.Get(sessionID, params)
	if err != nil {
		return CheckoutSession{}, mapSessionErr(sessionID, err)
	}

	return FromStripeSession(s), nil
}

// SessionLineItems drains the provider's paginated line-item listing for a
// session and sums the charged amounts. The persisted record is built from
// this listing, never from client-supplied cart contents.
func (c *StripeClient) SessionLineItems(ctx context.Context, sessionID string) ([]LineItem, int64, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Limit = stripe.Int64(listPageSize)
	params.Context = ctx

	var (
		items []LineItem
		total int64
	)

	iter := session.ListLineItems(params)
	for iter.Next() {
		li := iter.LineItem()
		items = append(items, LineItem{
			Description:      li.Description,
			Quantity:         li.Quantity,
			AmountTotalMinor: li.AmountTotal,
		})
		total += li.AmountTotal
	}
	if err := iter.Err(); err != nil {
		return nil, 0, mapSessionErr(sessionID, err)
	}

	return items, total, nil
}

func mapSessionErr(sessionID string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return fmt.Errorf("payment: stripe request for session %s failed: %w", sessionID, err)
}
