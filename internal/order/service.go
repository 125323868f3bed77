package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marcelreig/marina-backend/internal/payment"
)

// LineItemSource lists the authoritative purchased line items for a
// checkout session straight from the payment provider.
type LineItemSource interface {
	SessionLineItems(ctx context.Context, sessionID string) ([]payment.LineItem, int64, error)
}

type Service interface {
	// RecordCheckout reconciles, numbers and persists the order for a
	// completed checkout session. Safe to invoke repeatedly with the same
	// session id: at most one order is ever recorded per session.
	RecordCheckout(ctx context.Context, sess payment.CheckoutSession) (RecordOutcome, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]Order, error)
}

type service struct {
	repo         Repository
	lineItems    LineItemSource
	numberPrefix string
	now          func() time.Time
}

func NewService(repo Repository, lineItems LineItemSource, numberPrefix string) Service {
	return &service{
		repo:         repo,
		lineItems:    lineItems,
		numberPrefix: numberPrefix,
		now:          time.Now,
	}
}

func (s *service) RecordCheckout(ctx context.Context, sess payment.CheckoutSession) (RecordOutcome, error) {
	// Fast path for redelivered events: an existing order means nothing to
	// do, and no sequence number gets allocated.
	existing, err := s.repo.GetBySessionID(ctx, sess.ID)
	if err == nil {
		log.Info().Str("session_id", sess.ID).Str("order_number", existing.OrderNumber).Msg("service: order already recorded for session")
		return RecordOutcome{Result: ResultAlreadyExists, Order: existing}, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return RecordOutcome{}, fmt.Errorf("service: failed to check for existing order: %w", err)
	}

	items, totalMinor, err := s.lineItems.SessionLineItems(ctx, sess.ID)
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("service: failed to reconcile line items for session %s: %w", sess.ID, err)
	}

	year := s.now().UTC().Year()
	seq, err := s.repo.NextSequence(ctx, CounterScope(s.numberPrefix, year))
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("service: failed to allocate order number: %w", err)
	}

	o := &Order{
		SessionID:        sess.ID,
		OrderNumber:      FormatOrderNumber(s.numberPrefix, year, seq),
		PaymentStatus:    sess.PaymentStatus,
		Currency:         sess.Currency,
		AmountTotalMinor: totalMinor,
		CustomerPhone:    sess.CustomerPhone,
	}
	if sess.CustomerEmail != "" {
		email := sess.CustomerEmail
		o.CustomerEmail = &email
	}
	if sess.Shipping != nil {
		o.ShippingName = sess.Shipping.Name
		o.Shipping = ShippingAddress{
			Line1:      sess.Shipping.Line1,
			Line2:      sess.Shipping.Line2,
			City:       sess.Shipping.City,
			State:      sess.Shipping.State,
			PostalCode: sess.Shipping.PostalCode,
			Country:    sess.Shipping.Country,
		}
	}
	for _, it := range items {
		o.Items = append(o.Items, LineItem{
			Description:      it.Description,
			Quantity:         it.Quantity,
			AmountTotalMinor: it.AmountTotalMinor,
		})
	}

	result, err := s.repo.InsertOrder(ctx, o)
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("service: failed to record order for session %s: %w", sess.ID, err)
	}

	if result == ResultAlreadyExists {
		// Lost a concurrent redelivery race after the existence check; the
		// allocated sequence number stays unused. Gaps are fine, reuse is not.
		log.Info().Str("session_id", sess.ID).Msg("service: concurrent delivery already recorded this session")
		recorded, getErr := s.repo.GetBySessionID(ctx, sess.ID)
		if getErr != nil {
			return RecordOutcome{}, fmt.Errorf("service: failed to load order recorded by concurrent delivery: %w", getErr)
		}
		return RecordOutcome{Result: ResultAlreadyExists, Order: recorded}, nil
	}

	if sess.CustomerEmail == "" {
		s.alertMissingEmail(ctx, sess)
	}

	log.Info().
		Str("session_id", sess.ID).
		Str("order_number", o.OrderNumber).
		Int64("amount_total_minor", o.AmountTotalMinor).
		Int("items", len(o.Items)).
		Msg("service: order recorded")

	return RecordOutcome{Result: ResultInserted, Order: o}, nil
}

// alertMissingEmail is a monitoring side effect; it never blocks order
// persistence, so failures are only logged.
func (s *service) alertMissingEmail(ctx context.Context, sess payment.CheckoutSession) {
	alert := &EmailAlert{
		AlertType:       AlertTypeMissingEmail,
		SessionID:       sess.ID,
		CustomerDetails: sess.RawCustomerDetails,
	}
	if err := s.repo.InsertEmailAlert(ctx, alert); err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Msg("service: failed to record missing-email alert")
		return
	}
	log.Warn().Str("session_id", sess.ID).Msg("service: checkout completed without customer email")
}

func (s *service) GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	o, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("service: failed to fetch order by session id")
		return nil, fmt.Errorf("service: failed to fetch order by session id: %w", err)
	}

	return o, nil
}

func (s *service) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	orders, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}
