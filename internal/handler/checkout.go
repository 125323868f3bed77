package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marcelreig/marina-backend/internal/payment"
	"github.com/marcelreig/marina-backend/internal/store"
)

// SessionCreator opens provider-hosted checkout sessions.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, items []payment.CheckoutItem) (*payment.CreatedSession, error)
}

type CheckoutItemRequest struct {
	// ProductID selects a store item; its server-side price wins over any
	// client-supplied one.
	ProductID  string `json:"product_id" validate:"omitempty,uuid4"`
	Name       string `json:"name" validate:"required_without=ProductID"`
	PriceMinor int64  `json:"price_minor" validate:"required_without=ProductID,omitempty,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,min=1"`
}

type CreateCheckoutRequest struct {
	Items []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CheckoutHandler struct {
	sessions SessionCreator
	store    store.Repository
	validate *validator.Validate
}

// NewCheckoutHandler wires the checkout-creation endpoint. A nil sessions
// value disables checkout entirely (no payment API credential configured).
func NewCheckoutHandler(sessions SessionCreator, storeRepo store.Repository) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		store:    storeRepo,
		validate: validator.New(),
	}
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondWithError(w, http.StatusServiceUnavailable, "checkout is disabled")
		return
	}

	var req CreateCheckoutRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err))
		return
	}

	ctx := r.Context()

	items, err := h.resolveItems(ctx, req.Items)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			respondWithError(w, http.StatusBadRequest, "unknown product id")
			return
		}
		log.Error().Err(err).Msg("Failed to resolve checkout items")
		respondWithError(w, http.StatusInternalServerError, "failed to resolve checkout items")
		return
	}

	created, err := h.sessions.CreateCheckoutSession(ctx, items)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create checkout session")
		respondWithError(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// resolveItems turns the request into priced line items. Product-backed rows
// take name and price from the store; the client's values are never trusted
// for them.
func (h *CheckoutHandler) resolveItems(ctx context.Context, reqItems []CheckoutItemRequest) ([]payment.CheckoutItem, error) {
	items := make([]payment.CheckoutItem, 0, len(reqItems))
	for _, ri := range reqItems {
		if ri.ProductID != "" {
			id, err := uuid.FromString(ri.ProductID)
			if err != nil {
				return nil, fmt.Errorf("invalid product id %q: %w", ri.ProductID, err)
			}
			item, err := h.store.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			items = append(items, payment.CheckoutItem{
				Name:            item.Name,
				UnitAmountMinor: item.PriceMinor,
				Quantity:        ri.Quantity,
			})
			continue
		}
		items = append(items, payment.CheckoutItem{
			Name:            ri.Name,
			UnitAmountMinor: ri.PriceMinor,
			Quantity:        ri.Quantity,
		})
	}
	return items, nil
}
