package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelreig/marina-backend/internal/payment"
	"github.com/marcelreig/marina-backend/internal/store"
)

type mockSessionCreator struct {
	CreateCheckoutSessionFunc func(ctx context.Context, items []payment.CheckoutItem) (*payment.CreatedSession, error)
}

func (m *mockSessionCreator) CreateCheckoutSession(ctx context.Context, items []payment.CheckoutItem) (*payment.CreatedSession, error) {
	return m.CreateCheckoutSessionFunc(ctx, items)
}

type mockStoreRepository struct {
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*store.Item, error)
	ListFunc    func(ctx context.Context) ([]store.Item, error)
}

func (m *mockStoreRepository) GetByID(ctx context.Context, id uuid.UUID) (*store.Item, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockStoreRepository) List(ctx context.Context) ([]store.Item, error) {
	return m.ListFunc(ctx)
}

const productID = "4f0e7c62-9f0a-4f3a-9a67-3a2b1a1f9b01"

func storeItem() *store.Item {
	id, _ := uuid.FromString(productID)
	return &store.Item{
		ID:         id,
		Name:       "Marina Print",
		PriceMinor: 4500,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func postCheckout(h *CheckoutHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.CreateSession(w, req)
	return w
}

func TestCheckoutHandler_CreateSession(t *testing.T) {
	t.Run("product_backed_item_uses_trusted_price", func(t *testing.T) {
		var created []payment.CheckoutItem
		sessions := &mockSessionCreator{
			CreateCheckoutSessionFunc: func(ctx context.Context, items []payment.CheckoutItem) (*payment.CreatedSession, error) {
				created = items
				return &payment.CreatedSession{ID: "cs_test_123", URL: "https://checkout.example.com/cs_test_123"}, nil
			},
		}
		storeRepo := &mockStoreRepository{
			GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*store.Item, error) {
				assert.Equal(t, productID, id.String())
				return storeItem(), nil
			},
		}

		h := NewCheckoutHandler(sessions, storeRepo)
		// The client-supplied price for a product-backed item is ignored.
		w := postCheckout(h, `{"items":[{"product_id":"`+productID+`","price_minor":1,"quantity":2}]}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"cs_test_123"`)
		require.Len(t, created, 1)
		assert.Equal(t, "Marina Print", created[0].Name)
		assert.Equal(t, int64(4500), created[0].UnitAmountMinor)
		assert.Equal(t, int64(2), created[0].Quantity)
	})

	t.Run("ad_hoc_item_requires_name_and_price", func(t *testing.T) {
		var created []payment.CheckoutItem
		sessions := &mockSessionCreator{
			CreateCheckoutSessionFunc: func(ctx context.Context, items []payment.CheckoutItem) (*payment.CreatedSession, error) {
				created = items
				return &payment.CreatedSession{ID: "cs_test_456", URL: "https://checkout.example.com/cs_test_456"}, nil
			},
		}
		h := NewCheckoutHandler(sessions, &mockStoreRepository{})

		w := postCheckout(h, `{"items":[{"name":"Custom commission","price_minor":12000,"quantity":1}]}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		require.Len(t, created, 1)
		assert.Equal(t, int64(12000), created[0].UnitAmountMinor)
	})

	t.Run("validation_failures", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "empty_items", body: `{"items":[]}`},
			{name: "missing_items", body: `{}`},
			{name: "zero_quantity", body: `{"items":[{"name":"Print","price_minor":500,"quantity":0}]}`},
			{name: "no_price_without_product", body: `{"items":[{"name":"Print","quantity":1}]}`},
			{name: "malformed_product_id", body: `{"items":[{"product_id":"not-a-uuid","quantity":1}]}`},
			{name: "invalid_json", body: `{nope}`},
			{name: "unknown_field", body: `{"items":[{"name":"Print","price_minor":500,"quantity":1}],"coupon":"X"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sessions := &mockSessionCreator{
					CreateCheckoutSessionFunc: func(ctx context.Context, items []payment.CheckoutItem) (*payment.CreatedSession, error) {
						t.Fatal("session must not be created for an invalid request")
						return nil, nil
					},
				}
				h := NewCheckoutHandler(sessions, &mockStoreRepository{})

				w := postCheckout(h, tt.body)
				assert.Equal(t, http.StatusBadRequest, w.Code)
			})
		}
	})

	t.Run("unknown_product_id", func(t *testing.T) {
		sessions := &mockSessionCreator{
			CreateCheckoutSessionFunc: func(ctx context.Context, items []payment.CheckoutItem) (*payment.CreatedSession, error) {
				t.Fatal("session must not be created for an unknown product")
				return nil, nil
			},
		}
		storeRepo := &mockStoreRepository{
			GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*store.Item, error) {
				return nil, store.ErrItemNotFound
			},
		}
		h := NewCheckoutHandler(sessions, storeRepo)

		w := postCheckout(h, `{"items":[{"product_id":"`+productID+`","quantity":1}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("disabled_without_api_credential", func(t *testing.T) {
		h := NewCheckoutHandler(nil, &mockStoreRepository{})

		w := postCheckout(h, `{"items":[{"name":"Print","price_minor":500,"quantity":1}]}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
