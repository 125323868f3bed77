package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marcelreig/marina-backend/internal/store"
)

// StoreHandler serves the public store reads used by the storefront and as
// the trusted price source for checkout.
type StoreHandler struct {
	repo store.Repository
}

func NewStoreHandler(repo store.Repository) *StoreHandler {
	return &StoreHandler{repo: repo}
}

func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list store items")
		respondWithError(w, http.StatusInternalServerError, "failed to fetch store items")
		return
	}

	respondWithJSON(w, http.StatusOK, items)
}

func (h *StoreHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "id")

	id, err := uuid.FromString(rawID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid store item id")
		return
	}

	item, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			respondWithError(w, http.StatusNotFound, "store item not found")
			return
		}
		log.Error().Err(err).Str("item_id", rawID).Msg("Failed to get store item")
		respondWithError(w, http.StatusInternalServerError, "failed to fetch store item")
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}
