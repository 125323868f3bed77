package store

import (
	"time"

	"github.com/gofrs/uuid"
)

// Item is a product for sale. Price is kept in minor currency units.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PriceMinor  int64     `json:"price_minor"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
}
