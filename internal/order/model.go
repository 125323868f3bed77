package order

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

// AlertTypeMissingEmail marks a completed checkout whose customer details
// carried no email address. Anomalous upstream behavior, not an error.
const AlertTypeMissingEmail = "missing_customer_email"

type LineItem struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id"`
	Description      string    `json:"description"`
	Quantity         int64     `json:"quantity"`
	AmountTotalMinor int64     `json:"amount_total_minor"`
}

type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is the persisted snapshot of a completed checkout session. Exactly
// one order exists per session id; orders are never mutated by this service.
type Order struct {
	ID               uuid.UUID       `json:"id"`
	SessionID        string          `json:"session_id"`
	OrderNumber      string          `json:"order_number"`
	PaymentStatus    string          `json:"payment_status"`
	Currency         string          `json:"currency"`
	AmountTotalMinor int64           `json:"amount_total_minor"`
	CustomerEmail    *string         `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	ShippingName     string          `json:"shipping_name"`
	Shipping         ShippingAddress `json:"shipping_address"`
	Items            []LineItem      `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
}

// EmailAlert is a diagnostic record written alongside an order when the
// provider reported no customer email.
type EmailAlert struct {
	ID              uuid.UUID       `json:"id"`
	AlertType       string          `json:"alert_type"`
	SessionID       string          `json:"session_id"`
	CustomerDetails json.RawMessage `json:"customer_details"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RecordResult tags the outcome of an order insert: DuplicateDelivery is
// absorbed here, not surfaced as an error.
type RecordResult int

const (
	ResultInserted RecordResult = iota
	ResultAlreadyExists
)

func (r RecordResult) String() string {
	switch r {
	case ResultInserted:
		return "inserted"
	case ResultAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// RecordOutcome pairs the insert result with the order the session resolves
// to, whether freshly recorded or previously persisted.
type RecordOutcome struct {
	Result RecordResult
	Order  *Order
}
