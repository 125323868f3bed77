package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrStorageUnavailable wraps failures of the persistent store; callers
	// must never fabricate an order number around it.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type Repository interface {
	// NextSequence atomically increments and returns the counter for the
	// given scope, creating it at 1. Values per scope are strictly
	// increasing with no reuse, even under concurrent allocation.
	NextSequence(ctx context.Context, scope string) (int64, error)
	// InsertOrder persists the order and its items once per session id.
	// A second insert for the same session id reports ResultAlreadyExists
	// instead of an error.
	InsertOrder(ctx context.Context, o *Order) (RecordResult, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	InsertEmailAlert(ctx context.Context, alert *EmailAlert) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// The upsert is a single statement, so the fetch-and-add is atomic at the
// storage layer; application code never reads then writes the counter.
func (r *postgresRepository) NextSequence(ctx context.Context, scope string) (int64, error) {
	query := `
		INSERT INTO order_counters (scope, seq, created_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (scope) DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq
	`

	var seq int64
	err := r.db.QueryRow(ctx, query, scope, time.Now().UTC()).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to allocate sequence for scope %s: %w: %w", scope, ErrStorageUnavailable, err)
	}

	return seq, nil
}

func (r *postgresRepository) InsertOrder(ctx context.Context, orderInput *Order) (result RecordResult, err error) {
	if orderInput.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return 0, fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		orderInput.ID = genID
	}

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return 0, fmt.Errorf("repository: failed to begin transaction: %w: %w", ErrStorageUnavailable, beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("session_id", orderInput.SessionID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil || result == ResultAlreadyExists {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Str("session_id", orderInput.SessionID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	createdAt := time.Now().UTC()

	queryOrder := `
		INSERT INTO orders (id, session_id, order_number, payment_status, currency, amount_total_minor,
			customer_email, customer_phone, shipping_name, shipping_line1, shipping_line2,
			shipping_city, shipping_state, shipping_postal_code, shipping_country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = tx.Exec(ctx, queryOrder,
		orderInput.ID,
		orderInput.SessionID,
		orderInput.OrderNumber,
		orderInput.PaymentStatus,
		orderInput.Currency,
		orderInput.AmountTotalMinor,
		orderInput.CustomerEmail,
		orderInput.CustomerPhone,
		orderInput.ShippingName,
		orderInput.Shipping.Line1,
		orderInput.Shipping.Line2,
		orderInput.Shipping.City,
		orderInput.Shipping.State,
		orderInput.Shipping.PostalCode,
		orderInput.Shipping.Country,
		createdAt,
	)
	if err != nil {
		// The unique constraint on session_id absorbs duplicate webhook
		// deliveries: losing a concurrent race is not an error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			err = nil
			return ResultAlreadyExists, nil
		}
		return 0, fmt.Errorf("repository: failed to insert order for session %s: %w", orderInput.SessionID, err)
	}
	orderInput.CreatedAt = createdAt

	queryItem := `
		INSERT INTO order_items (id, order_id, description, quantity, amount_total_minor)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range orderInput.Items {
		item := &orderInput.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return 0, fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}
		item.ID = itemID
		item.OrderID = orderInput.ID

		_, err = tx.Exec(ctx, queryItem,
			item.ID,
			item.OrderID,
			item.Description,
			item.Quantity,
			item.AmountTotalMinor,
		)
		if err != nil {
			return 0, fmt.Errorf("repository: failed to insert order item for session %s: %w", orderInput.SessionID, err)
		}
	}

	return ResultInserted, nil
}

func (r *postgresRepository) GetBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	queryOrder := `
		SELECT id, session_id, order_number, payment_status, currency, amount_total_minor,
			customer_email, customer_phone, shipping_name, shipping_line1, shipping_line2,
			shipping_city, shipping_state, shipping_postal_code, shipping_country, created_at
		FROM orders
		WHERE session_id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, queryOrder, sessionID).Scan(
		&o.ID,
		&o.SessionID,
		&o.OrderNumber,
		&o.PaymentStatus,
		&o.Currency,
		&o.AmountTotalMinor,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.ShippingName,
		&o.Shipping.Line1,
		&o.Shipping.Line2,
		&o.Shipping.City,
		&o.Shipping.State,
		&o.Shipping.PostalCode,
		&o.Shipping.Country,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by session id %s: %w", sessionID, err)
	}

	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *postgresRepository) orderItems(ctx context.Context, orderID uuid.UUID) ([]LineItem, error) {
	query := `
		SELECT id, order_id, description, quantity, amount_total_minor
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]LineItem, 0)
	for rows.Next() {
		var item LineItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.Description,
			&item.Quantity,
			&item.AmountTotalMinor,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}

	return items, nil
}

func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]Order, error) {
	query := `
		SELECT id, session_id, order_number, payment_status, currency, amount_total_minor,
			customer_email, customer_phone, shipping_name, shipping_line1, shipping_line2,
			shipping_city, shipping_state, shipping_postal_code, shipping_country, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.SessionID,
			&o.OrderNumber,
			&o.PaymentStatus,
			&o.Currency,
			&o.AmountTotalMinor,
			&o.CustomerEmail,
			&o.CustomerPhone,
			&o.ShippingName,
			&o.Shipping.Line1,
			&o.Shipping.Line2,
			&o.Shipping.City,
			&o.Shipping.State,
			&o.Shipping.PostalCode,
			&o.Shipping.Country,
			&o.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]LineItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsQuery := `
		SELECT id, order_id, description, quantity, amount_total_minor
		FROM order_items
		WHERE order_id = ANY($1)
	`
	itemRows, err := r.db.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item LineItem
		err := itemRows.Scan(
			&item.ID,
			&item.OrderID,
			&item.Description,
			&item.Quantity,
			&item.AmountTotalMinor,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	resultOrders := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		if o, ok := ordersMap[id]; ok {
			resultOrders = append(resultOrders, *o)
		}
	}

	return resultOrders, nil
}

func (r *postgresRepository) InsertEmailAlert(ctx context.Context, alert *EmailAlert) error {
	if alert.ID == uuid.Nil {
		genID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate alert ID: %w", err)
		}
		alert.ID = genID
	}

	query := `
		INSERT INTO email_alerts (id, alert_type, session_id, customer_details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		alert.ID,
		alert.AlertType,
		alert.SessionID,
		alert.CustomerDetails,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert email alert for session %s: %w", alert.SessionID, err)
	}

	return nil
}
