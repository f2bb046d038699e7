package postgres

import (
	"context"
	"fmt"

	"github.com/cargolink/api/internal/domain"
	"github.com/cargolink/api/internal/repositories"
)

// DraftRepository implements the user-scoped remote draft store using PostgreSQL.
type DraftRepository struct {
	pool DBTX
}

// NewDraftRepository creates a new PostgreSQL-backed draft repository.
func NewDraftRepository(pool DBTX) *DraftRepository {
	return &DraftRepository{pool: pool}
}

const draftColumns = `
	id, user_id, name, saved_at, service_type, source_country_code,
	destination_country_code, purchased_date, purchased_site,
	invoice_urls, product_image_urls`

// ListByUser returns every remote draft owned by the user, newest first,
// with items loaded.
func (r *DraftRepository) ListByUser(ctx context.Context, userID string) ([]domain.OrderDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM order_drafts
		WHERE user_id = $1
		ORDER BY saved_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", mapError(err))
	}
	defer rows.Close()

	var drafts []domain.OrderDraft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}

	for i := range drafts {
		items, err := r.listItems(ctx, drafts[i].ID)
		if err != nil {
			return nil, err
		}
		drafts[i].Items = items
		drafts[i].SyncState = domain.DraftStateSynced
	}
	return drafts, nil
}

// FindByID returns one draft scoped to its owner.
func (r *DraftRepository) FindByID(ctx context.Context, userID, draftID string) (domain.OrderDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM order_drafts
		WHERE user_id = $1 AND id = $2`

	row := r.pool.QueryRow(ctx, query, userID, draftID)
	draft, err := scanDraft(row)
	if err != nil {
		return domain.OrderDraft{}, err
	}

	items, err := r.listItems(ctx, draft.ID)
	if err != nil {
		return domain.OrderDraft{}, err
	}
	draft.Items = items
	draft.SyncState = domain.DraftStateSynced
	return draft, nil
}

// Upsert writes the draft header and replaces its item list wholesale within
// one transaction. Items carry no identity of their own, so replacement is a
// delete followed by positional reinsertion.
func (r *DraftRepository) Upsert(ctx context.Context, userID string, draft domain.OrderDraft) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	headerQuery := `
		INSERT INTO order_drafts (
			id, user_id, name, saved_at, service_type, source_country_code,
			destination_country_code, purchased_date, purchased_site,
			invoice_urls, product_image_urls
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			saved_at = EXCLUDED.saved_at,
			service_type = EXCLUDED.service_type,
			source_country_code = EXCLUDED.source_country_code,
			destination_country_code = EXCLUDED.destination_country_code,
			purchased_date = EXCLUDED.purchased_date,
			purchased_site = EXCLUDED.purchased_site,
			invoice_urls = EXCLUDED.invoice_urls,
			product_image_urls = EXCLUDED.product_image_urls
		WHERE order_drafts.user_id = EXCLUDED.user_id`

	tag, err := tx.Exec(ctx, headerQuery,
		draft.ID,
		userID,
		draft.Name,
		draft.SavedAt,
		string(draft.ServiceType),
		draft.SourceCountryCode,
		draft.DestinationCountryCode,
		draft.PurchasedDate,
		draft.PurchasedSite,
		draft.InvoiceURLs,
		draft.ProductImageURLs,
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", mapError(err))
	}
	// Draft ids arrive from the client. When the id already belongs to another
	// user the guarded update matches zero rows; stop before touching items.
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upsert draft %s: %w", draft.ID, repositories.ErrConflict)
	}

	clearQuery := `
		DELETE FROM order_draft_items
		USING order_drafts
		WHERE order_draft_items.draft_id = order_drafts.id
		  AND order_drafts.id = $1 AND order_drafts.user_id = $2`
	if _, err := tx.Exec(ctx, clearQuery, draft.ID, userID); err != nil {
		return fmt.Errorf("clear draft items: %w", err)
	}

	itemQuery := `
		INSERT INTO order_draft_items (draft_id, position, product_url, product_name, product_note, price, value_currency, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for position, item := range draft.SyncableItems() {
		_, err = tx.Exec(ctx, itemQuery,
			draft.ID,
			position,
			item.ProductURL,
			item.ProductName,
			item.ProductNote,
			item.Price,
			item.ValueCurrency,
			item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert draft item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes the draft and its items, scoped to the owner.
func (r *DraftRepository) Delete(ctx context.Context, userID, draftID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM order_drafts WHERE user_id = $1 AND id = $2`, userID, draftID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete draft %s: %w", draftID, repositories.ErrNotFound)
	}
	return nil
}

func (r *DraftRepository) listItems(ctx context.Context, draftID string) ([]domain.OrderDraftItem, error) {
	query := `
		SELECT product_url, product_name, product_note, price, value_currency, quantity
		FROM order_draft_items
		WHERE draft_id = $1
		ORDER BY position`

	rows, err := r.pool.Query(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("query draft items: %w", mapError(err))
	}
	defer rows.Close()

	var items []domain.OrderDraftItem
	for rows.Next() {
		var item domain.OrderDraftItem
		if err := rows.Scan(
			&item.ProductURL,
			&item.ProductName,
			&item.ProductNote,
			&item.Price,
			&item.ValueCurrency,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan draft item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draft items: %w", err)
	}
	return items, nil
}

type draftScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row draftScanner) (domain.OrderDraft, error) {
	var (
		draft       domain.OrderDraft
		serviceType string
	)
	err := row.Scan(
		&draft.ID,
		new(string), // user_id, already known to the caller
		&draft.Name,
		&draft.SavedAt,
		&serviceType,
		&draft.SourceCountryCode,
		&draft.DestinationCountryCode,
		&draft.PurchasedDate,
		&draft.PurchasedSite,
		&draft.InvoiceURLs,
		&draft.ProductImageURLs,
	)
	if err != nil {
		return domain.OrderDraft{}, fmt.Errorf("scan draft: %w", mapError(err))
	}
	draft.ServiceType = domain.ServiceType(serviceType)
	return draft, nil
}
