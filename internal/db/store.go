package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"thirdcoast.systems/inflow/internal/ingest"
	"thirdcoast.systems/inflow/internal/provider"
)

// Store implements ingest.Store on Postgres. Exclusivity comes from the
// schema's unique constraints plus ON CONFLICT DO NOTHING inserts; atomicity
// of a write set comes from sending its statements as one pgx batch inside a
// transaction.
type Store struct {
	pool *pgxpool.Pool
}

var _ ingest.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const canonicalItemColumns = `id, provider, provider_item_id, title, description, canonical_url,
	content_type, creator_id, thumbnail_url, duration_seconds, published_at, created_at, updated_at`

func (s *Store) FindCanonicalItem(ctx context.Context, p provider.Provider, providerItemID string) (*ingest.CanonicalItem, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+canonicalItemColumns+`
		FROM canonical_items
		WHERE provider = $1 AND provider_item_id = $2
	`, p, providerItemID)

	item, err := scanCanonicalItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find canonical item: %w", err)
	}
	return item, nil
}

func scanCanonicalItem(row pgx.Row) (*ingest.CanonicalItem, error) {
	var item ingest.CanonicalItem
	var creatorID pgtype.UUID
	var duration pgtype.Int8

	err := row.Scan(
		&item.ID, &item.Provider, &item.ProviderItemID, &item.Title, &item.Description,
		&item.CanonicalURL, &item.ContentType, &creatorID, &item.ThumbnailURL,
		&duration, &item.PublishedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if creatorID.Valid {
		id := uuid.UUID(creatorID.Bytes)
		item.CreatorID = &id
	}
	if duration.Valid {
		d := duration.Int64
		item.DurationSeconds = &d
	}
	return &item, nil
}

func (s *Store) AttachCreator(ctx context.Context, itemID, creatorID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE canonical_items
		SET creator_id = $2, updated_at = now()
		WHERE id = $1 AND creator_id IS NULL
	`, itemID, creatorID)
	if err != nil {
		return fmt.Errorf("failed to attach creator: %w", err)
	}
	return nil
}

func (s *Store) HasSeen(ctx context.Context, userID uuid.UUID, p provider.Provider, providerItemID string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_items_seen
			WHERE user_id = $1 AND provider = $2 AND provider_item_id = $3
		)
	`, userID, p, providerItemID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("failed to check seen ledger: %w", err)
	}
	return seen, nil
}

// UpsertCreator inserts the creator if absent. On conflict the insert returns
// no row and the id of the already-persisted creator is read back, so a
// concurrent loser converges on the winner's row.
func (s *Store) UpsertCreator(ctx context.Context, c ingest.Creator) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO creators (id, provider, provider_creator_id, name, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (provider, provider_creator_id) DO NOTHING
		RETURNING id
	`, c.ID, c.Provider, c.ProviderCreatorID, c.Name, c.AvatarURL).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("failed to insert creator: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT id FROM creators WHERE provider = $1 AND provider_creator_id = $2
	`, c.Provider, c.ProviderCreatorID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read existing creator: %w", err)
	}
	return id, nil
}

func (s *Store) InsertDeadLetter(ctx context.Context, d ingest.DeadLetter) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letters
			(id, subscription_id, user_id, provider, provider_item_id,
			 payload, error_message, error_type, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, d.ID, d.SubscriptionID, d.UserID, d.Provider, d.ProviderItemID,
		d.Payload, d.ErrorMessage, d.ErrorType, d.Detail, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

// ExecWriteSets queues every statement of every set into one pgx batch and
// runs it inside a transaction: all rows land or none do. Each insert no-ops
// on unique-key conflict, so a losing concurrent writer sees no error.
func (s *Store) ExecWriteSets(ctx context.Context, sets []ingest.WriteSet) error {
	if len(sets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, set := range sets {
		queueWriteSet(batch, set)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin write set transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to execute write set statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close write set batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit write set: %w", err)
	}
	return nil
}

func queueWriteSet(batch *pgx.Batch, set ingest.WriteSet) {
	if c := set.Canonical; c != nil {
		batch.Queue(`
			INSERT INTO canonical_items
				(id, provider, provider_item_id, title, description, canonical_url,
				 content_type, creator_id, thumbnail_url, duration_seconds,
				 published_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (provider, provider_item_id) DO NOTHING
		`, c.ID, c.Provider, c.ProviderItemID, c.Title, c.Description, c.CanonicalURL,
			c.ContentType, c.CreatorID, c.ThumbnailURL, c.DurationSeconds,
			c.PublishedAt, c.CreatedAt, c.UpdatedAt)
	}

	u := set.UserItem
	batch.Queue(`
		INSERT INTO user_items (id, user_id, item_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, item_id) DO NOTHING
	`, u.ID, u.UserID, u.ItemID, u.Status, u.CreatedAt)

	si := set.SubscriptionItem
	batch.Queue(`
		INSERT INTO subscription_items (id, subscription_id, provider_item_id, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subscription_id, provider_item_id) DO NOTHING
	`, si.ID, si.SubscriptionID, si.ProviderItemID, si.FetchedAt)

	seen := set.Seen
	batch.Queue(`
		INSERT INTO provider_items_seen (user_id, provider, provider_item_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider, provider_item_id) DO NOTHING
	`, seen.UserID, seen.Provider, seen.ProviderItemID, seen.CreatedAt)
}

// ListDeadLetters returns the newest failure records for operator inspection.
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]ingest.DeadLetter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscription_id, user_id, provider, provider_item_id,
		       payload, error_message, error_type, detail, created_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var out []ingest.DeadLetter
	for rows.Next() {
		var d ingest.DeadLetter
		err := rows.Scan(
			&d.ID, &d.SubscriptionID, &d.UserID, &d.Provider, &d.ProviderItemID,
			&d.Payload, &d.ErrorMessage, &d.ErrorType, &d.Detail, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letter rows: %w", err)
	}
	return out, nil
}
