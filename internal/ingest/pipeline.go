package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/inflow/internal/provider"
)

// DefaultChunkSize bounds how many prepared items share one atomic write set.
const DefaultChunkSize = 10

// SkipReasonAlreadySeen marks an item whose idempotency ledger entry already
// exists for this user.
const SkipReasonAlreadySeen = "already_seen"

const fallbackFailureMessage = "failed in batch and individual fallback"

// Pipeline composes transformation, validation, identity resolution and
// batched writes into the two ingestion entry points. It holds no mutable
// state: any number of workers may run overlapping inputs concurrently, with
// exclusivity delegated entirely to the store's unique constraints.
type Pipeline struct {
	store       Store
	log         *slog.Logger
	chunkSize   int
	creators    *CreatorResolver
	deadLetters *DeadLetterWriter
}

type Option func(*pipelineSettings)

type pipelineSettings struct {
	log         *slog.Logger
	chunkSize   int
	deadLetters bool
}

func WithLogger(log *slog.Logger) Option {
	return func(s *pipelineSettings) { s.log = log }
}

func WithChunkSize(n int) Option {
	return func(s *pipelineSettings) { s.chunkSize = n }
}

// WithoutDeadLetters disables dead-letter persistence; failures are still
// logged and counted.
func WithoutDeadLetters() Option {
	return func(s *pipelineSettings) { s.deadLetters = false }
}

func New(store Store, opts ...Option) *Pipeline {
	settings := pipelineSettings{
		log:         slog.Default(),
		chunkSize:   DefaultChunkSize,
		deadLetters: true,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.chunkSize <= 0 {
		settings.chunkSize = DefaultChunkSize
	}

	return &Pipeline{
		store:       store,
		log:         settings.log,
		chunkSize:   settings.chunkSize,
		creators:    NewCreatorResolver(store, settings.log),
		deadLetters: NewDeadLetterWriter(store, settings.log, settings.deadLetters),
	}
}

// ItemParams is the inbound contract for single-item ingestion.
type ItemParams struct {
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
	Provider       provider.Provider
	Raw            any
	Transform      TransformFunc
	ProviderID     ProviderIDFunc
}

// ItemResult reports what single-item ingestion did.
type ItemResult struct {
	Created       bool
	ItemID        uuid.UUID
	UserItemID    uuid.UUID
	SkippedReason string
}

// BatchParams is the inbound contract for consolidated batch ingestion.
type BatchParams struct {
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
	Provider       provider.Provider
	Items          []any
	Transform      TransformFunc
	ProviderID     ProviderIDFunc
	// ChunkSize overrides the pipeline default when positive.
	ChunkSize int
}

// ErrorDetail records one failed item.
type ErrorDetail struct {
	ProviderID string
	Error      string
}

// BatchResult is the complete summary returned for the entire input, partial
// failure included.
type BatchResult struct {
	Total          int
	Created        int
	Skipped        int
	Errors         int
	ErrorDetails   []ErrorDetail
	BatchCount     int
	FallbackCount  int
	DurationMillis int64
}

// IngestItem runs the full path for one raw payload: idempotency check,
// creator and canonical resolution, then a single atomic write set. The
// returned error covers the item's own failure; it is also dead-lettered.
func (p *Pipeline) IngestItem(ctx context.Context, params ItemParams) (ItemResult, error) {
	if err := checkCallContract(params.Provider, params.Transform); err != nil {
		return ItemResult{}, err
	}

	draft, err := params.Transform(params.Raw)
	if err != nil {
		p.deadLetters.Write(ctx, params.SubscriptionID, params.UserID, params.Provider, extractID(params.ProviderID, params.Raw), params.Raw, err)
		return ItemResult{}, err
	}
	if err := ValidateDraft(draft, params.Raw); err != nil {
		p.deadLetters.Write(ctx, params.SubscriptionID, params.UserID, params.Provider, draft.ProviderItemID, params.Raw, err)
		return ItemResult{}, err
	}

	seen, err := p.store.HasSeen(ctx, params.UserID, params.Provider, draft.ProviderItemID)
	if err != nil {
		p.deadLetters.Write(ctx, params.SubscriptionID, params.UserID, params.Provider, draft.ProviderItemID, params.Raw, err)
		return ItemResult{}, fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		// The item may predate creator normalization; give it a creator now.
		if item, err := p.store.FindCanonicalItem(ctx, params.Provider, draft.ProviderItemID); err == nil {
			p.creators.Backfill(ctx, item, params.Provider, params.Raw, draft)
		}
		return ItemResult{SkippedReason: SkipReasonAlreadySeen}, nil
	}

	creatorID := p.creators.Resolve(ctx, params.Provider, params.Raw, draft)
	itemID, isNew, err := p.resolveCanonical(ctx, draft, creatorID)
	if err != nil {
		p.deadLetters.Write(ctx, params.SubscriptionID, params.UserID, params.Provider, draft.ProviderItemID, params.Raw, err)
		return ItemResult{}, err
	}

	set := p.buildWriteSet(params.UserID, params.SubscriptionID, draft, itemID, isNew, creatorID)
	if err := p.store.ExecWriteSets(ctx, []WriteSet{set}); err != nil {
		p.deadLetters.Write(ctx, params.SubscriptionID, params.UserID, params.Provider, draft.ProviderItemID, params.Raw, err)
		return ItemResult{}, fmt.Errorf("write item: %w", err)
	}

	return ItemResult{Created: true, ItemID: itemID, UserItemID: set.UserItem.ID}, nil
}

// IngestBatch runs consolidated ingestion over N raw payloads: a sequential
// prepare phase with per-item failure isolation, chunked atomic writes, and a
// one-at-a-time fallback for failed chunks. The caller always gets a complete
// summary; the only errors returned are invocation-contract violations.
func (p *Pipeline) IngestBatch(ctx context.Context, params BatchParams) (BatchResult, error) {
	if err := checkCallContract(params.Provider, params.Transform); err != nil {
		return BatchResult{}, err
	}

	start := time.Now()
	res := BatchResult{Total: len(params.Items)}
	if len(params.Items) == 0 {
		return res, nil
	}

	// Prepare phase. Sequential on purpose: it keeps idempotency and
	// backfill side effects ordered and bounds load on shared lookups.
	prepared := make([]preparedItem, 0, len(params.Items))
	for _, raw := range params.Items {
		item, outcome, err := p.prepareOne(ctx, params, raw)
		switch outcome {
		case outcomePrepared:
			prepared = append(prepared, item)
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Errors++
			label := item.label
			if label == "" {
				label = extractID(params.ProviderID, raw)
			}
			res.ErrorDetails = append(res.ErrorDetails, ErrorDetail{ProviderID: label, Error: err.Error()})
			p.deadLetters.Write(ctx, params.SubscriptionID, params.UserID, params.Provider, label, raw, err)
		}
	}

	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = p.chunkSize
	}

	for begin := 0; begin < len(prepared); begin += chunkSize {
		end := min(begin+chunkSize, len(prepared))
		chunk := prepared[begin:end]
		res.BatchCount++

		sets := make([]WriteSet, len(chunk))
		for i, it := range chunk {
			sets[i] = p.buildWriteSet(params.UserID, params.SubscriptionID, it.draft, it.itemID, it.isNew, it.creatorID)
		}

		err := p.store.ExecWriteSets(ctx, sets)
		if err == nil {
			res.Created += len(chunk)
			continue
		}
		p.log.Warn("chunk write failed, retrying items individually",
			"chunkSize", len(chunk), "error", err)

		// Individual fallback, one item at a time, to isolate the offender.
		for i, it := range chunk {
			err := p.store.ExecWriteSets(ctx, sets[i:i+1])
			if err == nil {
				res.Created++
				res.FallbackCount++
				continue
			}
			res.Errors++
			res.ErrorDetails = append(res.ErrorDetails, ErrorDetail{
				ProviderID: it.draft.ProviderItemID,
				Error:      fallbackFailureMessage,
			})
			p.deadLetters.Write(ctx, params.SubscriptionID, params.UserID, params.Provider, it.draft.ProviderItemID, it.raw,
				fmt.Errorf("%s: %w", fallbackFailureMessage, err))
		}
	}

	res.DurationMillis = time.Since(start).Milliseconds()
	return res, nil
}

type prepareOutcome int

const (
	outcomePrepared prepareOutcome = iota
	outcomeSkipped
	outcomeFailed
)

type preparedItem struct {
	raw       any
	label     string
	draft     ItemDraft
	itemID    uuid.UUID
	isNew     bool
	creatorID *uuid.UUID
}

// prepareOne runs transform, validation, idempotency check and both identity
// resolutions for one raw payload. Unlike the single-item path, a seen item
// is dropped without a creator backfill; the bulk path trades that touch-up
// for throughput.
func (p *Pipeline) prepareOne(ctx context.Context, params BatchParams, raw any) (preparedItem, prepareOutcome, error) {
	item := preparedItem{raw: raw}

	draft, err := params.Transform(raw)
	if err != nil {
		return item, outcomeFailed, err
	}
	item.label = draft.ProviderItemID
	if err := ValidateDraft(draft, raw); err != nil {
		return item, outcomeFailed, err
	}

	seen, err := p.store.HasSeen(ctx, params.UserID, params.Provider, draft.ProviderItemID)
	if err != nil {
		return item, outcomeFailed, fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		return item, outcomeSkipped, nil
	}

	creatorID := p.creators.Resolve(ctx, params.Provider, raw, draft)
	itemID, isNew, err := p.resolveCanonical(ctx, draft, creatorID)
	if err != nil {
		return item, outcomeFailed, err
	}

	item.draft = draft
	item.itemID = itemID
	item.isNew = isNew
	item.creatorID = creatorID
	return item, outcomePrepared, nil
}

// resolveCanonical finds the shared item row. When it exists the draft's id
// is discarded in favor of the persisted one, with a creator backfill when
// the row lacks a link we just resolved. When absent, row creation is
// deferred to the write set so it lands atomically with its dependents.
func (p *Pipeline) resolveCanonical(ctx context.Context, draft ItemDraft, creatorID *uuid.UUID) (uuid.UUID, bool, error) {
	item, err := p.store.FindCanonicalItem(ctx, draft.Provider, draft.ProviderItemID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find canonical item: %w", err)
	}
	if item != nil {
		if item.CreatorID == nil && creatorID != nil {
			if err := p.store.AttachCreator(ctx, item.ID, *creatorID); err != nil {
				p.log.Warn("creator backfill on existing item failed",
					"itemId", item.ID, "error", err)
			}
		}
		return item.ID, false, nil
	}
	return draft.ID, true, nil
}

func (p *Pipeline) buildWriteSet(userID, subscriptionID uuid.UUID, draft ItemDraft, itemID uuid.UUID, isNew bool, creatorID *uuid.UUID) WriteSet {
	now := time.Now().UTC()

	var canonical *CanonicalItem
	if isNew {
		canonical = &CanonicalItem{
			ID:              itemID,
			Provider:        draft.Provider,
			ProviderItemID:  draft.ProviderItemID,
			Title:           draft.Title,
			Description:     draft.Description,
			CanonicalURL:    draft.CanonicalURL,
			ContentType:     draft.ContentType,
			CreatorID:       creatorID,
			ThumbnailURL:    draft.ThumbnailURL,
			DurationSeconds: draft.DurationSeconds,
			PublishedAt:     time.UnixMilli(draft.PublishedAt).UTC(),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	return WriteSet{
		Canonical: canonical,
		UserItem: UserItem{
			ID:        uuid.New(),
			UserID:    userID,
			ItemID:    itemID,
			Status:    UserItemStatusInbox,
			CreatedAt: now,
		},
		SubscriptionItem: SubscriptionItem{
			ID:             uuid.New(),
			SubscriptionID: subscriptionID,
			ProviderItemID: draft.ProviderItemID,
			FetchedAt:      now,
		},
		Seen: SeenRecord{
			UserID:         userID,
			Provider:       draft.Provider,
			ProviderItemID: draft.ProviderItemID,
			CreatedAt:      now,
		},
	}
}

func checkCallContract(p provider.Provider, transform TransformFunc) error {
	if !p.Valid() {
		return fmt.Errorf("unknown provider %q", p)
	}
	if transform == nil {
		return fmt.Errorf("transform function is required")
	}
	return nil
}

func extractID(fn ProviderIDFunc, raw any) string {
	if fn == nil {
		return ""
	}
	return fn(raw)
}
