package ingest

import (
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/inflow/internal/provider"
)

// ContentType categorizes what kind of media a canonical item holds.
type ContentType string

const (
	ContentTypeVideo   ContentType = "video"
	ContentTypeEpisode ContentType = "episode"
	ContentTypeArticle ContentType = "article"
)

// UserItemStatusInbox is the state every user item starts in. Read/archive
// transitions belong to the inbox subsystem, not ingestion.
const UserItemStatusInbox = "inbox"

// ItemDraft is the provider-agnostic output of a transformer, before
// validation and storage resolution. Timestamps are Unix milliseconds.
type ItemDraft struct {
	// ID is the candidate canonical item id, used only when no canonical
	// row exists yet for (Provider, ProviderItemID).
	ID              uuid.UUID
	Provider        provider.Provider
	ProviderItemID  string
	Title           string
	Description     string
	CanonicalURL    string
	ContentType     ContentType
	CreatorName     string
	ThumbnailURL    string
	DurationSeconds *int64
	PublishedAt     int64
	CreatedAt       int64
}

// CanonicalItem is the single shared content record for a
// (provider, providerItemID) pair, independent of how many users ingested it.
type CanonicalItem struct {
	ID              uuid.UUID
	Provider        provider.Provider
	ProviderItemID  string
	Title           string
	Description     string
	CanonicalURL    string
	ContentType     ContentType
	CreatorID       *uuid.UUID
	ThumbnailURL    string
	DurationSeconds *int64
	PublishedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserItem is one user's inbox entry for a canonical item.
type UserItem struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ItemID    uuid.UUID
	Status    string
	CreatedAt time.Time
}

// SubscriptionItem records which subscription surfaced an item and when.
type SubscriptionItem struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	ProviderItemID string
	FetchedAt      time.Time
}

// SeenRecord is the idempotency ledger entry. Its existence means ingestion
// for this user+item was already attempted.
type SeenRecord struct {
	UserID         uuid.UUID
	Provider       provider.Provider
	ProviderItemID string
	CreatedAt      time.Time
}

// Creator is a normalized creator/channel/show identity.
type Creator struct {
	ID                uuid.UUID
	Provider          provider.Provider
	ProviderCreatorID string
	Name              string
	AvatarURL         string
	CreatedAt         time.Time
}

// DeadLetter is an append-only record of a permanently failed ingestion
// attempt, kept for operator inspection and manual replay.
type DeadLetter struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	Provider       provider.Provider
	ProviderItemID string
	Payload        []byte
	ErrorMessage   string
	ErrorType      ErrorType
	Detail         string
	CreatedAt      time.Time
}
