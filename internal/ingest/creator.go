package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"thirdcoast.systems/inflow/internal/provider"
)

type creatorMeta struct {
	id        string
	name      string
	avatarURL string
}

// nativeCreatorMeta pulls the provider-issued creator identity out of a raw
// payload. Absent metadata is not an error; the item simply carries no
// creator.
func nativeCreatorMeta(raw any) (creatorMeta, bool) {
	if v, ok := asYouTubeVideo(raw); ok {
		if v.ChannelID == "" {
			return creatorMeta{}, false
		}
		return creatorMeta{id: v.ChannelID, name: v.ChannelTitle}, true
	}
	if e, ok := asSpotifyEpisode(raw); ok {
		if e.ShowID == "" {
			return creatorMeta{}, false
		}
		return creatorMeta{id: e.ShowID, name: e.ShowName, avatarURL: e.ShowImageURL}, true
	}
	return creatorMeta{}, false
}

// CreatorResolver find-or-creates normalized creator identities. Every
// failure degrades to "no creator resolved"; creator resolution never fails
// the enclosing item's ingestion.
type CreatorResolver struct {
	store Store
	log   *slog.Logger
}

func NewCreatorResolver(store Store, log *slog.Logger) *CreatorResolver {
	if log == nil {
		log = slog.Default()
	}
	return &CreatorResolver{store: store, log: log}
}

// Resolve returns the id of the creator for this payload, or nil when none
// can be determined.
func (r *CreatorResolver) Resolve(ctx context.Context, p provider.Provider, raw any, draft ItemDraft) *uuid.UUID {
	var c Creator

	if p.HasNativeCreatorID() {
		meta, ok := nativeCreatorMeta(raw)
		if !ok {
			return nil
		}
		name := meta.name
		if strings.TrimSpace(name) == "" {
			name = draft.CreatorName
		}
		c = Creator{
			ID:                uuid.New(),
			Provider:          p,
			ProviderCreatorID: meta.id,
			Name:              name,
			AvatarURL:         meta.avatarURL,
		}
	} else {
		name := strings.TrimSpace(draft.CreatorName)
		// The "Unknown" placeholder means the payload carried no author at
		// all; don't mint a creator for it.
		if name == "" || name == UnknownCreatorName {
			return nil
		}
		id := SyntheticCreatorID(p, name)
		c = Creator{
			ID:                id,
			Provider:          p,
			ProviderCreatorID: id.String(),
			Name:              name,
			AvatarURL:         draft.ThumbnailURL,
		}
	}

	id, err := r.store.UpsertCreator(ctx, c)
	if err != nil {
		r.log.Warn("creator resolution failed, continuing without creator",
			"provider", p, "creator", c.ProviderCreatorID, "error", err)
		return nil
	}
	return &id
}

// Backfill attaches a creator to a canonical item that predates creator
// normalization. Best-effort: failures are logged and swallowed.
func (r *CreatorResolver) Backfill(ctx context.Context, item *CanonicalItem, p provider.Provider, raw any, draft ItemDraft) {
	if item == nil || item.CreatorID != nil {
		return
	}
	creatorID := r.Resolve(ctx, p, raw, draft)
	if creatorID == nil {
		return
	}
	if err := r.store.AttachCreator(ctx, item.ID, *creatorID); err != nil {
		r.log.Warn("creator backfill failed",
			"provider", p, "itemId", item.ID, "error", err)
	}
}
