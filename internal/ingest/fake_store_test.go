package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"thirdcoast.systems/inflow/internal/provider"
)

// fakeStore is an in-memory Store honoring the same contract as the Postgres
// implementation: unique-keyed rows, insert-if-absent writes, and
// all-or-nothing write sets. Failure injection knobs drive the degradation
// paths under test.
type fakeStore struct {
	mu sync.Mutex

	canonical map[string]*CanonicalItem
	userItems map[string]UserItem
	subItems  map[string]SubscriptionItem
	seen      map[string]SeenRecord
	creators  map[string]Creator
	letters   []DeadLetter

	calls int

	failGroupedWrites bool            // fail any ExecWriteSets call with more than one set
	failItemIDs       map[string]bool // fail any write set containing this provider item id
	seenErr           error
	upsertCreatorErr  error
	deadLetterErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		canonical: make(map[string]*CanonicalItem),
		userItems: make(map[string]UserItem),
		subItems:  make(map[string]SubscriptionItem),
		seen:      make(map[string]SeenRecord),
		creators:  make(map[string]Creator),
	}
}

func itemKey(p provider.Provider, providerItemID string) string {
	return string(p) + "\x00" + providerItemID
}

func seenKey(userID uuid.UUID, p provider.Provider, providerItemID string) string {
	return userID.String() + "\x00" + string(p) + "\x00" + providerItemID
}

func (f *fakeStore) FindCanonicalItem(_ context.Context, p provider.Provider, providerItemID string) (*CanonicalItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	item, ok := f.canonical[itemKey(p, providerItemID)]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (f *fakeStore) AttachCreator(_ context.Context, itemID, creatorID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	for _, item := range f.canonical {
		if item.ID == itemID && item.CreatorID == nil {
			id := creatorID
			item.CreatorID = &id
		}
	}
	return nil
}

func (f *fakeStore) HasSeen(_ context.Context, userID uuid.UUID, p provider.Provider, providerItemID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.seenErr != nil {
		return false, f.seenErr
	}
	_, ok := f.seen[seenKey(userID, p, providerItemID)]
	return ok, nil
}

func (f *fakeStore) UpsertCreator(_ context.Context, c Creator) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.upsertCreatorErr != nil {
		return uuid.Nil, f.upsertCreatorErr
	}
	key := string(c.Provider) + "\x00" + c.ProviderCreatorID
	if existing, ok := f.creators[key]; ok {
		return existing.ID, nil
	}
	f.creators[key] = c
	return c.ID, nil
}

func (f *fakeStore) InsertDeadLetter(_ context.Context, d DeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.deadLetterErr != nil {
		return f.deadLetterErr
	}
	f.letters = append(f.letters, d)
	return nil
}

func (f *fakeStore) ExecWriteSets(_ context.Context, sets []WriteSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.failGroupedWrites && len(sets) > 1 {
		return errors.New("postgres: grouped write rejected")
	}
	for _, set := range sets {
		if f.failItemIDs[set.Seen.ProviderItemID] {
			return errors.New("postgres: write rejected")
		}
	}

	// All statements passed the failure gate; apply them insert-if-absent.
	for _, set := range sets {
		if c := set.Canonical; c != nil {
			key := itemKey(c.Provider, c.ProviderItemID)
			if _, ok := f.canonical[key]; !ok {
				cp := *c
				f.canonical[key] = &cp
			}
		}
		uKey := set.UserItem.UserID.String() + "\x00" + set.UserItem.ItemID.String()
		if _, ok := f.userItems[uKey]; !ok {
			f.userItems[uKey] = set.UserItem
		}
		sKey := set.SubscriptionItem.SubscriptionID.String() + "\x00" + set.SubscriptionItem.ProviderItemID
		if _, ok := f.subItems[sKey]; !ok {
			f.subItems[sKey] = set.SubscriptionItem
		}
		k := seenKey(set.Seen.UserID, set.Seen.Provider, set.Seen.ProviderItemID)
		if _, ok := f.seen[k]; !ok {
			f.seen[k] = set.Seen
		}
	}
	return nil
}

func (f *fakeStore) userItemCount(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, u := range f.userItems {
		if u.UserID == userID {
			n++
		}
	}
	return n
}

func (f *fakeStore) canonicalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.canonical)
}
