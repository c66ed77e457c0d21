package ingest

import (
	"github.com/google/uuid"
	"thirdcoast.systems/inflow/internal/provider"
)

// UUIDv5 namespaces for deterministic ids. Deriving ids from content keys
// instead of minting random ones makes concurrent duplicate ingestion
// converge: two workers racing on the same provider item produce identical
// rows, and the loser's inserts no-op on conflict.
var (
	itemNamespace    = uuid.NewSHA1(uuid.NameSpaceURL, []byte("thirdcoast.systems/inflow/item"))
	creatorNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("thirdcoast.systems/inflow/creator"))
)

// CanonicalItemID returns the deterministic id for a (provider, providerItemID)
// pair.
func CanonicalItemID(p provider.Provider, providerItemID string) uuid.UUID {
	return uuid.NewSHA1(itemNamespace, []byte(string(p)+"\n"+providerItemID))
}

// SyntheticCreatorID returns a deterministic id for creators whose provider
// issues no stable id of its own. Same provider and display name always yield
// the same id, so separate batches converge on one creator row.
func SyntheticCreatorID(p provider.Provider, name string) uuid.UUID {
	return uuid.NewSHA1(creatorNamespace, []byte(string(p)+"\n"+name))
}
