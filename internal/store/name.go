// Package store implements the per-user vector index on Milvus, plus an
// in-memory implementation with the same contract for tests and offline
// runs.
package store

import "encoding/hex"

// CollectionName derives the physical collection name for a user:
// "u_" + lowercase hex of the raw user ID bytes. The fixed alphabet keeps
// the name storage-safe and the encoding injective, so two distinct user
// IDs can never share a collection. Operational tooling relies on this
// mapping to enumerate per-user storage.
func CollectionName(userID string) string {
	return "u_" + hex.EncodeToString([]byte(userID))
}
