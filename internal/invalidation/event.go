// Package invalidation defines dataset-update events consumed from the
// message bus.
package invalidation

// Event announces that the upstream school dataset was republished. Version
// is monotonically increasing per dataset; stale or replayed versions are
// ignored.
type Event struct {
	Op      string `json:"op"` // "dataset_updated"
	Dataset string `json:"dataset"`
	Version uint64 `json:"version"`
}

const OpDatasetUpdated = "dataset_updated"
