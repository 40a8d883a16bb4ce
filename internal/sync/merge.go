package sync

import (
	"github.com/berrylist/backend/internal/storage/models"
)

// MergeEvents combines local and remote event sets with a last-write-wins
// policy keyed on updatedAt. The map is seeded from local events; a remote
// event overwrites its local counterpart unless the local one is strictly
// newer. A missing timestamp on either side means the remote copy wins.
// The result is sorted by date and the function is idempotent:
// MergeEvents(MergeEvents(a, b), b) == MergeEvents(a, b).
func MergeEvents(local, remote []models.Event) []models.Event {
	merged := make(map[string]models.Event, len(local)+len(remote))
	order := make([]string, 0, len(local)+len(remote))

	for _, e := range local {
		if _, seen := merged[e.ID]; !seen {
			order = append(order, e.ID)
		}
		merged[e.ID] = e
	}

	for _, e := range remote {
		existing, ok := merged[e.ID]
		if !ok {
			merged[e.ID] = e
			order = append(order, e.ID)
			continue
		}
		if localWins(existing, e) {
			continue
		}
		merged[e.ID] = e
	}

	result := make([]models.Event, 0, len(order))
	for _, id := range order {
		result = append(result, merged[id])
	}
	models.SortEvents(result)
	return result
}

// localWins reports whether the local copy survives a remote overwrite.
// Only a strictly newer local timestamp wins; ties and missing timestamps
// defer to the remote copy.
func localWins(local, remote models.Event) bool {
	lt := local.UpdatedTime()
	rt := remote.UpdatedTime()
	if lt.IsZero() || rt.IsZero() {
		return false
	}
	return lt.After(rt)
}

// ReconcileSnapshot applies a remote snapshot as the authoritative
// replacement for the local set. The snapshot is a full collection, so an
// event missing from it was deleted remotely and is dropped locally — with
// one guard: local events with a pending queued mutation, or strictly newer
// than their remote counterpart, survive until their own write lands.
//
// Both the login-time reconciliation and the push/poll path use this one
// function, so deletions made on another device propagate on every path.
func ReconcileSnapshot(local, snapshot []models.Event, pending map[string]bool) []models.Event {
	remote := make(map[string]models.Event, len(snapshot))
	for _, e := range snapshot {
		remote[e.ID] = e
	}

	result := make([]models.Event, 0, len(snapshot)+len(local))
	result = append(result, snapshot...)

	for _, e := range local {
		r, exists := remote[e.ID]
		if exists {
			if localWins(e, r) && !pending[e.ID] {
				// Replace the snapshot copy with the newer local one
				for i := range result {
					if result[i].ID == e.ID {
						result[i] = e
						break
					}
				}
			}
			continue
		}
		if pending[e.ID] {
			result = append(result, e)
		}
	}

	// Pending local copies override their snapshot counterparts outright:
	// the queued mutation has not reached the remote yet.
	if len(pending) > 0 {
		byID := make(map[string]models.Event, len(local))
		for _, e := range local {
			byID[e.ID] = e
		}
		for i := range result {
			if pending[result[i].ID] {
				if e, ok := byID[result[i].ID]; ok {
					result[i] = e
				}
			}
		}
	}

	models.SortEvents(result)
	return result
}
