package storage

import (
	"chat-ingest/authstate"
	"sort"

	"github.com/samber/lo"
)

type keyEntry struct {
	category string
	id       string
	value    authstate.Value
}

// flattenBatch orders batch entries by category then key id.
func flattenBatch(batch authstate.KeyBatch) []keyEntry {
	var entries []keyEntry
	categories := lo.Keys(batch)
	sort.Strings(categories)
	for _, category := range categories {
		ids := lo.Keys(batch[category])
		sort.Strings(ids)
		for _, id := range ids {
			entries = append(entries, keyEntry{category: category, id: id, value: batch[category][id]})
		}
	}
	return entries
}
