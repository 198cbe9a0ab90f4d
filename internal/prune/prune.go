// Package prune removes known bad records from each split and renumbers the
// survivors. It must run after duplicate reporting, which works on
// pre-filter indices.
package prune

import (
	"github.com/BegaDeveloper/medqa/internal/dataset"
)

// Filter drops the records whose current index is in drop and reindexes the
// rest densely from zero, keeping the old index as the source index. Indices
// in drop that match no record are ignored.
func Filter(records []dataset.Record, drop IndexSet) []dataset.Record {
	kept := make([]dataset.Record, 0, len(records))
	for _, record := range records {
		if drop.Contains(record.Index) {
			continue
		}
		sourceIndex := record.Index
		record.SourceIndex = &sourceIndex
		record.Index = len(kept)
		kept = append(kept, record)
	}
	return kept
}

// Apply filters every split of the collection in place and returns how many
// records each split lost.
func Apply(collection *dataset.Collection, policy Policy) map[string]int {
	dropped := map[string]int{}
	for _, name := range collection.Names() {
		records := collection.Get(name)
		kept := Filter(records, policy.For(name))
		dropped[name] = len(records) - len(kept)
		collection.Put(name, kept)
	}
	return dropped
}
