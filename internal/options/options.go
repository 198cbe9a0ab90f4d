// Package options gives every record the same set of multiple-choice keys so
// the published splits share fixed columns.
package options

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/BegaDeveloper/medqa/internal/dataset"
)

// CollectKeys returns the sorted union of option keys over every record whose
// options value is an object.
func CollectKeys(collection *dataset.Collection) []string {
	seen := map[string]struct{}{}
	for _, name := range collection.Names() {
		for _, record := range collection.Get(name) {
			entries, ok := decode(record.Options)
			if !ok {
				continue
			}
			for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
				seen[pair.Key] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Normalize rewrites every record's options to exactly keys, in that order.
// Values become their string form; missing, null or unusable entries become "".
func Normalize(collection *dataset.Collection, keys []string) {
	for _, name := range collection.Names() {
		records := collection.Get(name)
		for position := range records {
			records[position].Options = normalizeOne(records[position].Options, keys)
		}
	}
}

// Apply runs both passes and returns the key set that was enforced.
func Apply(collection *dataset.Collection) []string {
	keys := CollectKeys(collection)
	Normalize(collection, keys)
	return keys
}

func normalizeOne(raw json.RawMessage, keys []string) json.RawMessage {
	entries, ok := decode(raw)
	if !ok {
		entries = dataset.NewFields()
	}
	buffer := bytes.Buffer{}
	buffer.WriteByte('{')
	for position, key := range keys {
		value, _ := entries.Get(key)
		if position > 0 {
			buffer.WriteByte(',')
		}
		buffer.Write(dataset.String(key))
		buffer.WriteByte(':')
		buffer.Write(dataset.String(dataset.StringForm(value)))
	}
	buffer.WriteByte('}')
	return buffer.Bytes()
}

func decode(raw json.RawMessage) (*dataset.Fields, bool) {
	if !dataset.IsObject(raw) {
		return nil, false
	}
	entries := dataset.NewFields()
	if err := entries.UnmarshalJSON(raw); err != nil {
		return nil, false
	}
	return entries, true
}
