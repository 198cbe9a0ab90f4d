package dataset

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	SplitTrain   = "train"
	SplitTest    = "test"
	SplitDev     = "dev"
	SplitUSQBank = "us_qbank"
)

// Split names one partition of the dataset and the file it is stored in.
type Split struct {
	Name string
	File string
}

// Catalogue is the fixed set of splits, in processing order.
var Catalogue = []Split{
	{Name: SplitTrain, File: "train.jsonl"},
	{Name: SplitTest, File: "test.jsonl"},
	{Name: SplitDev, File: "dev.jsonl"},
	{Name: SplitUSQBank, File: "us_qbank.jsonl"},
}

// LookupSplit finds a catalogue entry by name.
func LookupSplit(name string) (Split, bool) {
	for _, split := range Catalogue {
		if split.Name == name {
			return split, true
		}
	}
	return Split{}, false
}

// Collection holds the records of several splits in insertion order.
type Collection struct {
	splits *orderedmap.OrderedMap[string, []Record]
}

func NewCollection() *Collection {
	return &Collection{splits: orderedmap.New[string, []Record]()}
}

// Put stores or replaces the records of a split. Replacing keeps the split's
// original position.
func (collection *Collection) Put(name string, records []Record) {
	collection.splits.Set(name, records)
}

func (collection *Collection) Get(name string) []Record {
	records, _ := collection.splits.Get(name)
	return records
}

func (collection *Collection) Names() []string {
	names := make([]string, 0, collection.splits.Len())
	for pair := collection.splits.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Total is the number of records across all splits.
func (collection *Collection) Total() int {
	total := 0
	for pair := collection.splits.Oldest(); pair != nil; pair = pair.Next() {
		total += len(pair.Value)
	}
	return total
}
