// Package dedupe finds records within a split that share the same question.
// It only reports; removal is driven by the prune policy.
package dedupe

import (
	"github.com/BegaDeveloper/medqa/internal/dataset"
)

// Pair is two record indices, First < Second, whose questions are identical.
type Pair struct {
	First  int
	Second int
}

// SplitPairs holds the duplicate pairs found in one split.
type SplitPairs struct {
	Split string
	Pairs []Pair
}

// Report is the duplicate scan of every split, in split order.
type Report struct {
	Splits []SplitPairs
}

// Any reports whether at least one split has a duplicate pair.
func (report Report) Any() bool {
	for _, split := range report.Splits {
		if len(split.Pairs) > 0 {
			return true
		}
	}
	return false
}

// Count is the number of pairs across all splits.
func (report Report) Count() int {
	total := 0
	for _, split := range report.Splits {
		total += len(split.Pairs)
	}
	return total
}

// Scan runs FindPairs over every split of the collection.
func Scan(collection *dataset.Collection) Report {
	report := Report{}
	for _, name := range collection.Names() {
		report.Splits = append(report.Splits, SplitPairs{
			Split: name,
			Pairs: FindPairs(collection.Get(name)),
		})
	}
	return report
}

// FindPairs groups records by the string form of their question and returns
// every pair inside each group. Groups come in order of first appearance and
// pairs within a group follow load order.
func FindPairs(records []dataset.Record) []Pair {
	groups := map[string][]int{}
	order := make([]string, 0)
	for _, record := range records {
		question := dataset.StringForm(record.Question)
		if _, seen := groups[question]; !seen {
			order = append(order, question)
		}
		groups[question] = append(groups[question], record.Index)
	}

	pairs := make([]Pair, 0)
	for _, question := range order {
		indices := groups[question]
		for i := 0; i < len(indices); i++ {
			for j := i + 1; j < len(indices); j++ {
				pairs = append(pairs, Pair{First: indices[i], Second: indices[j]})
			}
		}
	}
	return pairs
}
