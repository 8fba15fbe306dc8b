package engine

import "sort"

// ColumnStore holds the case table in Struct-of-Arrays format for speed.
// Counts are cumulative as reported; Derive turns them into daily deltas.
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Dates     []int32 // YYYYMMDD
	Confirmed []int64
	Deaths    []int64
	Recovered []int64

	// Dictionary Encoded region column (ID -> String)
	RegionIDs  []int32
	RegionDict []string

	// Rows discarded at load because their date did not parse
	DroppedRows int
}

func (cs *ColumnStore) Len() int { return len(cs.Dates) }

// Regions returns the distinct region names, sorted ascending.
func (cs *ColumnStore) Regions() []string {
	out := make([]string, len(cs.RegionDict))
	copy(out, cs.RegionDict)
	sort.Strings(out)
	return out
}
