package score

import "sort"

// CategoryResult is one category feed's contribution to a scan run:
// the configured weight and the symbols the feed listed.
type CategoryResult struct {
	Name    string
	Weight  int
	Symbols []string
}

// Record is a symbol's aggregate across all category feeds. Categories
// holds the feed names in first-seen order for display.
type Record struct {
	Symbol     string   `json:"symbol"`
	Score      int      `json:"score"`
	Categories []string `json:"categories"`

	order int // First-seen position, used as the ranking tie break
}

// Aggregate merges per-category symbol lists into weighted records.
// A symbol's score is the sum of the weights of every category listing
// it; a duplicate listing within one category counts once. Pure function
// of its inputs.
func Aggregate(results []CategoryResult) map[string]*Record {
	records := make(map[string]*Record)
	next := 0

	for _, cat := range results {
		seen := make(map[string]bool, len(cat.Symbols))
		for _, symbol := range cat.Symbols {
			if symbol == "" || seen[symbol] {
				continue
			}
			seen[symbol] = true

			rec, ok := records[symbol]
			if !ok {
				rec = &Record{Symbol: symbol, order: next}
				next++
				records[symbol] = rec
			}
			rec.Score += cat.Weight
			rec.Categories = append(rec.Categories, cat.Name)
		}
	}
	return records
}

// Rank filters records below minScore, orders the rest descending by
// score with first-seen symbols winning ties, and truncates to
// maxUniverse. An empty result is normal, not an error.
func Rank(records map[string]*Record, minScore, maxUniverse int) []Record {
	ranked := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Score < minScore {
			continue
		}
		ranked = append(ranked, *rec)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].order < ranked[j].order
	})

	if maxUniverse > 0 && len(ranked) > maxUniverse {
		ranked = ranked[:maxUniverse]
	}
	return ranked
}
