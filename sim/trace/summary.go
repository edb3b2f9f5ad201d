package trace

import (
	"cmp"
	"slices"
)

// ContentCount pairs a content with its request count.
type ContentCount struct {
	ContentID int32
	Requests  int
}

// TraceSummary aggregates statistics from a Trace.
type TraceSummary struct {
	Requests       int
	UniqueContents int
	FirstTimestamp int32
	LastTimestamp  int32
	Sorted         bool
	// MaxSingleContentShare is the request share of the most popular content.
	MaxSingleContentShare float64
	TopContents           []ContentCount // most requested first, ties by lower id
}

// Summarize computes aggregate statistics from a Trace, listing up to topN
// most popular contents. Safe for nil or empty traces (returns zero-value
// fields, Sorted true).
func Summarize(t *Trace, topN int) *TraceSummary {
	summary := &TraceSummary{Sorted: true}
	if t == nil || len(t.Records) == 0 {
		return summary
	}

	counts := make(map[int32]int)
	summary.Requests = len(t.Records)
	summary.FirstTimestamp = t.Records[0].Timestamp
	summary.LastTimestamp = t.Records[0].Timestamp
	for i, r := range t.Records {
		counts[r.ContentID]++
		summary.FirstTimestamp = min(summary.FirstTimestamp, r.Timestamp)
		summary.LastTimestamp = max(summary.LastTimestamp, r.Timestamp)
		if i > 0 && r.Timestamp < t.Records[i-1].Timestamp {
			summary.Sorted = false
		}
	}
	summary.UniqueContents = len(counts)

	ranked := make([]ContentCount, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, ContentCount{ContentID: id, Requests: n})
	}
	slices.SortFunc(ranked, func(a, b ContentCount) int {
		if c := cmp.Compare(b.Requests, a.Requests); c != 0 {
			return c
		}
		return cmp.Compare(a.ContentID, b.ContentID)
	})
	summary.MaxSingleContentShare = float64(ranked[0].Requests) / float64(summary.Requests)
	if topN > 0 {
		summary.TopContents = ranked[:min(topN, len(ranked))]
	}

	return summary
}
