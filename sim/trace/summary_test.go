package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	tr := &Trace{}

	// WHEN summarized
	summary := Summarize(tr, 3)

	// THEN all counts are zero
	if summary.Requests != 0 {
		t.Errorf("expected 0 requests, got %d", summary.Requests)
	}
	if summary.UniqueContents != 0 {
		t.Errorf("expected 0 unique contents, got %d", summary.UniqueContents)
	}
	if len(summary.TopContents) != 0 {
		t.Error("expected no top contents")
	}
	if !summary.Sorted {
		t.Error("expected empty trace to count as sorted")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil, 1)
	if summary.Requests != 0 || summary.MaxSingleContentShare != 0 {
		t.Error("expected zero summary for nil trace")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace where content 3 is the most popular
	tr := &Trace{Records: []Record{
		{ContentID: 3, Timestamp: 5},
		{ContentID: 1, Timestamp: 6},
		{ContentID: 3, Timestamp: 6},
		{ContentID: 2, Timestamp: 9},
		{ContentID: 3, Timestamp: 12},
		{ContentID: 1, Timestamp: 12},
	}}

	// WHEN summarized
	summary := Summarize(tr, 2)

	// THEN counts and span match
	if summary.Requests != 6 {
		t.Errorf("expected 6 requests, got %d", summary.Requests)
	}
	if summary.UniqueContents != 3 {
		t.Errorf("expected 3 unique contents, got %d", summary.UniqueContents)
	}
	if summary.FirstTimestamp != 5 || summary.LastTimestamp != 12 {
		t.Errorf("expected span [5, 12], got [%d, %d]", summary.FirstTimestamp, summary.LastTimestamp)
	}
	if summary.MaxSingleContentShare != 0.5 {
		t.Errorf("expected top share 0.5, got %f", summary.MaxSingleContentShare)
	}
	// AND the ranking is by count, then id
	want := []ContentCount{{ContentID: 3, Requests: 3}, {ContentID: 1, Requests: 2}}
	if len(summary.TopContents) != len(want) {
		t.Fatalf("expected %d top contents, got %d", len(want), len(summary.TopContents))
	}
	for i := range want {
		if summary.TopContents[i] != want[i] {
			t.Errorf("top[%d] = %+v, want %+v", i, summary.TopContents[i], want[i])
		}
	}
}

func TestSummarize_UnsortedTrace_Flagged(t *testing.T) {
	tr := &Trace{Records: []Record{{ContentID: 1, Timestamp: 4}, {ContentID: 1, Timestamp: 2}}}
	summary := Summarize(tr, 0)
	if summary.Sorted {
		t.Error("expected unsorted trace to be flagged")
	}
	if summary.FirstTimestamp != 2 {
		t.Errorf("expected first timestamp 2, got %d", summary.FirstTimestamp)
	}
	if summary.TopContents != nil {
		t.Error("expected no ranking when topN is 0")
	}
}
