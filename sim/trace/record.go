// Package trace reads and writes content-request traces: a CSV of
// (content_id, timestamp) rows with an optional YAML header file.
// This package has no dependencies on sim/. It stores pure data types.
package trace

// Record is one content request.
type Record struct {
	ContentID int32
	Timestamp int32
}

// Header carries trace metadata stored next to the CSV data.
type Header struct {
	Name     string `yaml:"name,omitempty"`
	TimeUnit string `yaml:"time_unit,omitempty"`
	// SliceInterval is the suggested tick width in timestamp units.
	SliceInterval int32 `yaml:"slice_interval,omitempty"`
	// Begin and End bound the suggested slicing range; End is exclusive.
	Begin int32 `yaml:"begin,omitempty"`
	End   int32 `yaml:"end,omitempty"`
}
