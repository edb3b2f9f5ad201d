package trace

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsorted is returned when timestamps decrease.
var ErrUnsorted = errors.New("trace timestamps are not sorted")

// csvColumns is the header row written by ExportTrace.
var csvColumns = []string{"content_id", "timestamp"}

// Trace is an ordered request sequence.
type Trace struct {
	Header  Header
	Records []Record
}

// Columns splits the records into parallel id and timestamp slices.
func (t *Trace) Columns() (ids, timestamps []int32) {
	ids = make([]int32, len(t.Records))
	timestamps = make([]int32, len(t.Records))
	for i, r := range t.Records {
		ids[i] = r.ContentID
		timestamps[i] = r.Timestamp
	}
	return ids, timestamps
}

// CheckSorted returns ErrUnsorted naming the first row whose timestamp is
// below its predecessor's.
func (t *Trace) CheckSorted() error {
	for i := 1; i < len(t.Records); i++ {
		if t.Records[i].Timestamp < t.Records[i-1].Timestamp {
			return fmt.Errorf("%w: row %d has timestamp %d after %d",
				ErrUnsorted, i, t.Records[i].Timestamp, t.Records[i-1].Timestamp)
		}
	}
	return nil
}

// ReadCSV parses content_id,timestamp rows. A first row whose first field is
// not numeric is treated as a column header and skipped; an out-of-range id
// is an error on any row. Extra columns are
// ignored.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []Record
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		if len(row) < len(csvColumns) {
			return nil, fmt.Errorf("CSV row %d has %d columns, expected %d", line, len(row), len(csvColumns))
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 32)
		if err != nil {
			if line == 1 && errors.Is(err, strconv.ErrSyntax) {
				continue
			}
			return nil, fmt.Errorf("CSV row %d: content id: %w", line, err)
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: timestamp: %w", line, err)
		}
		if id < 0 {
			return nil, fmt.Errorf("CSV row %d: negative content id %d", line, id)
		}
		records = append(records, Record{ContentID: int32(id), Timestamp: int32(ts)})
	}
	return records, nil
}

// LoadHeader reads a YAML trace header. Unknown fields are rejected.
func LoadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("reading trace header: %w", err)
	}
	var h Header
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&h); err != nil && err != io.EOF {
		return Header{}, fmt.Errorf("parsing trace header: %w", err)
	}
	return h, nil
}

// LoadTrace reads the CSV at dataPath and, when headerPath is non-empty, its
// YAML header.
func LoadTrace(headerPath, dataPath string) (*Trace, error) {
	t := &Trace{}
	if headerPath != "" {
		h, err := LoadHeader(headerPath)
		if err != nil {
			return nil, err
		}
		t.Header = h
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("opening trace data: %w", err)
	}
	defer func() { _ = file.Close() }()

	records, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dataPath, err)
	}
	t.Records = records
	return t, nil
}

// ExportTrace writes the header (YAML) and records (CSV) to separate files.
// An empty headerPath skips the header.
func ExportTrace(t *Trace, headerPath, dataPath string) error {
	if headerPath != "" {
		headerData, err := yaml.Marshal(t.Header)
		if err != nil {
			return fmt.Errorf("marshaling trace header: %w", err)
		}
		if err := os.WriteFile(headerPath, headerData, 0644); err != nil {
			return fmt.Errorf("writing trace header: %w", err)
		}
	}

	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("creating trace data file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, r := range t.Records {
		row := []string{
			strconv.FormatInt(int64(r.ContentID), 10),
			strconv.FormatInt(int64(r.Timestamp), 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
