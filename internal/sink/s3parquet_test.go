package sink

import (
	"bytes"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"

	"fintrac/internal/model"
)

// bufferFile adapts an in-memory byte slice to the ParquetFile interface so
// an encoded snapshot can be read back without touching disk.
type bufferFile struct {
	data []byte
	r    *bytes.Reader
}

func newBufferFile(data []byte) *bufferFile {
	return &bufferFile{data: data, r: bytes.NewReader(data)}
}

func (f *bufferFile) Create(name string) (source.ParquetFile, error) { return f, nil }
func (f *bufferFile) Open(name string) (source.ParquetFile, error)   { return newBufferFile(f.data), nil }

func (f *bufferFile) Seek(offset int64, whence int) (int64, error) {
	return f.r.Seek(offset, whence)
}

func (f *bufferFile) Read(b []byte) (int, error)  { return f.r.Read(b) }
func (f *bufferFile) Write(b []byte) (int, error) { return 0, nil }
func (f *bufferFile) Close() error                { return nil }

func readSnapshotParquet(t *testing.T, data []byte) []ParquetRecord {
	t.Helper()

	pr, err := reader.NewParquetReader(newBufferFile(data), new(ParquetRecord), 4)
	if err != nil {
		t.Fatalf("open parquet reader: %v", err)
	}
	defer pr.ReadStop()

	records := make([]ParquetRecord, pr.GetNumRows())
	if err := pr.Read(&records); err != nil {
		t.Fatalf("read parquet records: %v", err)
	}
	return records
}

func TestEncodeSnapshotParquet(t *testing.T) {
	table := sampleTable()

	data, err := encodeSnapshotParquet("sector_data", table)
	if err != nil {
		t.Fatalf("encodeSnapshotParquet failed: %v", err)
	}

	records := readSnapshotParquet(t, data)
	if want := table.Rows() * len(table.Columns); len(records) != want {
		t.Fatalf("expected %d records, got %d", want, len(records))
	}

	byCell := make(map[string]ParquetRecord, len(records))
	for _, rec := range records {
		if rec.Snapshot != "sector_data" {
			t.Errorf("unexpected snapshot name: %s", rec.Snapshot)
		}
		byCell[rec.Series+"@"+time.UnixMilli(rec.Timestamp).UTC().Format("2006-01-02")] = rec
	}

	spy := byCell["S&P 500@2024-01-31"]
	if spy.Value == nil || *spy.Value != 470.5 {
		t.Errorf("unexpected value for S&P 500 January cell: %v", spy.Value)
	}

	// The CPI February cell is nil in the table and must come back as an
	// optional null, not a zero.
	cpi, ok := byCell["CPI@2024-02-29"]
	if !ok {
		t.Fatal("missing CPI February record")
	}
	if cpi.Value != nil {
		t.Errorf("nil cell must round-trip as null, got %v", *cpi.Value)
	}
}

func TestEncodeSnapshotParquetEmptyTable(t *testing.T) {
	empty := model.AlignedTable{
		Columns: []model.SeriesID{{Symbol: "SPY", Name: "S&P 500"}},
	}

	data, err := encodeSnapshotParquet("sector_data", empty)
	if err != nil {
		t.Fatalf("encodeSnapshotParquet failed on empty table: %v", err)
	}
	if records := readSnapshotParquet(t, data); len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
