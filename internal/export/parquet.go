package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"optionsViewer/internal/dashboard"
)

// OptionRecord is the Parquet row layout of a merged option table.
type OptionRecord struct {
	Root       string  `parquet:"root"`
	Strike     string  `parquet:"strike"`
	Right      string  `parquet:"right"`
	Expiration string  `parquet:"expiration"`
	Date       int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	Count      int64   `parquet:"count"`
	Bid        float64 `parquet:"bid"`
	Ask        float64 `parquet:"ask"`
}

// Records flattens a view's merged table.
func Records(v *dashboard.View) []OptionRecord {
	sel := v.Selection
	out := make([]OptionRecord, 0, len(v.Table.Rows))
	for _, r := range v.Table.Rows {
		out = append(out, OptionRecord{
			Root:       sel.Root,
			Strike:     sel.Strike.String(),
			Right:      sel.Right.String(),
			Expiration: r.Expiration,
			Date:       r.Date.UnixMilli(),
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			Volume:     r.Volume,
			Count:      r.Count,
			Bid:        r.Bid,
			Ask:        r.Ask,
		})
	}
	return out
}

// Writer saves merged option tables as Parquet files under a directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer { return &Writer{dir: dir} }

// Write stores the view's merged table and returns the file path.
func (w *Writer) Write(v *dashboard.View) (string, error) {
	if v == nil || v.Table.Empty() {
		return "", fmt.Errorf("export: %w", dashboard.ErrEmptyPanel)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: creating %s: %w", w.dir, err)
	}
	id := v.ID
	if len(id) < 8 {
		id = uuid.NewString()
	}
	name := fmt.Sprintf("%s_%s_%s_%s.parquet",
		strings.ToUpper(v.Selection.Root), dashboard.FormatExpiration(v.Selection.Expiration),
		strings.ReplaceAll(v.Selection.Strike.String(), ".", "p"), id[:8])
	path := filepath.Join(w.dir, name)
	if err := parquet.WriteFile(path, Records(v)); err != nil {
		return "", fmt.Errorf("export: writing %s: %w", path, err)
	}
	return path, nil
}

// Read loads records written by Write.
func Read(path string) ([]OptionRecord, error) {
	return parquet.ReadFile[OptionRecord](path)
}
