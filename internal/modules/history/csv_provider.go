package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/domain"
)

type csvDate struct {
	time.Time
}

func (d *csvDate) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = domain.Day(t)
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}

func (d csvDate) MarshalCSV() (string, error) {
	return d.Format(dateLayout), nil
}

type csvRow struct {
	Date     csvDate `csv:"date"`
	Close    float64 `csv:"close"`
	AdjClose float64 `csv:"adj_close,omitempty"`
}

// ReadCSV parses date,close[,adj_close] rows.
func ReadCSV(r io.Reader) ([]Bar, error) {
	var rows []csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	bars := make([]Bar, len(rows))
	for i, row := range rows {
		bars[i] = Bar{Date: row.Date.Time, Close: row.Close, AdjClose: row.AdjClose}
	}
	return bars, nil
}

// WriteCSV writes bars in the format ReadCSV accepts.
func WriteCSV(w io.Writer, bars []Bar) error {
	rows := make([]csvRow, len(bars))
	for i, b := range bars {
		rows[i] = csvRow{Date: csvDate{domain.Day(b.Date)}, Close: b.Close, AdjClose: b.AdjClose}
	}
	return gocsv.Marshal(rows, w)
}

// CSVProvider serves prices from <dir>/<SYMBOL>.csv files.
type CSVProvider struct {
	dir string
	log zerolog.Logger
}

// NewCSVProvider creates a provider rooted at dir.
func NewCSVProvider(dir string, log zerolog.Logger) *CSVProvider {
	return &CSVProvider{
		dir: dir,
		log: log.With().Str("component", "csv_provider").Logger(),
	}
}

// Load reads every bar for symbol. A missing file yields no bars and no error.
func (p *CSVProvider) Load(symbol string) ([]Bar, error) {
	path := filepath.Join(p.dir, normalizeSymbol(symbol)+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// Fetch implements domain.PriceWindowProvider.
func (p *CSVProvider) Fetch(ctx context.Context, universe []string, benchmark string, start, end time.Time) (*domain.PriceSeries, error) {
	benchmark = normalizeSymbol(benchmark)
	symbols := make([]string, 0, len(universe))
	for _, s := range universe {
		symbols = append(symbols, normalizeSymbol(s))
	}
	start, end = domain.Day(start), domain.Day(end)

	points := make(map[string][]domain.PricePoint, len(symbols)+1)
	for _, s := range append(append([]string(nil), symbols...), benchmark) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, done := points[s]; done {
			continue
		}
		bars, err := p.Load(s)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			p.log.Warn().Str("symbol", s).Str("dir", p.dir).Msg("No price file for symbol")
		}
		points[s] = clip(bars, start, end)
	}
	return assemble(symbols, benchmark, points)
}
