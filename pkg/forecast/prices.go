package forecast

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Mandi price CSV columns
const (
	ColumnDate      = "Arrival_Date"
	ColumnCommodity = "Commodity"
	ColumnPrice     = "Modal_Price"
)

var dateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "2006/01/02", "2 Jan 2006"}

// ErrUnknownCrop is returned for a commodity with no recorded prices
var ErrUnknownCrop = errors.New("no price history for crop")

type dailyTotal struct {
	sum   float64
	count int
}

// CSVHistory holds a national daily price series per commodity. Each day is
// the mean modal price over all markets; days without arrivals repeat the
// previous day's price.
type CSVHistory struct {
	series map[string][]float64
}

// LoadCSVHistory reads and merges every mandi price file in paths
func LoadCSVHistory(paths ...string) (*CSVHistory, error) {
	totals := make(map[string]map[time.Time]*dailyTotal)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open price history: %w", err)
		}
		err = readPrices(f, totals)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return buildHistory(totals), nil
}

// ReadCSVHistory builds a history from a single CSV stream
func ReadCSVHistory(r io.Reader) (*CSVHistory, error) {
	totals := make(map[string]map[time.Time]*dailyTotal)
	if err := readPrices(r, totals); err != nil {
		return nil, err
	}
	return buildHistory(totals), nil
}

func readPrices(r io.Reader, totals map[string]map[time.Time]*dailyTotal) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range []string{ColumnDate, ColumnCommodity, ColumnPrice} {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}

		// Rows with an unparseable date or a non-positive price are skipped
		day, ok := parseDate(field(record, index[ColumnDate]))
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(field(record, index[ColumnPrice]), 64)
		if err != nil || price <= 0 {
			continue
		}
		crop := strings.ToLower(field(record, index[ColumnCommodity]))
		if crop == "" {
			continue
		}

		days, ok := totals[crop]
		if !ok {
			days = make(map[time.Time]*dailyTotal)
			totals[crop] = days
		}
		t, ok := days[day]
		if !ok {
			t = &dailyTotal{}
			days[day] = t
		}
		t.sum += price
		t.count++
	}
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildHistory(totals map[string]map[time.Time]*dailyTotal) *CSVHistory {
	h := &CSVHistory{series: make(map[string][]float64, len(totals))}
	for crop, days := range totals {
		dates := make([]time.Time, 0, len(days))
		for d := range days {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		var series []float64
		last := 0.0
		for d := dates[0]; !d.After(dates[len(dates)-1]); d = d.AddDate(0, 0, 1) {
			if t, ok := days[d]; ok {
				last = t.sum / float64(t.count)
			}
			series = append(series, last)
		}
		h.series[crop] = series
	}
	return h
}

// Crops lists the commodities with history, sorted
func (h *CSVHistory) Crops() []string {
	crops := make([]string, 0, len(h.series))
	for c := range h.series {
		crops = append(crops, c)
	}
	sort.Strings(crops)
	return crops
}

// Series returns a copy of the full daily series for crop
func (h *CSVHistory) Series(crop string) []float64 {
	return append([]float64(nil), h.series[strings.ToLower(crop)]...)
}

// LastSequence returns the most recent n daily prices for crop
func (h *CSVHistory) LastSequence(crop string, n int) ([]float64, error) {
	series, ok := h.series[strings.ToLower(crop)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCrop, crop)
	}
	if len(series) < n {
		return nil, fmt.Errorf("not enough history for %s: need %d days, got %d", crop, n, len(series))
	}
	return append([]float64(nil), series[len(series)-n:]...), nil
}
