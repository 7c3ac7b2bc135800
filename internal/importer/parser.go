// Package importer parses blood pressure exports from home monitors.
// Exporters do not agree on a schema, so columns are found by sniffing the
// header, with a positional fallback.
package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wisefido-health-sync/internal/metrics"
	"wisefido-health-sync/internal/models"

	"go.uber.org/zap"
)

// UndatedPolicy decides what happens to a row whose timestamp matches no
// known layout.
type UndatedPolicy string

const (
	// UndatedNow stamps the row with the import time.
	UndatedNow UndatedPolicy = "now"
	// UndatedSkip drops the row like any other malformed row.
	UndatedSkip UndatedPolicy = "skip"
)

// ParseUndatedPolicy validates a policy name. Empty means UndatedNow.
func ParseUndatedPolicy(s string) (UndatedPolicy, error) {
	switch p := UndatedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return UndatedNow, nil
	case UndatedNow, UndatedSkip:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported undated row policy %q (want %q or %q)", s, UndatedNow, UndatedSkip)
	}
}

// Plausibility floor for the positional fallback.
const (
	fallbackMinSystolic  = 30
	fallbackMinDiastolic = 20
)

// Tried in order, first match wins.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"02/01/2006 15:04",
	"02-01-2006 15:04",
}

type Options struct {
	Location *time.Location // zone for timestamps without an offset, default time.Local
	Undated  UndatedPolicy  // default UndatedNow
	Now      func() time.Time
	Logger   *zap.Logger
}

// Parser turns export text into readings. It holds no per-call state.
type Parser struct {
	loc     *time.Location
	undated UndatedPolicy
	now     func() time.Time
	logger  *zap.Logger
}

func NewParser(opts Options) *Parser {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Undated == "" {
		opts.Undated = UndatedNow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Parser{loc: opts.Location, undated: opts.Undated, now: opts.Now, logger: opts.Logger}
}

// Parse reads CSV text: a header line then one reading per line.
func (p *Parser) Parse(text string) ([]models.BPReading, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rows = append(rows, splitCSVRow(line))
	}
	return p.parseRows(rows)
}

// Column indexes, -1 when absent.
type columns struct {
	sys      int
	dia      int
	pulse    int
	date     int
	clock    int
	combined int
	notes    int
}

func locateColumns(header []string) columns {
	h := make([]string, len(header))
	for i, c := range header {
		h[i] = strings.ToLower(strings.TrimSpace(c))
	}

	c := columns{
		sys:   firstIndex(h, "sys", "systolic"),
		dia:   firstIndex(h, "dia", "diastolic"),
		pulse: firstIndex(h, "pulse", "heart rate", "bpm"),
		notes: firstIndex(h, "note", "memo"),
		date:  -1, clock: -1, combined: -1,
	}
	for i, col := range h {
		hasDate := strings.Contains(col, "date")
		hasTime := strings.Contains(col, "time")
		switch {
		case hasDate && hasTime:
			if c.combined < 0 {
				c.combined = i
			}
		case hasDate:
			if c.date < 0 {
				c.date = i
			}
		case hasTime:
			if c.clock < 0 {
				c.clock = i
			}
		}
	}
	if c.combined < 0 {
		c.combined = firstIndex(h, "measurement")
	}
	return c
}

func (p *Parser) parseRows(rows [][]string) ([]models.BPReading, error) {
	if len(rows) < 2 {
		metrics.ImportedReadings.WithLabelValues("rejected").Inc()
		return nil, &ImportError{Kind: InvalidFormat}
	}

	cols := locateColumns(rows[0])
	named := cols.sys >= 0 && cols.dia >= 0

	var readings []models.BPReading
	skipped := 0
	for _, row := range rows[1:] {
		var (
			r  models.BPReading
			ok bool
		)
		if named {
			r, ok = p.namedRow(cols, row)
		} else {
			r, ok = p.fallbackRow(row)
		}
		if !ok {
			skipped++
			continue
		}
		readings = append(readings, r)
	}

	metrics.ImportedReadings.WithLabelValues("parsed").Add(float64(len(readings)))
	metrics.ImportedReadings.WithLabelValues("skipped").Add(float64(skipped))
	p.logger.Debug("Parsed export",
		zap.Bool("header_match", named),
		zap.Int("readings", len(readings)),
		zap.Int("skipped", skipped),
	)

	if len(readings) == 0 {
		metrics.ImportedReadings.WithLabelValues("rejected").Inc()
		return nil, &ImportError{Kind: NoReadingsFound}
	}
	return readings, nil
}

func (p *Parser) namedRow(c columns, row []string) (models.BPReading, bool) {
	sys, ok1 := intAt(row, c.sys)
	dia, ok2 := intAt(row, c.dia)
	if !ok1 || !ok2 || sys <= 0 || dia <= 0 {
		return models.BPReading{}, false
	}

	var stamp string
	switch {
	case c.combined >= 0 && c.combined < len(row):
		stamp = cell(row, c.combined)
	case c.date >= 0 && c.date < len(row):
		stamp = cell(row, c.date)
		if c.clock >= 0 && c.clock < len(row) {
			stamp += " " + cell(row, c.clock)
		}
	default:
		stamp = leadingStamp(row)
	}

	at, ok := p.timestamp(stamp)
	if !ok {
		return models.BPReading{}, false
	}

	r := models.BPReading{Systolic: sys, Diastolic: dia, MeasuredAt: at}
	if pulse, ok := intAt(row, c.pulse); ok {
		r.Pulse = &pulse
	}
	if c.notes >= 0 {
		if n := cell(row, c.notes); n != "" {
			r.Notes = &n
		}
	}
	return r, true
}

// fallbackRow assumes date[, time], systolic, diastolic[, pulse].
func (p *Parser) fallbackRow(row []string) (models.BPReading, bool) {
	if len(row) < 4 {
		return models.BPReading{}, false
	}

	sysIdx := 1
	if strings.Contains(cell(row, 1), ":") {
		sysIdx = 2
	}
	sys, ok1 := intAt(row, sysIdx)
	dia, ok2 := intAt(row, sysIdx+1)
	if !ok1 || !ok2 || sys <= fallbackMinSystolic || dia <= fallbackMinDiastolic {
		return models.BPReading{}, false
	}

	at, ok := p.timestamp(leadingStamp(row))
	if !ok {
		return models.BPReading{}, false
	}

	r := models.BPReading{Systolic: sys, Diastolic: dia, MeasuredAt: at}
	if pulse, ok := intAt(row, sysIdx+2); ok {
		r.Pulse = &pulse
	}
	return r, true
}

// timestamp resolves a cell to a time, applying the undated policy when no
// layout matches.
func (p *Parser) timestamp(s string) (time.Time, bool) {
	if t, ok := ParseTimestamp(s, p.loc); ok {
		return t, true
	}
	if p.undated == UndatedSkip {
		return time.Time{}, false
	}
	return p.now(), true
}

// ParseTimestamp tries the known export layouts, then RFC 3339.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// leadingStamp joins columns 0 and 1 when column 1 looks like a clock time.
func leadingStamp(row []string) string {
	stamp := cell(row, 0)
	if t := cell(row, 1); strings.Contains(t, ":") {
		stamp += " " + t
	}
	return stamp
}

// splitCSVRow splits on commas outside double quotes. Quotes are dropped.
func splitCSVRow(line string) []string {
	var (
		out      []string
		cur      strings.Builder
		inQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

func firstIndex(cols []string, needles ...string) int {
	for i, c := range cols {
		for _, n := range needles {
			if strings.Contains(c, n) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func intAt(row []string, i int) (int, bool) {
	v, err := strconv.Atoi(cell(row, i))
	if err != nil {
		return 0, false
	}
	return v, true
}
