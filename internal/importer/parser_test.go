package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestParser(policy UndatedPolicy) *Parser {
	return NewParser(Options{
		Location: time.UTC,
		Undated:  policy,
		Now:      func() time.Time { return fixedNow },
	})
}

func TestParseUndatedPolicy(t *testing.T) {
	p, err := ParseUndatedPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, UndatedSkip, p)

	p, err = ParseUndatedPolicy(" NOW ")
	require.NoError(t, err)
	assert.Equal(t, UndatedNow, p)

	p, err = ParseUndatedPolicy("")
	require.NoError(t, err)
	assert.Equal(t, UndatedNow, p)

	_, err = ParseUndatedPolicy("drop")
	assert.ErrorContains(t, err, `"drop"`)
}

func TestParse_FallbackPositional(t *testing.T) {
	p := newTestParser(UndatedNow)

	readings, err := p.Parse("Col A,Col B,Col C,Col D,Col E\n2024-01-01,08:00,120,80,65\n")
	require.NoError(t, err)
	require.Len(t, readings, 1)

	r := readings[0]
	assert.Equal(t, 120, r.Systolic)
	assert.Equal(t, 80, r.Diastolic)
	require.NotNil(t, r.Pulse)
	assert.Equal(t, 65, *r.Pulse)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), r.MeasuredAt)
}

func TestParse_FallbackWithoutTimeColumn(t *testing.T) {
	p := newTestParser(UndatedNow)

	readings, err := p.Parse("a,b,c,d\n2024-01-01 07:30,118,76,60")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 118, readings[0].Systolic)
	assert.Equal(t, time.Date(2024, 1, 1, 7, 30, 0, 0, time.UTC), readings[0].MeasuredAt)
}

func TestParse_FallbackPlausibilityFloor(t *testing.T) {
	p := newTestParser(UndatedNow)

	_, err := p.Parse("Col A,Col B,Col C,Col D,Col E\n2024-01-01,08:00,25,80,65\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoReadingsFound))

	var ie *ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, NoReadingsFound, ie.Kind)
}

func TestParse_HeaderSniffing(t *testing.T) {
	p := newTestParser(UndatedNow)
	csv := `Date,Time,SYS(mmHg),DIA(mmHg),Pulse(bpm),Notes
2024-03-05,07:15,131,84,72,"after coffee, seated"
03/06/2024,7:20 PM,125,82,,
2024-03-07,07:10,abc,80,70,
2024-03-08,07:10,0,80,70,
`
	readings, err := p.Parse(csv)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	first := readings[0]
	assert.Equal(t, 131, first.Systolic)
	assert.Equal(t, 84, first.Diastolic)
	require.NotNil(t, first.Pulse)
	assert.Equal(t, 72, *first.Pulse)
	require.NotNil(t, first.Notes)
	assert.Equal(t, "after coffee, seated", *first.Notes)
	assert.Equal(t, time.Date(2024, 3, 5, 7, 15, 0, 0, time.UTC), first.MeasuredAt)

	second := readings[1]
	assert.Nil(t, second.Pulse)
	assert.Nil(t, second.Notes)
	assert.Equal(t, time.Date(2024, 3, 6, 19, 20, 0, 0, time.UTC), second.MeasuredAt)
}

func TestParse_CombinedDateTimeColumn(t *testing.T) {
	p := newTestParser(UndatedNow)
	csv := "Measurement Date/Time,Systolic,Diastolic,Heart Rate\n2024/02/10 06:45:00,140,90,58\n"

	readings, err := p.Parse(csv)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, time.Date(2024, 2, 10, 6, 45, 0, 0, time.UTC), readings[0].MeasuredAt)
	require.NotNil(t, readings[0].Pulse)
	assert.Equal(t, 58, *readings[0].Pulse)
}

func TestParse_DayFirstWhenMonthImpossible(t *testing.T) {
	p := newTestParser(UndatedNow)

	readings, err := p.Parse("Date,Sys,Dia\n25/12/2023 08:00,120,80\n")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 25, 8, 0, 0, 0, time.UTC), readings[0].MeasuredAt)
}

func TestParse_UndatedRows(t *testing.T) {
	csv := "Date,Sys,Dia\nyesterday morning,120,80\n2024-01-02 09:00,121,81\n"

	readings, err := newTestParser(UndatedNow).Parse(csv)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, fixedNow, readings[0].MeasuredAt)

	readings, err = newTestParser(UndatedSkip).Parse(csv)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 121, readings[0].Systolic)
}

func TestParse_InvalidFormat(t *testing.T) {
	p := newTestParser(UndatedNow)

	for _, in := range []string{"", "\n\n", "Date,Sys,Dia\n", "\ufeff  \n Date,Sys,Dia \n\n"} {
		_, err := p.Parse(in)
		assert.ErrorIs(t, err, ErrInvalidFormat, "input %q", in)
	}
}

func TestParse_CRLFAndBOM(t *testing.T) {
	p := newTestParser(UndatedNow)

	readings, err := p.Parse("\ufeffDate,Time,Systolic,Diastolic\r\n2024-01-01,08:00,120,80\r\n")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 80, readings[0].Diastolic)
}

func TestParseTimestamp_RFC3339(t *testing.T) {
	ts, ok := ParseTimestamp("2024-01-01T08:00:00+02:00", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), ts.UTC())

	_, ok = ParseTimestamp("not a date", time.UTC)
	assert.False(t, ok)
}

func TestSplitCSVRow(t *testing.T) {
	assert.Equal(t, []string{"a", "b, c", "", "d"}, splitCSVRow(`a,"b, c",,d`))
	assert.Equal(t, []string{""}, splitCSVRow(""))
}

func TestImportError_Is(t *testing.T) {
	err := parseError("boom", errors.New("inner"))
	assert.ErrorIs(t, err, ErrParse)
	assert.NotErrorIs(t, err, ErrInvalidFormat)
	assert.Contains(t, err.Error(), "inner")
}
