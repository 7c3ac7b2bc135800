package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = "Date,Time,Systolic,Diastolic,Pulse\n2024-01-01,08:00,120,80,65\n2024-01-02,08:05,118,79,63\n"

func TestParseFile_CSV(t *testing.T) {
	readings, err := newTestParser(UndatedNow).ParseFile("export.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}

func TestParseFile_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	readings, err := newTestParser(UndatedNow).ParseFile("export.csv.gz", &buf)
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}

func TestParseFile_Zstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	readings, err := newTestParser(UndatedNow).ParseFile("export.csv.zst", &buf)
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}

func TestParseFile_BadGzip(t *testing.T) {
	_, err := newTestParser(UndatedNow).ParseFile("export.csv.gz", strings.NewReader("plain text"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	rows := [][]interface{}{
		{"Date", "Time", "SYS", "DIA", "Pulse", "Memo"},
		{},
		{"2024-01-01", "08:00", 120, 80, 65, "left arm"},
		{"2024-01-02", "08:05", 118, 79, 63},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	readings, err := newTestParser(UndatedNow).ParseFile("export.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 120, readings[0].Systolic)
	require.NotNil(t, readings[0].Notes)
	assert.Equal(t, "left arm", *readings[0].Notes)
	assert.Nil(t, readings[1].Notes)
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := newTestParser(UndatedNow).ParseFile("export.xlsx", strings.NewReader("nope"))
	assert.ErrorIs(t, err, ErrParse)
}
