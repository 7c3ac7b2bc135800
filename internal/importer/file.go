package importer

import (
	"io"
	"path/filepath"
	"strings"

	"wisefido-health-sync/internal/models"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"
)

// MaxFileSize caps decompressed input.
const MaxFileSize = 32 << 20

// ParseFile picks a decoder from the file name: .xlsx workbooks, .gz and
// .zst compressed exports (decompressed, then dispatched on the inner
// name), and CSV text for anything else.
func (p *Parser) ParseFile(name string, r io.Reader) ([]models.BPReading, error) {
	ext := strings.ToLower(filepath.Ext(name))
	inner := strings.TrimSuffix(name, filepath.Ext(name))

	switch ext {
	case ".xlsx":
		return p.ParseXLSX(r)
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, parseError("failed to open gzip stream", err)
		}
		defer gz.Close()
		return p.ParseFile(inner, gz)
	case ".zst":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, parseError("failed to open zstd stream", err)
		}
		defer dec.Close()
		return p.ParseFile(inner, dec)
	}

	data, err := readLimited(r)
	if err != nil {
		return nil, err
	}
	return p.Parse(string(data))
}

// ParseXLSX reads the first sheet of a workbook with the same column rules
// as CSV.
func (p *Parser) ParseXLSX(r io.Reader) ([]models.BPReading, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, parseError("failed to open workbook", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, &ImportError{Kind: InvalidFormat}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, parseError("failed to read rows", err)
	}

	var kept [][]string
	for _, row := range rows {
		if !blankRow(row) {
			kept = append(kept, row)
		}
	}
	return p.parseRows(kept)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, parseError("failed to read file", err)
	}
	if len(data) > MaxFileSize {
		return nil, &ImportError{Kind: ParseError, Msg: "file too large"}
	}
	return data, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
