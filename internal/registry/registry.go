// Package registry looks up aircraft registration details by ICAO address
// from an FAA releasable aircraft database (MASTER.txt, the zip it ships in,
// or a zstd compressed copy).
package registry

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dimchansky/utfbom"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/zstd"
)

// masterFile is the registration table inside the FAA zip.
const masterFile = "MASTER.txt"

// Detail is one registration record. Only the columns used for display are
// mapped; the rest of the FAA file is ignored.
type Detail struct {
	NNumber      string `csv:"N-NUMBER" json:"registration"`
	SerialNumber string `csv:"SERIAL NUMBER" json:"serial,omitempty"`
	MfrModelCode string `csv:"MFR MDL CODE" json:"model_code,omitempty"`
	YearMfr      string `csv:"YEAR MFR" json:"year,omitempty"`
	Name         string `csv:"NAME" json:"owner,omitempty"`
	TypeAircraft string `csv:"TYPE AIRCRAFT" json:"type,omitempty"`
	ModeSCodeHex string `csv:"MODE S CODE HEX" json:"-"`
}

// Lookup resolves an ICAO address to registration details.
type Lookup interface {
	Lookup(address string) (Detail, bool)
}

// Registry is an in-memory registration table.
type Registry struct {
	logger log.Logger
	path   string

	mu      sync.RWMutex
	details map[string]Detail
}

// New loads the registry from path. An empty path gives an empty registry.
func New(logger log.Logger, path string) (*Registry, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &Registry{
		logger:  log.With(logger, "component", "registry"),
		path:    path,
		details: make(map[string]Detail),
	}
	if path == "" {
		return r, nil
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the registry file.
func (r *Registry) Reload() error {
	details, err := loadFile(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.details = details
	r.mu.Unlock()

	level.Info(r.logger).Log("msg", "registry loaded", "path", r.path, "aircraft", len(details))
	return nil
}

// Lookup implements Lookup. Addresses are matched case-insensitively.
func (r *Registry) Lookup(address string) (Detail, bool) {
	if r == nil {
		return Detail{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.details[normalizeAddress(address)]
	return d, ok
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.details)
}

func loadFile(path string) (map[string]Detail, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" {
		return loadZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	defer f.Close()

	if ext == ".zst" {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed registry: %w", err)
		}
		defer zr.Close()
		return Parse(zr)
	}
	return Parse(f)
}

func loadZip(path string) (map[string]Detail, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry zip: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.Name != masterFile {
			continue
		}
		f, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", masterFile, err)
		}
		defer f.Close()
		return Parse(f)
	}
	return nil, fmt.Errorf("%s not found in %s", masterFile, path)
}

// Parse reads FAA MASTER.txt CSV content keyed by Mode S hex code.
func Parse(in io.Reader) (map[string]Detail, error) {
	var rows []Detail
	if err := gocsv.UnmarshalCSV(gocsv.LazyCSVReader(utfbom.SkipOnly(in)), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}

	details := make(map[string]Detail, len(rows))
	for _, d := range rows {
		d.ModeSCodeHex = normalizeAddress(d.ModeSCodeHex)
		if d.ModeSCodeHex == "" {
			continue
		}
		d.NNumber = strings.TrimSpace(d.NNumber)
		if d.NNumber != "" && !strings.HasPrefix(d.NNumber, "N") {
			d.NNumber = "N" + d.NNumber
		}
		d.SerialNumber = strings.TrimSpace(d.SerialNumber)
		d.MfrModelCode = strings.TrimSpace(d.MfrModelCode)
		d.YearMfr = strings.TrimSpace(d.YearMfr)
		d.Name = strings.TrimSpace(d.Name)
		d.TypeAircraft = strings.TrimSpace(d.TypeAircraft)
		details[d.ModeSCodeHex] = d
	}
	return details, nil
}

func normalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}
