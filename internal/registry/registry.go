// Package registry loads the Renewable Energy Planning Database (REPD) from
// its CSV export. Only solar PV sites outside Northern Ireland are kept.
package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pv-groupings/internal/relation"
)

// Column names of the REPD export.
const (
	ColRefID        = "Ref ID"
	ColSiteName     = "Site Name"
	ColTechnology   = "Technology Type"
	ColCountry      = "Country"
	ColOperational  = "Operational"
	ColCapacity     = "Installed Capacity (MWelec)"
	ColEasting      = "X-coordinate"
	ColNorthing     = "Y-coordinate"
	ColMountingType = "Mounting Type for Solar"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
)

// Installation is one REPD solar PV site.
type Installation struct {
	ID           relation.ObjectID `json:"id"`
	SiteName     string            `json:"site_name"`
	InstallDate  *time.Time        `json:"install_date,omitempty"`
	Capacity     *float64          `json:"dc_capacity,omitempty"`
	Eastings     *float64          `json:"eastings,omitempty"`
	Northings    *float64          `json:"northings,omitempty"`
	Latitude     *float64          `json:"latitude,omitempty"`
	Longitude    *float64          `json:"longitude,omitempty"`
	MountingType string            `json:"mounting_type"`
	Operational  bool              `json:"operational"`
	GroundMount  bool              `json:"ground_mount"`
	Source       string            `json:"source"`
}

// Options controls loading.
type Options struct {
	// HeaderRow is the zero-based line holding the column names; the
	// spreadsheet export carries a preamble above it.
	HeaderRow int
	Logger    *slog.Logger
}

// LoadFile loads installations from a REPD CSV export.
func LoadFile(filename string, opts Options) ([]Installation, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()
	installations, err := Load(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return installations, nil
}

// Load reads installations from r.
func Load(r io.Reader, opts Options) ([]Installation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	for i := 0; i < opts.HeaderRow; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to skip preamble line %d: %w", i+1, err)
		}
	}
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{ColRefID, ColTechnology, ColCountry} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %q", relation.ErrMissingColumn, required)
		}
	}

	get := func(record []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var installations []Installation
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if get(record, ColTechnology) != "Solar Photovoltaics" || get(record, ColCountry) == "Northern Ireland" {
			skipped++
			continue
		}
		id := relation.ParseObjectID(get(record, ColRefID))
		if !id.Valid {
			skipped++
			continue
		}

		inst := Installation{
			ID:           id.ID,
			SiteName:     get(record, ColSiteName),
			InstallDate:  parseDate(get(record, ColOperational)),
			Capacity:     parseFloat(get(record, ColCapacity)),
			Eastings:     parseFloat(get(record, ColEasting)),
			Northings:    parseFloat(get(record, ColNorthing)),
			Latitude:     parseFloat(get(record, ColLatitude)),
			Longitude:    parseFloat(get(record, ColLongitude)),
			MountingType: get(record, ColMountingType),
			Source:       "repd",
		}
		inst.Operational = inst.InstallDate != nil
		inst.GroundMount = strings.Contains(inst.MountingType, "Ground")
		installations = append(installations, inst)
	}

	logger.Info("loaded registry", "installations", len(installations), "skipped", skipped)
	return installations, nil
}

// Index maps installation ids to installations.
func Index(installations []Installation) map[relation.ObjectID]Installation {
	index := make(map[relation.ObjectID]Installation, len(installations))
	for _, inst := range installations {
		index[inst.ID] = inst
	}
	return index
}

// parseFloat safely converts string to float64 pointer
func parseFloat(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseDate safely converts string to time.Time pointer
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}

	formats := []string{
		"02/01/2006",
		"2/1/2006",
		"02/01/06",
		"2006-01-02",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}

	return nil
}
