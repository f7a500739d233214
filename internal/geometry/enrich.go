package geometry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/pv-groupings/internal/grouping"
	"github.com/pv-groupings/internal/metrics"
	"github.com/pv-groupings/internal/relation"
)

// Member is one grouped object with whatever geometry could be resolved.
type Member struct {
	GroupID int
	Object  relation.ObjectID
	Coords  []LatLon
}

// Enricher attaches geometry to grouped objects. Lookups are best effort: a
// failed object keeps empty coordinates and the rest carry on.
type Enricher struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewEnricher creates an enricher over fetcher.
func NewEnricher(fetcher Fetcher, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{fetcher: fetcher, logger: logger}
}

// Enrich resolves every member of p in partition order. It only returns an
// error when ctx ends; members not yet reached are returned without
// coordinates.
func (e *Enricher) Enrich(ctx context.Context, p *grouping.Partition) ([]Member, error) {
	members := make([]Member, 0, p.MemberCount())
	for _, g := range p.Groups {
		for _, m := range g.Members {
			members = append(members, Member{GroupID: g.ID, Object: m})
		}
	}

	failed := 0
	for i := range members {
		if err := ctx.Err(); err != nil {
			return members, err
		}
		objectType, objectID := ParseObjectRef(string(members[i].Object))
		coords, err := e.fetcher.FetchGeometry(ctx, objectID, objectType)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return members, ctxErr
			}
			failed++
			metrics.GeometryFetches.WithLabelValues("failed").Inc()
			e.logger.Warn("geometry lookup failed", "object", members[i].Object, "error", err)
			continue
		}
		metrics.GeometryFetches.WithLabelValues("ok").Inc()
		members[i].Coords = coords

		if (i+1)%100 == 0 {
			e.logger.Info("geometry progress", "done", i+1, "total", len(members), "failed", failed)
		}
	}
	e.logger.Info("geometry lookups complete", "objects", len(members), "failed", failed)
	return members, nil
}

// Centre returns the mean of the per-object mean positions, skipping objects
// without coordinates.
func Centre(members []Member) (LatLon, bool) {
	var lats, lons []float64
	for _, m := range members {
		if len(m.Coords) == 0 {
			continue
		}
		objLats := make([]float64, len(m.Coords))
		objLons := make([]float64, len(m.Coords))
		for i, c := range m.Coords {
			objLats[i] = c.Lat
			objLons[i] = c.Lon
		}
		lats = append(lats, stat.Mean(objLats, nil))
		lons = append(lons, stat.Mean(objLons, nil))
	}
	if len(lats) == 0 {
		return LatLon{}, false
	}
	return LatLon{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}, true
}

func joinCoords(coords []LatLon, pick func(LatLon) float64) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.FormatFloat(pick(c), 'f', -1, 64)
	}
	return strings.Join(parts, "|")
}

// WriteCSV writes the grouping table with lats and lons columns holding
// "|"-joined coordinates.
func WriteCSV(w io.Writer, members []Member, groupColumn, memberColumn string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{groupColumn, memberColumn, "lats", "lons"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, m := range members {
		record := []string{
			strconv.Itoa(m.GroupID),
			string(m.Object),
			joinCoords(m.Coords, func(c LatLon) float64 { return c.Lat }),
			joinCoords(m.Coords, func(c LatLon) float64 { return c.Lon }),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", m.Object, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes the enriched table to filename.
func WriteFile(filename string, members []Member, groupColumn, memberColumn string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if err := WriteCSV(file, members, groupColumn, memberColumn); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadCSV reads an enriched grouping table. The lats and lons columns are
// optional; without them members carry no coordinates.
func ReadCSV(r io.Reader, groupColumn, memberColumn string) ([]Member, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	groupIdx, okGroup := cols[groupColumn]
	memberIdx, okMember := cols[memberColumn]
	if !okGroup || !okMember {
		return nil, fmt.Errorf("%w: grouping table needs %q and %q (have %s)",
			relation.ErrMissingColumn, groupColumn, memberColumn, strings.Join(header, ", "))
	}
	latIdx, hasLats := cols["lats"]
	lonIdx, hasLons := cols["lons"]

	var members []Member
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}
		if groupIdx >= len(record) || memberIdx >= len(record) {
			return nil, fmt.Errorf("line %d: %d fields, need %q and %q",
				line, len(record), groupColumn, memberColumn)
		}
		id, err := strconv.Atoi(strings.TrimSpace(record[groupIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group id %q: %w", line, record[groupIdx], err)
		}
		m := Member{GroupID: id, Object: relation.ParseObjectID(record[memberIdx]).ID}
		if hasLats && hasLons && latIdx < len(record) && lonIdx < len(record) {
			m.Coords, err = splitCoords(record[latIdx], record[lonIdx])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		members = append(members, m)
	}
	return members, nil
}

func splitCoords(lats, lons string) ([]LatLon, error) {
	if strings.TrimSpace(lats) == "" {
		return nil, nil
	}
	latParts := strings.Split(lats, "|")
	lonParts := strings.Split(lons, "|")
	if len(latParts) != len(lonParts) {
		return nil, fmt.Errorf("%d latitudes but %d longitudes", len(latParts), len(lonParts))
	}
	coords := make([]LatLon, len(latParts))
	for i := range latParts {
		lat, err := strconv.ParseFloat(strings.TrimSpace(latParts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", latParts[i], err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonParts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", lonParts[i], err)
		}
		coords[i] = LatLon{Lat: lat, Lon: lon}
	}
	return coords, nil
}

// ReadFile reads an enriched grouping table from filename.
func ReadFile(filename, groupColumn, memberColumn string) ([]Member, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()
	return ReadCSV(file, groupColumn, memberColumn)
}
