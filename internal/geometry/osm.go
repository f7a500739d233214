package geometry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the mapping service has no such object.
	ErrNotFound = errors.New("object not found")
	// ErrUnsupportedType is returned for object types without a geometry
	// lookup.
	ErrUnsupportedType = errors.New("unsupported object type")
)

// LatLon is one coordinate pair in WGS84.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Fetcher resolves an object identifier to its ordered coordinates.
type Fetcher interface {
	FetchGeometry(ctx context.Context, objectID, objectType string) ([]LatLon, error)
}

// ParseObjectRef splits a namespaced identifier such as "way/12345" into its
// type and bare id. Bare ids default to ways.
func ParseObjectRef(ref string) (objectType, objectID string) {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		objectType = ref[:i]
		if j := strings.LastIndex(objectType, "/"); j >= 0 {
			objectType = objectType[j+1:]
		}
		return objectType, ref[i+1:]
	}
	return "way", ref
}

// ClientConfig configures an OSMClient. Everything the client needs is passed
// here at construction.
type ClientConfig struct {
	BaseURL   string
	UserAgent string
	Token     string
	Timeout   time.Duration
	Retry     RetryConfig
}

// DefaultClientConfig targets the public OSM API.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   "https://api.openstreetmap.org",
		UserAgent: "pvgroups/1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// OSMClient fetches node and way geometry from the OSM API 0.6.
type OSMClient struct {
	cfg    ClientConfig
	http   *http.Client
	logger *slog.Logger
}

// NewOSMClient creates a client.
func NewOSMClient(cfg ClientConfig, logger *slog.Logger) *OSMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultClientConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OSMClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type osmElement struct {
	Type  string  `json:"type"`
	ID    int64   `json:"id"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Nodes []int64 `json:"nodes"`
}

type osmResponse struct {
	Elements []osmElement `json:"elements"`
}

// FetchGeometry returns a node's position or a way's node positions in way
// order. Network errors, 429 and 5xx responses are retried.
func (c *OSMClient) FetchGeometry(ctx context.Context, objectID, objectType string) ([]LatLon, error) {
	var path string
	switch objectType {
	case "node":
		path = fmt.Sprintf("/api/0.6/node/%s.json", objectID)
	case "way", "":
		objectType = "way"
		path = fmt.Sprintf("/api/0.6/way/%s/full.json", objectID)
	default:
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedType, objectType, objectID)
	}

	var resp osmResponse
	err := withRetry(ctx, c.cfg.Retry, func() error {
		return c.get(ctx, path, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", objectType, objectID, err)
	}

	nodes := make(map[int64]LatLon)
	var way *osmElement
	for i, el := range resp.Elements {
		switch el.Type {
		case "node":
			nodes[el.ID] = LatLon{Lat: el.Lat, Lon: el.Lon}
		case "way":
			way = &resp.Elements[i]
		}
	}

	if objectType == "node" {
		for _, ll := range nodes {
			return []LatLon{ll}, nil
		}
		return nil, fmt.Errorf("%w: node/%s has no position", ErrNotFound, objectID)
	}
	if way == nil {
		return nil, fmt.Errorf("%w: way/%s missing from response", ErrNotFound, objectID)
	}
	coords := make([]LatLon, 0, len(way.Nodes))
	for _, id := range way.Nodes {
		if ll, ok := nodes[id]; ok {
			coords = append(coords, ll)
		}
	}
	return coords, nil
}

func (c *OSMClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+path, nil)
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("osm request failed", "path", path, "error", err)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return permanent(fmt.Errorf("%w: %s returned %d", ErrNotFound, path, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%s returned %d", path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return permanent(fmt.Errorf("%s returned %d", path, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return permanent(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
