package geometry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv-groupings/internal/grouping"
	"github.com/pv-groupings/internal/relation"
)

const wayResponse = `{"elements":[
	{"type":"node","id":1,"lat":53.38,"lon":-1.47},
	{"type":"node","id":2,"lat":53.39,"lon":-1.46},
	{"type":"way","id":42,"nodes":[2,1,2]}
]}`

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestParseObjectRef(t *testing.T) {
	tests := []struct {
		ref      string
		wantType string
		wantID   string
	}{
		{ref: "way/12345", wantType: "way", wantID: "12345"},
		{ref: "node/7", wantType: "node", wantID: "7"},
		{ref: "https://www.openstreetmap.org/way/9", wantType: "way", wantID: "9"},
		{ref: "12345", wantType: "way", wantID: "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			gotType, gotID := ParseObjectRef(tt.ref)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantID, gotID)
		})
	}
}

func TestOSMClientFetchWay(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/api/0.6/way/42/full.json", r.URL.Path)
		assert.Equal(t, "pvgroups-test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, wayResponse)
	}))
	defer server.Close()

	client := NewOSMClient(ClientConfig{BaseURL: server.URL, UserAgent: "pvgroups-test", Retry: fastRetry()}, nil)
	coords, err := client.FetchGeometry(context.Background(), "42", "way")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "transient failure is retried")
	assert.Equal(t, []LatLon{{53.39, -1.46}, {53.38, -1.47}, {53.39, -1.46}}, coords, "coordinates follow way node order")
}

func TestOSMClientNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	client := NewOSMClient(ClientConfig{BaseURL: server.URL, Retry: fastRetry()}, nil)
	_, err := client.FetchGeometry(context.Background(), "1", "way")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOSMClientGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOSMClient(ClientConfig{BaseURL: server.URL, Retry: fastRetry()}, nil)
	_, err := client.FetchGeometry(context.Background(), "1", "way")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOSMClientUnsupportedType(t *testing.T) {
	client := NewOSMClient(ClientConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := client.FetchGeometry(context.Background(), "1", "relation")
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

type fakeFetcher map[string][]LatLon

func (f fakeFetcher) FetchGeometry(_ context.Context, objectID, objectType string) ([]LatLon, error) {
	coords, ok := f[objectType+"/"+objectID]
	if !ok {
		return nil, ErrNotFound
	}
	return coords, nil
}

func TestEnrichIsBestEffort(t *testing.T) {
	p := &grouping.Partition{Groups: []grouping.Group{
		{ID: 1, Key: "way/1", Members: []relation.ObjectID{"way/1", "way/2"}},
		{ID: 2, Key: "way/3", Members: []relation.ObjectID{"way/3"}},
	}}
	fetcher := fakeFetcher{
		"way/1": {{1, 2}},
		"way/3": {{3, 4}, {5, 6}},
	}

	members, err := NewEnricher(fetcher, nil).Enrich(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, []LatLon{{1, 2}}, members[0].Coords)
	assert.Empty(t, members[1].Coords, "failed lookup leaves the object without coordinates")
	assert.Equal(t, 2, members[2].GroupID)
}

func TestEnrichStopsWhenCancelled(t *testing.T) {
	p := &grouping.Partition{Groups: []grouping.Group{{ID: 1, Members: []relation.ObjectID{"way/1"}}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	members, err := NewEnricher(fakeFetcher{}, nil).Enrich(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, members, 1)
}

func TestCentre(t *testing.T) {
	members := []Member{
		{Object: "way/1", Coords: []LatLon{{50, 0}, {52, 2}}},
		{Object: "way/2"},
		{Object: "way/3", Coords: []LatLon{{53, 3}}},
	}
	centre, ok := Centre(members)
	require.True(t, ok)
	assert.InDelta(t, 52.0, centre.Lat, 1e-9)
	assert.InDelta(t, 2.0, centre.Lon, 1e-9)

	_, ok = Centre([]Member{{Object: "way/2"}})
	assert.False(t, ok)
}

func TestEnrichedTable(t *testing.T) {
	members := []Member{
		{GroupID: 1, Object: "way/1", Coords: []LatLon{{53.5, -1.25}, {53.75, -1.5}}},
		{GroupID: 1, Object: "way/2"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, members, "id", "objects"))
	assert.Equal(t, "id,objects,lats,lons\n1,way/1,53.5|53.75,-1.25|-1.5\n1,way/2,,\n", buf.String())

	back, err := ReadCSV(&buf, "id", "objects")
	require.NoError(t, err)
	assert.Equal(t, members, back)
}

func TestReadCSVShortRow(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("id,objects,lats,lons\n1,way/1,1|2,3|4\n2\n"), "id", "objects")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}
