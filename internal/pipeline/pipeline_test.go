package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv-groupings/internal/compare"
	"github.com/pv-groupings/internal/config"
	"github.com/pv-groupings/internal/geometry"
	"github.com/pv-groupings/internal/relation"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	schemas, err := config.LoadSchemas("")
	require.NoError(t, err)
	return New(schemas, nil)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestGroupToFileOSM(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "osm_neighbours.csv",
		"object,neighbour_object,distance\nway/1,way/2,3.5\nway/2,way/3,1.0\nnode/7,node/8,0.2\nway/9,,\n")
	output := filepath.Join(dir, "out", "osm_groupings.csv")

	partition, err := newPipeline(t).GroupToFile(input, "osm_neighbours", output)
	require.NoError(t, err)
	assert.Equal(t, 3, partition.Len())
	assert.Equal(t,
		"id,objects\n1,way/1\n1,way/2\n1,way/3\n2,node/7\n2,node/8\n3,way/9\n",
		readFile(t, output))
}

func TestGroupREPDNeighboursIsOneHopReverse(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "repd_neighbours.csv", "repd_id,neighbour_id\n1,2\n2,1\n3,4\n5,\n")

	partition, schema, err := newPipeline(t).Group(input, "repd_neighbours")
	require.NoError(t, err)
	assert.Equal(t, "group_id", schema.GroupColumn)

	var got [][]relation.ObjectID
	for _, g := range partition.Groups {
		got = append(got, g.Members)
	}
	assert.Equal(t, [][]relation.ObjectID{{"1", "2"}, {"3"}, {"5"}}, got, "related-only ids are never seeds")
}

func TestGroupMissingColumn(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "bad.csv", "object,other\nway/1,way/2\n")

	_, _, err := newPipeline(t).Group(input, "osm_neighbours")
	assert.True(t, errors.Is(err, relation.ErrMissingColumn))
}

func TestGroupUnknownSchema(t *testing.T) {
	_, _, err := newPipeline(t).Group("unused.csv", "nope")
	assert.True(t, errors.Is(err, relation.ErrInvalidSchema))
}

func TestUnstackToFile(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ss.csv",
		"SS_ID,REPD_REF_ID,SOLAR_MEDIA_REF\n11,4,a\n10,1,b\n11,3,c\n10,2,d\n12,9,e\n")
	output := filepath.Join(dir, "ss_wide.csv")

	u, err := newPipeline(t).UnstackToFile(input, "ss_matches", output)
	require.NoError(t, err)
	assert.Equal(t, 2, u.Width)
	assert.Equal(t, "SS_ID,ss_1,ss_2\n10,1,2\n11,4,3\n12,9,\n", readFile(t, output))
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	ss := writeFile(t, dir, "ss.csv",
		"SS_ID,REPD_REF_ID,SOLAR_MEDIA_REF\n10,1,x\n10,2,x\n11,3,\n11,4,\n12,9,\n13,,y\n")
	turing := writeFile(t, dir, "turing.csv", "group_id,repd_id\n1,1\n1,2\n2,3\n3,4\n")
	output := filepath.Join(dir, "comparison.csv")

	for _, strategy := range []compare.Strategy{compare.StrategyScan, compare.StrategyIndexed} {
		t.Run(string(strategy), func(t *testing.T) {
			result, err := newPipeline(t).Compare(CompareOptions{
				ReferencePath:   ss,
				ReferenceSchema: "ss_matches",
				CandidatePath:   turing,
				CandidateSchema: "repd_groups",
				Output:          output,
				Strategy:        strategy,
				Workers:         2,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, result.RunID)
			assert.Equal(t, 4, result.Summary.Total())
			assert.Equal(t, 1, result.Summary[compare.Missing])
			assert.Equal(t,
				"group_id,ssid,failed_grouping\n1,10,0\n2,11,4\n3,11,4\n,12,1\n",
				readFile(t, output))
		})
	}
}

func TestCompareKeepsCandidateGroupIDs(t *testing.T) {
	dir := t.TempDir()
	ss := writeFile(t, dir, "ss.csv", "SS_ID,REPD_REF_ID\n10,1\n10,2\n")
	turing := writeFile(t, dir, "turing.csv", "group_id,repd_id\n40,2\n40,1\n40,7\n")

	result, err := newPipeline(t).Compare(CompareOptions{
		ReferencePath:   ss,
		ReferenceSchema: "ss_matches",
		CandidatePath:   turing,
		CandidateSchema: "repd_groups",
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, compare.NullGroupID{ID: 40, Valid: true}, result.Records[0].GroupID)
	assert.Equal(t, compare.OverGrouped, result.Records[0].Category)
}

func TestCompareMemberUnderSeveralKeys(t *testing.T) {
	dir := t.TempDir()
	ss := writeFile(t, dir, "ss.csv", "SS_ID,REPD_REF_ID\n5,100\n9,100\n9,101\n12,100\n")
	turing := writeFile(t, dir, "turing.csv", "group_id,repd_id\n1,100\n1,101\n")
	output := filepath.Join(dir, "comparison.csv")

	for _, strategy := range []compare.Strategy{compare.StrategyScan, compare.StrategyIndexed} {
		t.Run(string(strategy), func(t *testing.T) {
			result, err := newPipeline(t).Compare(CompareOptions{
				ReferencePath:   ss,
				ReferenceSchema: "ss_matches",
				CandidatePath:   turing,
				CandidateSchema: "repd_groups",
				Output:          output,
				Strategy:        strategy,
			})
			require.NoError(t, err)
			assert.Equal(t, 3, result.Summary.Total(), "every reference key gets a row")
			assert.Equal(t,
				"group_id,ssid,failed_grouping\n1,5,3\n1,9,0\n1,12,3\n",
				readFile(t, output))
		})
	}
}

type fakeFetcher map[string][]geometry.LatLon

func (f fakeFetcher) FetchGeometry(_ context.Context, objectID, objectType string) ([]geometry.LatLon, error) {
	coords, ok := f[objectType+"/"+objectID]
	if !ok {
		return nil, geometry.ErrNotFound
	}
	return coords, nil
}

func TestEnrich(t *testing.T) {
	dir := t.TempDir()
	groups := writeFile(t, dir, "osm_groupings.csv", "id,objects\n1,way/1\n1,way/2\n2,node/5\n")
	output := filepath.Join(dir, "osm_groupings_with_geometry.csv")
	fetcher := fakeFetcher{
		"way/1":  {{Lat: 53.5, Lon: -1.25}},
		"node/5": {{Lat: 51, Lon: 0.5}},
	}

	members, err := newPipeline(t).Enrich(context.Background(), fetcher, groups, "osm_neighbours", output)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t,
		"id,objects,lats,lons\n1,way/1,53.5,-1.25\n1,way/2,,\n2,node/5,51,0.5\n",
		readFile(t, output))
}

func TestEnrichCancelledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	groups := writeFile(t, dir, "osm_groupings.csv", "id,objects\n1,way/1\n")
	output := filepath.Join(dir, "enriched.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t).Enrich(ctx, fakeFetcher{}, groups, "osm_neighbours", output)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, output)
}
