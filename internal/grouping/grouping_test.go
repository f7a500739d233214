package grouping

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv-groupings/internal/relation"
)

func edges(pairs ...string) []relation.RelationEdge {
	var out []relation.RelationEdge
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, relation.RelationEdge{Subject: relation.ObjectID(pairs[i]), Related: relation.ObjectID(pairs[i+1])})
	}
	return out
}

func ids(values ...string) []relation.ObjectID {
	out := make([]relation.ObjectID, len(values))
	for i, v := range values {
		out[i] = relation.ObjectID(v)
	}
	return out
}

func members(p *Partition) [][]relation.ObjectID {
	var out [][]relation.ObjectID
	for _, g := range p.Groups {
		out = append(out, g.Members)
	}
	return out
}

func TestBuildTransitive(t *testing.T) {
	tests := []struct {
		name  string
		edges []relation.RelationEdge
		opts  TransitiveOptions
		want  [][]relation.ObjectID
	}{
		{
			name:  "chains and pairs in discovery order",
			edges: edges("A", "B", "B", "C", "D", "E"),
			opts:  DefaultTransitiveOptions(),
			want:  [][]relation.ObjectID{ids("A", "B", "C"), ids("D", "E")},
		},
		{
			name:  "fixed point follows the whole chain",
			edges: edges("A", "B", "B", "C", "C", "D"),
			opts:  DefaultTransitiveOptions(),
			want:  [][]relation.ObjectID{ids("A", "B", "C", "D")},
		},
		{
			name:  "one hop keeps only the seed's direct neighbours",
			edges: edges("A", "B", "B", "C", "C", "D"),
			opts:  TransitiveOptions{Direction: relation.DirectionForward, Expansion: relation.ExpansionOneHop},
			want:  [][]relation.ObjectID{ids("A", "B"), ids("C", "D")},
		},
		{
			name:  "reverse walks related back to subject",
			edges: edges("1", "2", "2", "1", "3", "4"),
			opts:  TransitiveOptions{Direction: relation.DirectionReverse, Expansion: relation.ExpansionOneHop},
			want:  [][]relation.ObjectID{ids("1", "2"), ids("3")},
		},
		{
			name:  "forward on the same rows reaches the neighbour",
			edges: edges("1", "2", "2", "1", "3", "4"),
			opts:  DefaultTransitiveOptions(),
			want:  [][]relation.ObjectID{ids("1", "2"), ids("3", "4")},
		},
		{
			name:  "symmetric edges join groups reachable only backwards",
			edges: edges("A", "B", "C", "B"),
			opts:  TransitiveOptions{Direction: relation.DirectionBoth, Expansion: relation.ExpansionTransitive},
			want:  [][]relation.ObjectID{ids("A", "B", "C")},
		},
		{
			name:  "directed edge into an emitted group does not duplicate members",
			edges: edges("A", "B", "C", "B", "C", "D"),
			opts:  DefaultTransitiveOptions(),
			want:  [][]relation.ObjectID{ids("A", "B"), ids("C", "D")},
		},
		{
			name:  "neighbours join in input row order",
			edges: edges("A", "C", "B", "D", "A", "B"),
			opts:  DefaultTransitiveOptions(),
			want:  [][]relation.ObjectID{ids("A", "C", "B", "D")},
		},
		{
			name:  "empty input",
			edges: nil,
			opts:  DefaultTransitiveOptions(),
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BuildTransitive(tt.edges, tt.opts)
			assert.Equal(t, tt.want, members(p))
			for i, g := range p.Groups {
				assert.Equal(t, i+1, g.ID, "group ids follow discovery order")
				assert.Equal(t, g.Members[0], g.Key, "group key is the seed")
			}
		})
	}
}

func TestBuildTransitiveIsFixedPoint(t *testing.T) {
	first := BuildTransitive(edges("A", "B", "C", "D", "B", "E", "G", "G"), DefaultTransitiveOptions())
	require.Equal(t, [][]relation.ObjectID{ids("A", "B", "E"), ids("C", "D"), ids("G")}, members(first))

	second := BuildTransitive(first.Edges(), DefaultTransitiveOptions())
	assert.Equal(t, first, second)
}

func TestBuildTransitiveIsDeterministic(t *testing.T) {
	input := edges("way/3", "way/1", "way/1", "way/9", "way/7", "way/8", "way/9", "way/3")
	first := BuildTransitive(input, DefaultTransitiveOptions())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildTransitive(input, DefaultTransitiveOptions()))
	}
}

func TestBuildTransitiveTable(t *testing.T) {
	table := &relation.Table{
		Schema: relation.DefaultSchemas()["osm_neighbours"],
		Rows: []relation.Row{
			{Subject: relation.Some("way/1")},
			{Subject: relation.Some("way/2"), Related: relation.Some("way/3")},
			{Related: relation.Some("way/4")},
		},
	}
	p, err := BuildTransitiveTable(table)
	require.NoError(t, err)
	assert.Equal(t, [][]relation.ObjectID{ids("way/1"), ids("way/2", "way/3")}, members(p))

	_, err = BuildByKeyTable(table)
	assert.True(t, errors.Is(err, relation.ErrInvalidSchema))
}

func keyed(pairs ...string) []KeyedMember {
	var out []KeyedMember
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, KeyedMember{Key: relation.ParseObjectID(pairs[i]), Member: relation.ParseObjectID(pairs[i+1])})
	}
	return out
}

func TestBuildByKey(t *testing.T) {
	t.Run("match table rows", func(t *testing.T) {
		p := BuildByKey(keyed("1", "way/10", "1", "way/11", "2", "way/12"))
		require.Equal(t, 2, p.Len())
		assert.Equal(t, Group{ID: 1, Key: "1", Members: ids("way/10", "way/11")}, p.Groups[0])
		assert.Equal(t, Group{ID: 2, Key: "2", Members: ids("way/12")}, p.Groups[1])
	})

	t.Run("first key appearance decides order", func(t *testing.T) {
		p := BuildByKey(keyed("9", "a", "3", "b", "9", "c"))
		assert.Equal(t, [][]relation.ObjectID{ids("a", "c"), ids("b")}, members(p))
		assert.Equal(t, []int{1, 2}, p.GroupIDs())
	})

	t.Run("absent keys and members are skipped", func(t *testing.T) {
		p := BuildByKey(keyed("1", "", "", "a", "2", "b"))
		assert.Equal(t, []Group{{ID: 1, Key: "2", Members: ids("b")}}, p.Groups)
	})

	t.Run("every subject appears exactly once", func(t *testing.T) {
		p := BuildByKey(keyed("1", "x", "2", "x", "2", "y", "3", "x", "1", "x"))
		assert.Equal(t, [][]relation.ObjectID{ids("x"), ids("y")}, members(p))
		assert.Equal(t, []int{1, 2}, p.GroupIDs(), "a key left empty emits no group")

		seen := map[relation.ObjectID]int{}
		for _, g := range p.Groups {
			for _, m := range g.Members {
				seen[m]++
			}
		}
		assert.Equal(t, map[relation.ObjectID]int{"x": 1, "y": 1}, seen)
	})
}

func TestUnstack(t *testing.T) {
	u := Unstack(keyed("2", "a", "1", "b", "2", "c", "1", "d", "10", "e", "", "f"), "SS_ID", "ss")

	assert.Equal(t, 2, u.Width)
	assert.Equal(t, []string{"SS_ID", "ss_1", "ss_2"}, u.Header())
	require.Len(t, u.Rows, 3)
	assert.Equal(t, relation.ObjectID("1"), u.Rows[0].Key)
	assert.Equal(t, ids("b", "d"), u.Rows[0].Members())
	assert.Equal(t, relation.ObjectID("10"), u.Rows[2].Key, "keys sort numerically")
	assert.Equal(t, []relation.NullID{relation.Some("e"), {}}, u.Rows[2].Slots)

	var buf bytes.Buffer
	require.NoError(t, u.WriteCSV(&buf))
	assert.Equal(t, "SS_ID,ss_1,ss_2\n1,b,d\n2,a,c\n10,e,\n", buf.String())

	p := u.Partition()
	assert.Equal(t, []int{1, 2, 3}, p.GroupIDs())
	assert.Equal(t, relation.ObjectID("2"), p.Groups[1].Key)
	assert.Equal(t, ids("a", "c"), p.Groups[1].Members)
}

func TestUnstackPartitionKeepsSharedMembers(t *testing.T) {
	u := Unstack(keyed("5", "100", "9", "100", "9", "101", "12", "100"), "SS_ID", "ss")

	p := u.Partition()
	require.Equal(t, 3, p.Len())
	assert.Equal(t, []relation.ObjectID{"5", "9", "12"},
		[]relation.ObjectID{p.Groups[0].Key, p.Groups[1].Key, p.Groups[2].Key})
	assert.Equal(t, ids("100"), p.Groups[0].Members)
	assert.Equal(t, ids("100", "101"), p.Groups[1].Members)
	assert.Equal(t, ids("100"), p.Groups[2].Members)
	assert.Equal(t, []int{0, 1, 2}, p.Index().Positions("100"))
}

func TestReadGroups(t *testing.T) {
	input := "group_id,repd_id\n4,100\n4,101\n7,200\n"
	p, err := ReadGroups(strings.NewReader(input), "group_id", "repd_id")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 7}, p.GroupIDs())
	assert.Equal(t, ids("100", "101"), p.Groups[0].Members)

	_, err = ReadGroups(strings.NewReader("id,objects\n1,way/1\n"), "group_id", "repd_id")
	assert.True(t, errors.Is(err, relation.ErrMissingColumn))

	_, err = ReadGroups(strings.NewReader("group_id,repd_id\nabc,1\n"), "group_id", "repd_id")
	assert.True(t, errors.Is(err, relation.ErrInvalidSchema))
}

func TestWriteGroups(t *testing.T) {
	p := BuildTransitive(edges("way/1", "way/2", "way/3", "way/3"), DefaultTransitiveOptions())
	var buf bytes.Buffer
	require.NoError(t, WriteGroups(&buf, p, "id", "objects"))
	assert.Equal(t, "id,objects\n1,way/1\n1,way/2\n2,way/3\n", buf.String())
}

func TestPartitionIndex(t *testing.T) {
	p := &Partition{Groups: []Group{
		{ID: 1, Members: ids("a", "b")},
		{ID: 2, Members: ids("c")},
	}}
	ix := p.Index()
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, []int{0}, ix.Positions("b"))
	assert.Equal(t, []int{1}, ix.Positions("c"))
	assert.Nil(t, ix.Positions("z"))
}
