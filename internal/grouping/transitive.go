package grouping

import (
	"fmt"
	"sort"

	"github.com/pv-groupings/internal/relation"
)

// TransitiveOptions controls how relation edges are walked.
type TransitiveOptions struct {
	Direction relation.Direction
	Expansion relation.Expansion
}

// DefaultTransitiveOptions walks subject to related until nothing new is
// reached.
func DefaultTransitiveOptions() TransitiveOptions {
	return TransitiveOptions{
		Direction: relation.DirectionForward,
		Expansion: relation.ExpansionTransitive,
	}
}

// step is one walkable edge; row keeps input order for member ordering.
type step struct {
	row int
	to  relation.ObjectID
}

type adjacency map[relation.ObjectID][]step

func newAdjacency(edges []relation.RelationEdge, dir relation.Direction) adjacency {
	adj := make(adjacency)
	for i, e := range edges {
		if dir == relation.DirectionForward || dir == relation.DirectionBoth {
			adj[e.Subject] = append(adj[e.Subject], step{row: i, to: e.Related})
		}
		if dir == relation.DirectionReverse || dir == relation.DirectionBoth {
			adj[e.Related] = append(adj[e.Related], step{row: i, to: e.Subject})
		}
	}
	return adj
}

// hop appends every unseen neighbour of from to frontier, in input row order,
// and returns the newly added identifiers.
func (adj adjacency) hop(from []relation.ObjectID, seen map[relation.ObjectID]bool, frontier *[]relation.ObjectID) []relation.ObjectID {
	var steps []step
	for _, id := range from {
		steps = append(steps, adj[id]...)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].row < steps[j].row })

	var added []relation.ObjectID
	for _, s := range steps {
		if seen[s.to] {
			continue
		}
		seen[s.to] = true
		*frontier = append(*frontier, s.to)
		added = append(added, s.to)
	}
	return added
}

// BuildTransitive groups identifiers by walking relation edges from each
// unprocessed subject, scanning edges in input order. Group ids follow
// discovery order starting at 1.
//
// With ExpansionTransitive the walk continues until the frontier stops
// growing; with ExpansionOneHop only the seed's direct neighbours join its
// group. An identifier already emitted in an earlier group is walked through
// but not repeated, so no identifier belongs to two groups.
func BuildTransitive(edges []relation.RelationEdge, opts TransitiveOptions) *Partition {
	if opts.Direction == "" {
		opts.Direction = relation.DirectionForward
	}
	if opts.Expansion == "" {
		opts.Expansion = relation.ExpansionTransitive
	}

	adj := newAdjacency(edges, opts.Direction)
	processed := make(map[relation.ObjectID]bool)
	partition := &Partition{}

	for _, e := range edges {
		seed := e.Subject
		if processed[seed] {
			continue
		}

		seen := map[relation.ObjectID]bool{seed: true}
		frontier := []relation.ObjectID{seed}
		added := adj.hop(frontier, seen, &frontier)
		if opts.Expansion == relation.ExpansionTransitive {
			for len(added) > 0 {
				added = adj.hop(added, seen, &frontier)
			}
		}

		members := make([]relation.ObjectID, 0, len(frontier))
		for _, id := range frontier {
			if processed[id] {
				continue
			}
			processed[id] = true
			members = append(members, id)
		}
		partition.Groups = append(partition.Groups, Group{
			ID:      len(partition.Groups) + 1,
			Key:     seed,
			Members: members,
		})
	}
	return partition
}

// BuildTransitiveTable runs BuildTransitive with the direction and expansion
// configured on the table's schema. Rows without a related identifier still
// seed a group of their own.
func BuildTransitiveTable(t *relation.Table) (*Partition, error) {
	if t.Schema.Mode != relation.ModeTransitive {
		return nil, fmt.Errorf("%w %q: table is in %q mode, not transitive",
			relation.ErrInvalidSchema, t.Schema.Name, t.Schema.Mode)
	}
	edges := make([]relation.RelationEdge, 0, len(t.Rows))
	for _, row := range t.Rows {
		if !row.Subject.Valid {
			continue
		}
		related := row.Subject.ID
		if row.Related.Valid {
			related = row.Related.ID
		}
		edges = append(edges, relation.RelationEdge{Subject: row.Subject.ID, Related: related})
	}
	return BuildTransitive(edges, TransitiveOptions{
		Direction: t.Schema.Direction,
		Expansion: t.Schema.Expansion,
	}), nil
}
