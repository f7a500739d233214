package grouping

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/tidwall/btree"

	"github.com/pv-groupings/internal/relation"
)

// Group is one cluster of identifiers believed to describe a single
// installation.
type Group struct {
	ID      int                 `json:"id"`
	Key     relation.ObjectID   `json:"key"`
	Members []relation.ObjectID `json:"members"`
}

// Sorted returns the members in identifier order.
func (g Group) Sorted() []relation.ObjectID {
	sorted := slices.Clone(g.Members)
	slices.SortFunc(sorted, relation.CompareIDs)
	return sorted
}

// Contains reports whether id is a member.
func (g Group) Contains(id relation.ObjectID) bool {
	return slices.Contains(g.Members, id)
}

// Partition holds groups in the order they were first discovered.
type Partition struct {
	Groups []Group `json:"groups"`
}

// Len returns the number of groups.
func (p *Partition) Len() int {
	return len(p.Groups)
}

// MemberCount returns the total number of grouped identifiers.
func (p *Partition) MemberCount() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Members)
	}
	return n
}

// Group looks a group up by id.
func (p *Partition) Group(id int) (Group, bool) {
	for _, g := range p.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// GroupIDs returns every group id in partition order.
func (p *Partition) GroupIDs() []int {
	ids := make([]int, len(p.Groups))
	for i, g := range p.Groups {
		ids[i] = g.ID
	}
	return ids
}

// RenumberByKey replaces each group id with its key, which must be a
// positive integer.
func (p *Partition) RenumberByKey() error {
	for i := range p.Groups {
		id, err := strconv.Atoi(string(p.Groups[i].Key))
		if err != nil || id < 1 {
			return fmt.Errorf("%w: group id %q is not a positive integer",
				relation.ErrInvalidSchema, p.Groups[i].Key)
		}
		p.Groups[i].ID = id
	}
	return nil
}

// Edges expands every group into fully mutual relation edges. Singleton
// groups become a self edge so that they survive a rebuild.
func (p *Partition) Edges() []relation.RelationEdge {
	var edges []relation.RelationEdge
	for _, g := range p.Groups {
		if len(g.Members) == 1 {
			edges = append(edges, relation.RelationEdge{Subject: g.Members[0], Related: g.Members[0]})
			continue
		}
		for _, a := range g.Members {
			for _, b := range g.Members {
				if a != b {
					edges = append(edges, relation.RelationEdge{Subject: a, Related: b})
				}
			}
		}
	}
	return edges
}

// Index maps member identifiers to the positions of the groups holding them.
type Index struct {
	members btree.Map[relation.ObjectID, []int]
}

// Index builds a member index over the partition.
func (p *Partition) Index() *Index {
	ix := &Index{}
	for pos, g := range p.Groups {
		for _, m := range g.Members {
			owners, _ := ix.members.Get(m)
			if len(owners) > 0 && owners[len(owners)-1] == pos {
				continue
			}
			ix.members.Set(m, append(owners, pos))
		}
	}
	return ix
}

// Positions returns the positions of the groups containing id.
func (ix *Index) Positions(id relation.ObjectID) []int {
	owners, _ := ix.members.Get(id)
	return owners
}

// Len returns the number of indexed identifiers.
func (ix *Index) Len() int {
	return ix.members.Len()
}
