package handlers

import (
	"slices"

	"github.com/pv-groupings/internal/compare"
	"github.com/pv-groupings/internal/geometry"
	"github.com/pv-groupings/internal/registry"
	"github.com/pv-groupings/internal/relation"
)

// Data is the read-only state the review API serves.
type Data struct {
	order        []int
	groups       map[int][]geometry.Member
	Comparison   []compare.MatchRecord
	Installation map[relation.ObjectID]registry.Installation
}

// NewData indexes members by group. Groups keep the order in which they
// first appear.
func NewData(members []geometry.Member, comparison []compare.MatchRecord, installations []registry.Installation) *Data {
	d := &Data{
		groups:       make(map[int][]geometry.Member),
		Comparison:   comparison,
		Installation: registry.Index(installations),
	}
	for _, m := range members {
		if _, ok := d.groups[m.GroupID]; !ok {
			d.order = append(d.order, m.GroupID)
		}
		d.groups[m.GroupID] = append(d.groups[m.GroupID], m)
	}
	return d
}

// GroupIDs returns the group ids in review order.
func (d *Data) GroupIDs() []int {
	return d.order
}

// Members returns the members of group id.
func (d *Data) Members(id int) ([]geometry.Member, bool) {
	members, ok := d.groups[id]
	return members, ok
}

// NextGroupID returns the group reviewed after id, if any.
func (d *Data) NextGroupID(id int) (int, bool) {
	i := slices.Index(d.order, id)
	if i < 0 || i+1 >= len(d.order) {
		return 0, false
	}
	return d.order[i+1], true
}
