package grouping

import (
	"fmt"

	"github.com/pv-groupings/internal/relation"
)

// KeyedMember is one row of a table that already names the group each
// member belongs to.
type KeyedMember struct {
	Key    relation.NullID
	Member relation.NullID
}

// BuildByKey groups members sharing a grouping key. Groups are emitted in the
// order their key first appears; there is no transitive expansion. Rows with
// an absent key or member are skipped, and a member already claimed by an
// earlier row stays with that row's group.
func BuildByKey(rows []KeyedMember) *Partition {
	type pending struct {
		key     relation.ObjectID
		members []relation.ObjectID
	}

	var order []*pending
	byKey := make(map[relation.ObjectID]*pending)
	assigned := make(map[relation.ObjectID]bool)

	for _, row := range rows {
		if !row.Key.Valid || !row.Member.Valid {
			continue
		}
		g, ok := byKey[row.Key.ID]
		if !ok {
			g = &pending{key: row.Key.ID}
			byKey[row.Key.ID] = g
			order = append(order, g)
		}
		if assigned[row.Member.ID] {
			continue
		}
		assigned[row.Member.ID] = true
		g.members = append(g.members, row.Member.ID)
	}

	partition := &Partition{}
	for _, g := range order {
		if len(g.members) == 0 {
			continue
		}
		partition.Groups = append(partition.Groups, Group{
			ID:      len(partition.Groups) + 1,
			Key:     g.key,
			Members: g.members,
		})
	}
	return partition
}

// KeyedRows extracts (grouping key, subject) pairs from a key-mode table.
func KeyedRows(t *relation.Table) ([]KeyedMember, error) {
	if t.Schema.Mode != relation.ModeKey {
		return nil, fmt.Errorf("%w %q: table is in %q mode, not key",
			relation.ErrInvalidSchema, t.Schema.Name, t.Schema.Mode)
	}
	rows := make([]KeyedMember, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = KeyedMember{Key: row.Key, Member: row.Subject}
	}
	return rows, nil
}

// BuildByKeyTable runs BuildByKey over a key-mode table.
func BuildByKeyTable(t *relation.Table) (*Partition, error) {
	rows, err := KeyedRows(t)
	if err != nil {
		return nil, err
	}
	return BuildByKey(rows), nil
}

// Build dispatches on the table's schema mode.
func Build(t *relation.Table) (*Partition, error) {
	switch t.Schema.Mode {
	case relation.ModeTransitive:
		return BuildTransitiveTable(t)
	case relation.ModeKey:
		return BuildByKeyTable(t)
	}
	return nil, fmt.Errorf("%w %q: unknown mode %q", relation.ErrInvalidSchema, t.Schema.Name, t.Schema.Mode)
}
