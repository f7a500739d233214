package grouping

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"

	"github.com/pv-groupings/internal/relation"
)

// Unstacked is the wide form of a keyed table: one row per key, with that
// key's members spread over numbered slots.
type Unstacked struct {
	KeyColumn string
	Prefix    string
	Width     int
	Rows      []UnstackedRow
}

// UnstackedRow is one key with its member slots. Slots past the key's own
// member count are absent.
type UnstackedRow struct {
	Key   relation.ObjectID
	Slots []relation.NullID
}

// Members returns the present slot values in slot order.
func (r UnstackedRow) Members() []relation.ObjectID {
	var members []relation.ObjectID
	for _, s := range r.Slots {
		if s.Valid {
			members = append(members, s.ID)
		}
	}
	return members
}

// Unstack sorts rows by key, numbers each run of equal keys from 1 and
// pivots the numbered members into columns named <prefix>_1 … <prefix>_N.
// Rows with an absent key or member are skipped.
func Unstack(rows []KeyedMember, keyColumn, prefix string) *Unstacked {
	kept := make([]KeyedMember, 0, len(rows))
	for _, row := range rows {
		if row.Key.Valid && row.Member.Valid {
			kept = append(kept, row)
		}
	}
	slices.SortStableFunc(kept, func(a, b KeyedMember) int {
		return relation.CompareIDs(a.Key.ID, b.Key.ID)
	})

	positions := make([]int, len(kept))
	for i := range kept {
		if i > 0 && kept[i-1].Key.ID == kept[i].Key.ID {
			positions[i] = positions[i-1] + 1
		} else {
			positions[i] = 1
		}
	}

	u := &Unstacked{KeyColumn: keyColumn, Prefix: prefix}
	for i, row := range kept {
		if positions[i] == 1 {
			u.Rows = append(u.Rows, UnstackedRow{Key: row.Key.ID})
		}
		last := &u.Rows[len(u.Rows)-1]
		last.Slots = append(last.Slots, row.Member)
		if positions[i] > u.Width {
			u.Width = positions[i]
		}
	}
	for i := range u.Rows {
		for len(u.Rows[i].Slots) < u.Width {
			u.Rows[i].Slots = append(u.Rows[i].Slots, relation.NullID{})
		}
	}
	return u
}

// Header returns the column names of the wide table.
func (u *Unstacked) Header() []string {
	header := []string{u.KeyColumn}
	for i := 1; i <= u.Width; i++ {
		header = append(header, fmt.Sprintf("%s_%d", u.Prefix, i))
	}
	return header
}

// Partition converts the wide rows back into groups, one per key in key
// order. Each group keeps its row's members whole, so a member listed under
// several keys appears in each of their groups.
func (u *Unstacked) Partition() *Partition {
	partition := &Partition{}
	for _, r := range u.Rows {
		members := r.Members()
		if len(members) == 0 {
			continue
		}
		partition.Groups = append(partition.Groups, Group{
			ID:      len(partition.Groups) + 1,
			Key:     r.Key,
			Members: members,
		})
	}
	return partition
}

// WriteCSV writes the wide table with absent slots left blank.
func (u *Unstacked) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(u.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range u.Rows {
		record := make([]string, 0, len(r.Slots)+1)
		record = append(record, string(r.Key))
		for _, s := range r.Slots {
			record = append(record, s.String())
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.Key, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
