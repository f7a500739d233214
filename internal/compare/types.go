package compare

import (
	"fmt"

	"github.com/pv-groupings/internal/relation"
)

// Category classifies one (reference group, candidate group) pairing. The
// integer values are the codes written to comparison tables.
type Category int

const (
	// Correct: both groups hold the same members.
	Correct Category = 0
	// Missing: no candidate group shares a member with the reference group.
	Missing Category = 1
	// SameSizeMismatch: equal member counts, different members.
	SameSizeMismatch Category = 2
	// OverGrouped: the candidate grouped more objects together (greedy).
	OverGrouped Category = 3
	// UnderGrouped: the candidate grouped fewer objects together.
	UnderGrouped Category = 4
)

// Categories lists every category in code order.
var Categories = []Category{Correct, Missing, SameSizeMismatch, OverGrouped, UnderGrouped}

func (c Category) String() string {
	switch c {
	case Correct:
		return "correct"
	case Missing:
		return "missing_in_candidate"
	case SameSizeMismatch:
		return "mismatch_same_size"
	case OverGrouped:
		return "candidate_over_grouped"
	case UnderGrouped:
		return "candidate_under_grouped"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory accepts a code or a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if s == c.String() || s == fmt.Sprint(int(c)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// NullGroupID is a candidate group id that is absent for Missing rows.
type NullGroupID struct {
	ID    int
	Valid bool
}

func (n NullGroupID) String() string {
	if !n.Valid {
		return ""
	}
	return fmt.Sprint(n.ID)
}

// MatchRecord is one row of a comparison table.
type MatchRecord struct {
	GroupID          NullGroupID
	ReferenceKey     relation.ObjectID
	ReferenceGroupID int
	Category         Category
}

// Summary counts records per category.
type Summary map[Category]int

// Summarize counts records per category.
func Summarize(records []MatchRecord) Summary {
	s := make(Summary)
	for _, r := range records {
		s[r.Category]++
	}
	return s
}

// Total returns the number of counted records.
func (s Summary) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}
