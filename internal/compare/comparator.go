package compare

import (
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/pv-groupings/internal/grouping"
	"github.com/pv-groupings/internal/relation"
)

// Strategy selects how candidate groups sharing members with a reference
// group are found.
type Strategy string

const (
	// StrategyScan tests every candidate group against every reference group:
	// O(N×M) set-intersection tests. Fine for hundreds to low thousands of
	// groups.
	StrategyScan Strategy = "scan"
	// StrategyIndexed looks members up in a member-to-group index built over
	// the candidate partition, which is close to linear in the member count.
	// Use it once either side grows past a few thousand groups.
	StrategyIndexed Strategy = "indexed"
)

// Options configures a Comparator.
type Options struct {
	Strategy Strategy
	// Workers > 1 matches reference groups concurrently. Output order does
	// not depend on it.
	Workers int
	Logger  *slog.Logger
}

// Comparator classifies how a candidate partition groups the objects of a
// reference partition.
type Comparator struct {
	opts   Options
	logger *slog.Logger
}

// NewComparator creates a comparator.
func NewComparator(opts Options) *Comparator {
	if opts.Strategy == "" {
		opts.Strategy = StrategyScan
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{opts: opts, logger: logger}
}

// Compare emits one record for every pair of reference and candidate groups
// sharing at least one member, and one Missing record for every reference
// group no candidate group touches. Records are sorted by candidate group id
// (Missing rows last) and then by reference key.
func (c *Comparator) Compare(reference, candidate *grouping.Partition) []MatchRecord {
	c.logger.Debug("comparing partitions",
		"strategy", c.opts.Strategy,
		"reference_groups", reference.Len(),
		"candidate_groups", candidate.Len(),
		"workers", c.opts.Workers)

	var index *grouping.Index
	if c.opts.Strategy == StrategyIndexed {
		index = candidate.Index()
	}

	perGroup := make([][]MatchRecord, reference.Len())
	match := func(i int) {
		ref := reference.Groups[i]
		var positions []int
		if index != nil {
			positions = indexedMatches(ref, index)
		} else {
			positions = scanMatches(ref, candidate)
		}
		perGroup[i] = classifyAll(ref, candidate, positions)
	}

	if c.opts.Workers > 1 {
		var g errgroup.Group
		g.SetLimit(c.opts.Workers)
		for i := range reference.Groups {
			g.Go(func() error {
				match(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range reference.Groups {
			match(i)
		}
	}

	var records []MatchRecord
	for _, rs := range perGroup {
		records = append(records, rs...)
	}
	SortRecords(records)
	return records
}

func scanMatches(ref grouping.Group, candidate *grouping.Partition) []int {
	members := make(map[relation.ObjectID]struct{}, len(ref.Members))
	for _, m := range ref.Members {
		members[m] = struct{}{}
	}
	var positions []int
	for j, cand := range candidate.Groups {
		for _, m := range cand.Members {
			if _, ok := members[m]; ok {
				positions = append(positions, j)
				break
			}
		}
	}
	return positions
}

func indexedMatches(ref grouping.Group, index *grouping.Index) []int {
	var positions []int
	for _, m := range ref.Members {
		positions = append(positions, index.Positions(m)...)
	}
	slices.Sort(positions)
	return slices.Compact(positions)
}

func classifyAll(ref grouping.Group, candidate *grouping.Partition, positions []int) []MatchRecord {
	if len(positions) == 0 {
		return []MatchRecord{{
			ReferenceKey:     ref.Key,
			ReferenceGroupID: ref.ID,
			Category:         Missing,
		}}
	}
	records := make([]MatchRecord, 0, len(positions))
	for _, j := range positions {
		cand := candidate.Groups[j]
		records = append(records, MatchRecord{
			GroupID:          NullGroupID{ID: cand.ID, Valid: true},
			ReferenceKey:     ref.Key,
			ReferenceGroupID: ref.ID,
			Category:         Classify(ref.Members, cand.Members),
		})
	}
	return records
}

// Classify applies the category precedence to one pair of member lists:
// Missing, Correct, SameSizeMismatch, OverGrouped, UnderGrouped.
func Classify(reference, candidate []relation.ObjectID) Category {
	if len(candidate) == 0 {
		return Missing
	}
	ref := slices.Clone(reference)
	cand := slices.Clone(candidate)
	slices.SortFunc(ref, relation.CompareIDs)
	slices.SortFunc(cand, relation.CompareIDs)

	switch {
	case slices.Equal(ref, cand):
		return Correct
	case len(cand) == len(ref):
		return SameSizeMismatch
	case len(cand) > len(ref):
		return OverGrouped
	default:
		return UnderGrouped
	}
}

// SortRecords orders records by candidate group id, absent ids last, then by
// reference key.
func SortRecords(records []MatchRecord) {
	slices.SortStableFunc(records, func(a, b MatchRecord) int {
		switch {
		case a.GroupID.Valid && !b.GroupID.Valid:
			return -1
		case !a.GroupID.Valid && b.GroupID.Valid:
			return 1
		case a.GroupID.ID != b.GroupID.ID:
			if a.GroupID.ID < b.GroupID.ID {
				return -1
			}
			return 1
		}
		return relation.CompareIDs(a.ReferenceKey, b.ReferenceKey)
	})
}
