package store

import (
	"context"
	"fmt"
)

// Direction selects which edges a traversal follows.
type Direction string

const (
	Outbound Direction = "outbound" // source -> target
	Inbound  Direction = "inbound"  // target -> source
	Both     Direction = "any"
)

// ParseDirection maps a pattern arrow to a Direction. Unknown values are
// an error.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Outbound, Inbound, Both:
		return d, nil
	case "":
		return Outbound, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Hop is a node reached by Reach together with its distance from the start.
type Hop struct {
	Node  *Node
	Depth int
}

// neighbors returns the ids adjacent to id along edges of the given types
// (all types when empty).
func (s *Store) neighbors(id int64, dir Direction, edgeTypes []string) ([]int64, error) {
	var ids []int64
	follow := func(outbound bool) error {
		var edges []*Edge
		if len(edgeTypes) == 0 {
			var err error
			if outbound {
				edges, err = s.FindEdgesBySource(id)
			} else {
				edges, err = s.FindEdgesByTarget(id)
			}
			if err != nil {
				return err
			}
		}
		for _, t := range edgeTypes {
			var found []*Edge
			var err error
			if outbound {
				found, err = s.FindEdgesBySourceAndType(id, t)
			} else {
				found, err = s.FindEdgesByTargetAndType(id, t)
			}
			if err != nil {
				return err
			}
			edges = append(edges, found...)
		}
		for _, e := range edges {
			if outbound {
				ids = append(ids, e.TargetID)
			} else {
				ids = append(ids, e.SourceID)
			}
		}
		return nil
	}
	if dir != Inbound {
		if err := follow(true); err != nil {
			return nil, err
		}
	}
	if dir != Outbound {
		if err := follow(false); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// Reach walks the graph breadth-first from start and returns every other
// node within maxDepth hops, nearest first. At most limit nodes are
// returned.
func (s *Store) Reach(ctx context.Context, start int64, dir Direction, edgeTypes []string, maxDepth, limit int) ([]Hop, error) {
	if maxDepth <= 0 || limit <= 0 {
		return nil, nil
	}

	seen := map[int64]bool{start: true}
	frontier := []int64{start}
	var hops []Hop

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []int64
		for _, id := range frontier {
			ids, err := s.neighbors(id, dir, edgeTypes)
			if err != nil {
				return nil, fmt.Errorf("reach from %d: %w", id, err)
			}
			for _, n := range ids {
				if seen[n] {
					continue
				}
				seen[n] = true
				node, err := s.FindNodeByID(n)
				if err != nil || node == nil {
					continue
				}
				hops = append(hops, Hop{Node: node, Depth: depth})
				if len(hops) >= limit {
					return hops, nil
				}
				next = append(next, n)
			}
		}
		frontier = next
	}
	return hops, nil
}
