package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-mixgraph/logging"
)

// PathError reports that a requested hop in a song sequence has no usable
// edge. Unlike a low-confidence match, this cannot be skipped: the caller
// asked for a specific connection that does not exist under the constraints.
type PathError struct {
	Source string
	Target string
	Hop    int
}

func (e *PathError) Error() string {
	return fmt.Sprintf("no valid edge for hop %d: %s -> %s", e.Hop, e.Source, e.Target)
}

// RankFunc scores a partial path for beam pruning; higher survives. The
// visited function reports whether a song id is already on the path.
type RankFunc func(g *Graph, last int, visited func(int) bool) float64

// UnvisitedOutDegree is the default ranking: the number of edges leaving
// the path's last song whose target has not been visited, a proxy for room
// to keep extending.
func UnvisitedOutDegree(g *Graph, last int, visited func(int) bool) float64 {
	count := 0
	for _, e := range g.Outgoing(last) {
		if !visited(e.Target) {
			count++
		}
	}
	return float64(count)
}

// PathSelector searches the transition graph for long simple paths using
// beam search. Longest-simple-path is NP-hard, so this is a bounded
// heuristic, not an optimal solver: beamWidth 1 is greedy, larger widths
// explore more, and beamWidth <= 0 keeps every partial path (exhaustive,
// factorial cost on dense graphs).
type PathSelector struct {
	graph     *Graph
	beamWidth int
	rank      RankFunc
	logger    logging.Logger
}

// NewPathSelector creates a selector over the given graph. The graph must
// not be mutated while searches run.
func NewPathSelector(g *Graph, beamWidth int) *PathSelector {
	return &PathSelector{
		graph:     g,
		beamWidth: beamWidth,
		rank:      UnvisitedOutDegree,
		logger:    logging.WithFields(logging.Fields{"component": "path_selector"}),
	}
}

// SetRank replaces the beam ranking policy
func (s *PathSelector) SetRank(rank RankFunc) {
	if rank != nil {
		s.rank = rank
	}
}

type partialPath struct {
	path    []int
	visited []uint64
}

func newPartial(start, numSongs int) partialPath {
	p := partialPath{
		path:    []int{start},
		visited: make([]uint64, (numSongs+63)/64),
	}
	p.setVisited(start)
	return p
}

func (p *partialPath) setVisited(id int) {
	p.visited[id/64] |= 1 << uint(id%64)
}

func (p *partialPath) isVisited(id int) bool {
	return p.visited[id/64]&(1<<uint(id%64)) != 0
}

func (p *partialPath) extend(target int) partialPath {
	next := partialPath{
		path:    make([]int, len(p.path), len(p.path)+1),
		visited: make([]uint64, len(p.visited)),
	}
	copy(next.path, p.path)
	copy(next.visited, p.visited)
	next.path = append(next.path, target)
	next.setVisited(target)
	return next
}

// FindSequence returns the longest simple path found from any start song,
// as a slice of song ids. Empty graph returns nil.
func (s *PathSelector) FindSequence() []int {
	var best []int
	for start := 0; start < s.graph.NumSongs(); start++ {
		if path := s.FindSequenceFrom(start); len(path) > len(best) {
			best = path
		}
	}
	s.logger.Debug("sequence search complete", logging.Fields{
		"songs":  s.graph.NumSongs(),
		"edges":  s.graph.NumEdges(),
		"length": len(best),
	})
	return best
}

// FindSequenceFrom returns the longest simple path found starting from the
// given song id
func (s *PathSelector) FindSequenceFrom(start int) []int {
	numSongs := s.graph.NumSongs()
	if start < 0 || start >= numSongs {
		return nil
	}

	best := []int{start}
	beam := []partialPath{newPartial(start, numSongs)}

	for len(beam) > 0 {
		var next []partialPath
		for i := range beam {
			p := &beam[i]
			last := p.path[len(p.path)-1]

			extended := false
			var seen map[int]bool
			for _, e := range s.graph.Outgoing(last) {
				if p.isVisited(e.Target) || seen[e.Target] {
					continue
				}
				// parallel edges extend a target only once
				if seen == nil {
					seen = make(map[int]bool)
				}
				seen[e.Target] = true
				next = append(next, p.extend(e.Target))
				extended = true
			}
			if !extended && len(p.path) > len(best) {
				best = p.path
			}
		}

		if s.beamWidth > 0 && len(next) > s.beamWidth {
			scores := make([]float64, len(next))
			for i := range next {
				p := &next[i]
				scores[i] = s.rank(s.graph, p.path[len(p.path)-1], p.isVisited)
			}
			order := make([]int, len(next))
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool {
				return scores[order[a]] > scores[order[b]]
			})
			pruned := make([]partialPath, s.beamWidth)
			for i := 0; i < s.beamWidth; i++ {
				pruned[i] = next[order[i]]
			}
			next = pruned
		}
		beam = next
	}
	return best
}

// ResolveEdges picks one concrete edge per consecutive hop in a song
// sequence. When several mixes provide the same hand-off, the edge with the
// largest SourceEnd wins, letting the outgoing song play as long as
// possible, subject to not rewinding past the previous hop: a candidate's
// SourceEnd must be at least the previous edge's TargetStart. Returns a
// *PathError when a hop has no edge satisfying the constraint.
func (s *PathSelector) ResolveEdges(path []int) ([]Edge, error) {
	if len(path) < 2 {
		return nil, nil
	}

	resolved := make([]Edge, 0, len(path)-1)
	prevTargetStart := math.Inf(-1)

	for hop := 0; hop+1 < len(path); hop++ {
		source, target := path[hop], path[hop+1]

		var best Edge
		found := false
		for _, e := range s.graph.Outgoing(source) {
			if e.Target != target {
				continue
			}
			if e.SourceEnd < prevTargetStart {
				continue
			}
			if !found || e.SourceEnd > best.SourceEnd {
				best = e
				found = true
			}
		}
		if !found {
			return nil, &PathError{
				Source: s.graph.Song(source),
				Target: s.graph.Song(target),
				Hop:    hop,
			}
		}
		resolved = append(resolved, best)
		prevTargetStart = best.TargetStart
	}
	return resolved, nil
}
