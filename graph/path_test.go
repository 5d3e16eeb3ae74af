package graph

import (
	"errors"
	"testing"

	"github.com/RyanBlaney/sonido-mixgraph/transition"
)

// chainGraph builds a -> b -> c -> d
func chainGraph() *Graph {
	g := NewGraph(&Config{CrossfadeSeconds: 0})
	songs := []string{"a.wav", "b.wav", "c.wav", "d.wav"}
	for i := 0; i+1 < len(songs); i++ {
		g.AddTransition(transition.Pair{
			SongX:     songs[i],
			SongY:     songs[i+1],
			MixPath:   "mix.wav",
			CrossOutX: float64(100 * i),
			CrossInY:  float64(100*i + 20),
		})
	}
	return g
}

func pathSongs(g *Graph, path []int) []string {
	out := make([]string, len(path))
	for i, id := range path {
		out[i] = g.Song(id)
	}
	return out
}

func TestFindSequenceOnChain(t *testing.T) {
	g := chainGraph()

	for _, k := range []int{1, 3, 0} { // greedy, beam, exhaustive
		path := NewPathSelector(g, k).FindSequence()
		if len(path) != 4 {
			t.Fatalf("k=%d: path length = %d, want 4: %v", k, len(path), pathSongs(g, path))
		}
		want := []string{"a.wav", "b.wav", "c.wav", "d.wav"}
		for i, song := range pathSongs(g, path) {
			if song != want[i] {
				t.Errorf("k=%d: path[%d] = %s, want %s", k, i, song, want[i])
			}
		}
	}
}

func TestFindSequenceFrom(t *testing.T) {
	g := chainGraph()
	c, _ := g.SongID("c.wav")

	path := NewPathSelector(g, 2).FindSequenceFrom(c)
	got := pathSongs(g, path)
	if len(got) != 2 || got[0] != "c.wav" || got[1] != "d.wav" {
		t.Errorf("path from c = %v, want [c.wav d.wav]", got)
	}

	if NewPathSelector(g, 2).FindSequenceFrom(-1) != nil {
		t.Error("invalid start should return nil")
	}
}

// validatePath checks the simple-path invariant: no repeated songs and an
// edge for every consecutive pair
func validatePath(t *testing.T, g *Graph, path []int) {
	t.Helper()
	seen := make(map[int]bool)
	for _, id := range path {
		if seen[id] {
			t.Fatalf("song %s repeated in path", g.Song(id))
		}
		seen[id] = true
	}
	for i := 0; i+1 < len(path); i++ {
		connected := false
		for _, e := range g.Outgoing(path[i]) {
			if e.Target == path[i+1] {
				connected = true
				break
			}
		}
		if !connected {
			t.Fatalf("no edge %s -> %s", g.Song(path[i]), g.Song(path[i+1]))
		}
	}
}

func TestGreedySearchReturnsValidPath(t *testing.T) {
	// branching graph with a cycle back to a
	g := NewGraph(&Config{CrossfadeSeconds: 0})
	edges := [][2]string{
		{"a.wav", "b.wav"},
		{"a.wav", "c.wav"},
		{"b.wav", "c.wav"},
		{"b.wav", "d.wav"},
		{"c.wav", "a.wav"},
		{"c.wav", "d.wav"},
		{"d.wav", "e.wav"},
	}
	for i, e := range edges {
		g.AddTransition(transition.Pair{
			SongX:     e[0],
			SongY:     e[1],
			MixPath:   "mix.wav",
			CrossOutX: float64(50 * i),
			CrossInY:  float64(50*i + 15),
		})
	}

	for _, k := range []int{1, 2, 0} {
		path := NewPathSelector(g, k).FindSequence()
		if len(path) < 2 {
			t.Fatalf("k=%d: trivial path %v", k, path)
		}
		validatePath(t, g, path)
	}

	// exhaustive search must find the full 5-song path a -> b -> c ... any
	// simple path visiting all of a, b, c, d, e
	if path := NewPathSelector(g, 0).FindSequence(); len(path) != 5 {
		t.Errorf("exhaustive path length = %d, want 5: %v", len(path), pathSongs(g, path))
	}
}

func TestResolveEdgesPrefersLateSourceEnd(t *testing.T) {
	g := NewGraph(&Config{CrossfadeSeconds: 0})
	g.AddTransition(transition.Pair{
		SongX: "a.wav", SongY: "b.wav", MixPath: "mix1.wav",
		CrossOutX: 100, CrossInY: 50,
	})
	// two mixes demonstrate b -> c; both clear the non-overlap bound
	// against the previous hop's targetStart of 50
	g.AddTransition(transition.Pair{
		SongX: "b.wav", SongY: "c.wav", MixPath: "mix1.wav",
		CrossOutX: 150, CrossInY: 200,
	})
	g.AddTransition(transition.Pair{
		SongX: "b.wav", SongY: "c.wav", MixPath: "mix2.wav",
		CrossOutX: 90, CrossInY: 200,
	})

	a, _ := g.SongID("a.wav")
	b, _ := g.SongID("b.wav")
	c, _ := g.SongID("c.wav")

	resolved, err := NewPathSelector(g, 1).ResolveEdges([]int{a, b, c})
	if err != nil {
		t.Fatalf("ResolveEdges: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved %d edges, want 2", len(resolved))
	}
	if resolved[1].SourceEnd != 150 || resolved[1].MixPath != "mix1.wav" {
		t.Errorf("hop 1 chose %+v, want the mix1 edge with SourceEnd 150", resolved[1])
	}
}

func TestResolveEdgesNonOverlapConstraint(t *testing.T) {
	g := NewGraph(&Config{CrossfadeSeconds: 0})
	// a -> b commits to targetStart 200
	g.AddTransition(transition.Pair{
		SongX: "a.wav", SongY: "b.wav", MixPath: "mix1.wav",
		CrossOutX: 100, CrossInY: 200,
	})
	// the only b -> c edge ends the source at 90, before the committed
	// hand-off, so the hop is unsatisfiable
	g.AddTransition(transition.Pair{
		SongX: "b.wav", SongY: "c.wav", MixPath: "mix2.wav",
		CrossOutX: 90, CrossInY: 300,
	})

	a, _ := g.SongID("a.wav")
	b, _ := g.SongID("b.wav")
	c, _ := g.SongID("c.wav")

	_, err := NewPathSelector(g, 1).ResolveEdges([]int{a, b, c})
	var pathErr *PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("err = %v, want *PathError", err)
	}
	if pathErr.Hop != 1 || pathErr.Source != "b.wav" || pathErr.Target != "c.wav" {
		t.Errorf("PathError = %+v", pathErr)
	}
}

func TestResolveEdgesTrivialPaths(t *testing.T) {
	g := chainGraph()
	s := NewPathSelector(g, 1)

	if edges, err := s.ResolveEdges(nil); err != nil || edges != nil {
		t.Errorf("nil path: %v, %v", edges, err)
	}
	if edges, err := s.ResolveEdges([]int{0}); err != nil || edges != nil {
		t.Errorf("single-node path: %v, %v", edges, err)
	}
}
