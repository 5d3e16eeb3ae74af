package graph

import (
	"github.com/RyanBlaney/sonido-mixgraph/logging"
	"github.com/RyanBlaney/sonido-mixgraph/transition"
)

// Edge is one candidate hand-off from a source song to a target song,
// observed in a specific mix. SourceEnd and TargetStart are on that mix's
// timeline; SourceOffset/TargetOffset convert them to song-local times
// (songTime = mixTime - offset) so a renderer can extract the segments.
type Edge struct {
	Source       int     `json:"source"`
	Target       int     `json:"target"`
	SourceEnd    float64 `json:"source_end"`   // crossfade-out end, mix timeline
	TargetStart  float64 `json:"target_start"` // crossfade-in end, mix timeline
	SourceOffset float64 `json:"source_offset"`
	TargetOffset float64 `json:"target_offset"`
	MixPath      string  `json:"mix_path"`
}

// Config holds graph construction parameters
type Config struct {
	// CrossfadeSeconds extends each edge's SourceEnd past the fade-out
	// start so the outgoing song plays through the whole crossfade
	CrossfadeSeconds float64 `json:"crossfade_seconds"`
}

// DefaultConfig returns the default graph configuration
func DefaultConfig() *Config {
	return &Config{
		CrossfadeSeconds: 5,
	}
}

// Graph is a directed multigraph of songs and observed transitions. Songs
// get dense integer ids in insertion order; parallel edges between the same
// pair of songs are kept, one per mix that demonstrated the hand-off.
type Graph struct {
	config    *Config
	ids       map[string]int
	songs     []string
	adjacency [][]Edge
	edgeCount int
	logger    logging.Logger
}

// NewGraph creates an empty graph. A nil config uses DefaultConfig.
func NewGraph(config *Config) *Graph {
	if config == nil {
		config = DefaultConfig()
	}
	return &Graph{
		config: config,
		ids:    make(map[string]int),
		logger: logging.WithFields(logging.Fields{"component": "graph"}),
	}
}

// AddSong registers a song and returns its id. Adding the same path again
// returns the existing id.
func (g *Graph) AddSong(path string) int {
	if id, ok := g.ids[path]; ok {
		return id
	}
	id := len(g.songs)
	g.ids[path] = id
	g.songs = append(g.songs, path)
	g.adjacency = append(g.adjacency, nil)
	return id
}

// AddTransition adds an edge for an observed transition pair, registering
// both songs as needed, and returns the constructed edge
func (g *Graph) AddTransition(pair transition.Pair) Edge {
	source := g.AddSong(pair.SongX)
	target := g.AddSong(pair.SongY)

	edge := Edge{
		Source:       source,
		Target:       target,
		SourceEnd:    pair.CrossOutX + g.config.CrossfadeSeconds,
		TargetStart:  pair.CrossInY,
		SourceOffset: pair.OffsetX,
		TargetOffset: pair.OffsetY,
		MixPath:      pair.MixPath,
	}
	g.adjacency[source] = append(g.adjacency[source], edge)
	g.edgeCount++
	return edge
}

// NumSongs returns the number of registered songs
func (g *Graph) NumSongs() int {
	return len(g.songs)
}

// NumEdges returns the total number of edges, counting parallel edges
func (g *Graph) NumEdges() int {
	return g.edgeCount
}

// Song returns the path for a song id
func (g *Graph) Song(id int) string {
	return g.songs[id]
}

// SongID looks up the id for a song path
func (g *Graph) SongID(path string) (int, bool) {
	id, ok := g.ids[path]
	return id, ok
}

// Outgoing returns all edges leaving the given song. The returned slice is
// the graph's own storage and must not be modified.
func (g *Graph) Outgoing(id int) []Edge {
	if id < 0 || id >= len(g.adjacency) {
		return nil
	}
	return g.adjacency[id]
}
