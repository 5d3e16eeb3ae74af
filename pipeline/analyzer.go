package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-mixgraph/fingerprint"
	"github.com/RyanBlaney/sonido-mixgraph/graph"
	"github.com/RyanBlaney/sonido-mixgraph/logging"
	"github.com/RyanBlaney/sonido-mixgraph/match"
	"github.com/RyanBlaney/sonido-mixgraph/transcode"
	"github.com/RyanBlaney/sonido-mixgraph/transition"
)

// Config holds pipeline-wide settings, composing the per-stage configs
type Config struct {
	// Workers bounds concurrent (song, mix) comparisons; 0 means NumCPU
	Workers int `json:"workers"`

	// MatchTimeout budgets each comparison's correlation work; 0 disables
	MatchTimeout time.Duration `json:"match_timeout"`

	Extractor *fingerprint.ExtractorConfig `json:"extractor"`
	Match     *match.Config                `json:"match"`
	Pair      *transition.Config           `json:"pair"`
	Graph     *graph.Config                `json:"graph"`
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:      0,
		MatchTimeout: 0,
		Extractor:    fingerprint.DefaultExtractorConfig(),
		Match:        match.DefaultConfig(),
		Pair:         transition.DefaultConfig(),
		Graph:        graph.DefaultConfig(),
	}
}

// Match is one located song occurrence inside a mix with its refined
// boundaries and the transition candidate derived from them
type Match struct {
	SongPath  string               `json:"song_path"`
	MixPath   string               `json:"mix_path"`
	Refined   match.Refined        `json:"refined"`
	Candidate transition.Candidate `json:"candidate"`
}

// Failure records an input that could not be fingerprinted. Failures are
// collected, not fatal: the batch continues without the input.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result is the full output of a batch analysis
type Result struct {
	Matches  []Match           `json:"matches"`
	Pairs    []transition.Pair `json:"pairs"`
	Graph    *graph.Graph      `json:"-"`
	Failures []Failure         `json:"failures,omitempty"`
}

// Analyzer runs the full pipeline: fingerprint every input, locate each
// song in each mix, refine the matches, pair transitions per mix, and build
// the transition graph. Comparisons are independent and read-only over the
// fingerprints, so they fan out across a worker pool.
type Analyzer struct {
	config    *Config
	extractor *fingerprint.Extractor
	matcher   *match.RoughMatcher
	strategy  match.Strategy
	pairer    *transition.Pairer
	logger    logging.Logger
}

// NewAnalyzer creates an analyzer. A nil config uses DefaultConfig; a nil
// store disables fingerprint caching. The default refinement strategy is
// chunk isometry; use SetStrategy to swap in beat alignment or rough-only.
func NewAnalyzer(config *Config, store fingerprint.Store) *Analyzer {
	if config == nil {
		config = DefaultConfig()
	}
	decoder := transcode.NewDecoder(nil)
	return &Analyzer{
		config:    config,
		extractor: fingerprint.NewExtractor(config.Extractor, decoder, store),
		matcher:   match.NewRoughMatcher(config.Match),
		strategy:  match.NewChunkRefiner(config.Match),
		pairer:    transition.NewPairer(config.Pair),
		logger:    logging.WithFields(logging.Fields{"component": "analyzer"}),
	}
}

// SetStrategy replaces the refinement strategy applied after rough matching
func (a *Analyzer) SetStrategy(s match.Strategy) {
	if s != nil {
		a.strategy = s
	}
}

// Analyze runs the pipeline over the given song and mix files. Inputs that
// fail to fingerprint are recorded in Result.Failures and skipped. The
// returned error is non-nil only when the context is cancelled.
func (a *Analyzer) Analyze(ctx context.Context, songPaths, mixPaths []string) (*Result, error) {
	result := &Result{}

	songs := a.fingerprintAll(ctx, songPaths, result)
	mixes := a.fingerprintAll(ctx, mixPaths, result)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.logger.Info("fingerprinting complete", logging.Fields{
		"songs":    len(songs),
		"mixes":    len(mixes),
		"failures": len(result.Failures),
	})

	result.Matches = a.matchAll(ctx, songs, mixes)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]transition.Candidate, 0, len(result.Matches))
	for _, m := range result.Matches {
		candidates = append(candidates, m.Candidate)
	}
	result.Pairs = a.pairer.Pairs(candidates)

	result.Graph = graph.NewGraph(a.config.Graph)
	for _, pair := range result.Pairs {
		result.Graph.AddTransition(pair)
	}

	a.logger.Info("analysis complete", logging.Fields{
		"matches": len(result.Matches),
		"pairs":   len(result.Pairs),
		"songs":   result.Graph.NumSongs(),
		"edges":   result.Graph.NumEdges(),
	})
	return result, nil
}

func (a *Analyzer) fingerprintAll(ctx context.Context, paths []string, result *Result) []*fingerprint.Fingerprint {
	var out []*fingerprint.Fingerprint
	for _, path := range paths {
		if ctx.Err() != nil {
			return out
		}
		fp, err := a.extractor.Fingerprint(ctx, path)
		if errors.Is(err, fingerprint.ErrNoFingerprint) {
			result.Failures = append(result.Failures, Failure{Path: path, Error: err.Error()})
			continue
		}
		if err != nil {
			result.Failures = append(result.Failures, Failure{Path: path, Error: err.Error()})
			continue
		}
		out = append(out, fp)
	}
	return out
}

type comparison struct {
	song *fingerprint.Fingerprint
	mix  *fingerprint.Fingerprint
}

// matchAll fans (song, mix) comparisons out over the worker pool. Results
// arrive unordered and are sorted implicitly by the pairer later.
func (a *Analyzer) matchAll(ctx context.Context, songs, mixes []*fingerprint.Fingerprint) []Match {
	workers := a.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	total := len(songs) * len(mixes)
	if total == 0 {
		return nil
	}
	if workers > total {
		workers = total
	}

	jobs := make(chan comparison, workers)
	results := make(chan Match, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				m, ok := a.compare(ctx, job.song, job.mix)
				if ok {
					results <- m
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, mix := range mixes {
			for _, song := range songs {
				select {
				case jobs <- comparison{song: song, mix: mix}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var matches []Match
	for m := range results {
		matches = append(matches, m)
	}
	return matches
}

// compare runs rough matching then refinement for one (song, mix) pair and
// derives the transition candidate from the refined boundaries
func (a *Analyzer) compare(ctx context.Context, song, mix *fingerprint.Fingerprint) (Match, bool) {
	if a.config.MatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.MatchTimeout)
		defer cancel()
	}

	rough, ok, err := a.matcher.Match(ctx, song, mix)
	if err != nil {
		a.logger.Warn("rough match failed", logging.Fields{
			"song":  song.SourcePath,
			"mix":   mix.SourcePath,
			"error": err.Error(),
		})
		return Match{}, false
	}
	if !ok {
		return Match{}, false
	}

	refined, err := a.strategy.Refine(ctx, song, mix, rough)
	if err != nil {
		a.logger.Warn("refinement failed", logging.Fields{
			"song":     song.SourcePath,
			"mix":      mix.SourcePath,
			"strategy": a.strategy.Name(),
			"error":    err.Error(),
		})
		return Match{}, false
	}
	if refined.Status == match.StatusNoMatch {
		return Match{}, false
	}

	return Match{
		SongPath: song.SourcePath,
		MixPath:  mix.SourcePath,
		Refined:  refined,
		Candidate: transition.Candidate{
			SongPath: song.SourcePath,
			MixPath:  mix.SourcePath,
			Offset:   refined.MixStart - refined.SongStart,
			CrossIn:  refined.MixStart,
			CrossOut: refined.MixEnd,
		},
	}, true
}
