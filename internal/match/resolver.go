// Package match resolves free-text target names against the named entities
// of a scene: exits for movement, characters for combat.
package match

import (
	"strings"

	"go.uber.org/zap"
)

// Stop-words stripped before token scoring. Movement phrasing ("go to the
// gate") would otherwise drown the meaningful tokens.
var stopwords = map[string]struct{}{
	"to": {}, "the": {}, "a": {}, "an": {},
	"run": {}, "walk": {}, "go": {}, "move": {}, "goto": {},
}

// Candidate is one named entity a query may resolve to.
type Candidate struct {
	ID    string
	Label string
}

// Resolver scores a query against candidates and accepts the best match only
// when it clears the threshold. The zero value is unusable; use New.
type Resolver struct {
	threshold   float64
	useSequence bool
	log         *zap.SugaredLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSequenceSimilarity blends a sequence-similarity ratio into the token
// score. Helps with misspellings at the cost of more false positives.
func WithSequenceSimilarity() Option {
	return func(r *Resolver) { r.useSequence = true }
}

// WithLogger enables per-candidate score diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Resolver) { r.log = log }
}

// New creates a resolver accepting matches at or above threshold.
func New(threshold float64, opts ...Option) *Resolver {
	r := &Resolver{threshold: threshold, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the best-scoring candidate for the query, or false when no
// candidate clears the threshold. An exact case-insensitive id match wins
// outright. Ties resolve to the first-encountered candidate.
func (r *Resolver) Resolve(query string, candidates []Candidate) (Candidate, bool) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" || len(candidates) == 0 {
		return Candidate{}, false
	}

	for _, c := range candidates {
		if query == strings.ToLower(c.ID) {
			return c, true
		}
	}

	var best Candidate
	bestScore := 0.0
	for _, c := range candidates {
		score := r.score(query, c)
		r.log.Debugw("candidate scored", "query", query, "candidate", c.ID, "score", score)
		if score > bestScore {
			bestScore, best = score, c
		}
	}

	if bestScore < r.threshold {
		r.log.Debugw("no candidate above threshold",
			"query", query, "best", best.ID, "score", bestScore, "threshold", r.threshold)
		return Candidate{}, false
	}
	return best, true
}

// score takes the best similarity across the candidate's id (underscores
// read as spaces) and label.
func (r *Resolver) score(query string, c Candidate) float64 {
	names := []string{strings.ReplaceAll(c.ID, "_", " ")}
	if c.Label != "" {
		names = append(names, c.Label)
	}

	best := 0.0
	for _, name := range names {
		if s := tokenSimilarity(query, name); s > best {
			best = s
		}
		if r.useSequence {
			if s := sequenceSimilarity(query, name); s > best {
				best = s
			}
		}
	}
	return best
}

// normalize lowercases, strips punctuation, and drops stop-words.
func normalize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '\t':
			b.WriteRune(r)
		case r == '_', r == '-':
			b.WriteRune(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if _, skip := stopwords[tok]; !skip {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// tokenSimilarity is the Jaccard similarity of the normalized token sets.
func tokenSimilarity(a, b string) float64 {
	setA := tokenSet(normalize(a))
	setB := tokenSet(normalize(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// sequenceSimilarity is 2*LCS/(len(a)+len(b)) over runes, the classic
// difference-ratio measure.
func sequenceSimilarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	if len(ra)+len(rb) == 0 {
		return 0
	}

	// One-row LCS table; inputs are short names, not documents.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
