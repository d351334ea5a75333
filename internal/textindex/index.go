package textindex

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/types"
)

// DocMeta carries the Store-side facts the ranking formula needs
// without a second round-trip to Store: mtime for recency, and whether
// the hit line falls inside a class/function/method block for the
// structural boost.
type DocMeta struct {
	DocID     types.DocID
	RootID    types.RootID
	RelPath   string
	MTime     time.Time
	FileType  string // extension, used for code/doc/config boosts
	InSymbol  bool
	Sampled   bool
}

type posting struct {
	doc   types.DocID
	count int
	// positions within the concatenated path_text+body_text token
	// stream, used for phrase matching.
	positions []int
}

// segment is one generation of the inverted index: immutable once
// published to readers, replaced wholesale on reload.
type segment struct {
	postings map[string][]posting     // token -> postings, sorted by doc
	docs     map[types.DocID]DocMeta  // per-doc metadata
	docLen   map[types.DocID]int      // token count, for bm25-like length normalization
	avgDocLen float64
	version  string // snapshot time, RFC3339Nano
}

func newSegment() *segment {
	return &segment{
		postings: make(map[string][]posting),
		docs:     make(map[types.DocID]DocMeta),
		docLen:   make(map[types.DocID]int),
	}
}

// Index is the mutable, writer-facing side of the TextIndex. Upsert and
// Delete are idempotent and keyed by DocID, per §4.2 contract. Readers
// never see a live mutation: Snapshot() captures a Reader over the
// current generation, and a background task (driven by
// internal/daemon) calls Reload periodically to publish the next one.
type Index struct {
	mu      sync.Mutex
	cur     *segment
	pending *segment // being built; becomes cur on next Reload

	cfg *config.Config
}

// New returns an empty Index.
func New(cfg *config.Config) *Index {
	s := newSegment()
	s.version = time.Now().UTC().Format(time.RFC3339Nano)
	return &Index{cur: s, pending: cloneSegment(s), cfg: cfg}
}

func cloneSegment(s *segment) *segment {
	c := newSegment()
	for k, v := range s.postings {
		cp := make([]posting, len(v))
		copy(cp, v)
		c.postings[k] = cp
	}
	for k, v := range s.docs {
		c.docs[k] = v
	}
	for k, v := range s.docLen {
		c.docLen[k] = v
	}
	c.avgDocLen = s.avgDocLen
	c.version = s.version
	return c
}

// Upsert (re)indexes one document's path_text and body_text. Idempotent:
// calling it twice with the same content yields the same postings.
func (idx *Index) Upsert(meta DocMeta, pathText, bodyText string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.deleteFromPending(meta.DocID)

	tokens := Tokenize(pathText)
	tokens = append(tokens, Tokenize(bodyText)...)

	positions := make(map[string][]int)
	for i, tok := range tokens {
		positions[tok] = append(positions[tok], i)
	}
	for tok, pos := range positions {
		idx.pending.postings[tok] = append(idx.pending.postings[tok], posting{
			doc: meta.DocID, count: len(pos), positions: pos,
		})
	}
	idx.pending.docs[meta.DocID] = meta
	idx.pending.docLen[meta.DocID] = len(tokens)
}

// Delete removes docID from the pending generation. Idempotent.
func (idx *Index) Delete(docID types.DocID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.deleteFromPending(docID)
}

func (idx *Index) deleteFromPending(docID types.DocID) {
	if _, ok := idx.pending.docs[docID]; !ok {
		return
	}
	delete(idx.pending.docs, docID)
	delete(idx.pending.docLen, docID)
	for tok, plist := range idx.pending.postings {
		out := plist[:0]
		for _, p := range plist {
			if p.doc != docID {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			delete(idx.pending.postings, tok)
		} else {
			idx.pending.postings[tok] = out
		}
	}
}

// Reload publishes the pending generation as the new snapshot that
// readers see, and starts a fresh pending generation cloned from it.
// Called on a timer (default reader_reload_ms) by internal/daemon.
func (idx *Index) Reload() string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var total, n int
	for _, l := range idx.pending.docLen {
		total += l
		n++
	}
	avg := 0.0
	if n > 0 {
		avg = float64(total) / float64(n)
	}
	idx.pending.avgDocLen = avg
	idx.pending.version = time.Now().UTC().Format(time.RFC3339Nano)

	idx.cur = idx.pending
	idx.pending = cloneSegment(idx.cur)
	return idx.cur.version
}

// Snapshot returns a Reader bound to the current published generation.
// Writes made after this call are invisible to the Reader until the
// next Reload.
func (idx *Index) Snapshot() *Reader {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return &Reader{seg: idx.cur}
}

// Reader is a point-in-time, read-only view of the index.
type Reader struct {
	seg *segment
}

// IndexVersion is the snapshot time returned in Search responses.
func (r *Reader) IndexVersion() string { return r.seg.version }

// DocMeta returns the metadata recorded for docID in this snapshot, for
// callers (the Search Engine) that need to apply repo/path/file_type
// filters without a second round-trip to Store.
func (r *Reader) DocMeta(docID types.DocID) (DocMeta, bool) {
	m, ok := r.seg.docs[docID]
	return m, ok
}

// DocCount returns the number of documents in this snapshot.
func (r *Reader) DocCount() int { return len(r.seg.docs) }

// AllDocs returns every document's metadata in this snapshot, for
// callers (the Search Engine's fuzzy fallback) that need to scan paths
// directly rather than through the inverted index.
func (r *Reader) AllDocs() []DocMeta {
	out := make([]DocMeta, 0, len(r.seg.docs))
	for _, m := range r.seg.docs {
		out = append(out, m)
	}
	return out
}

// Hit is one scored match before Store-side filters are applied.
type Hit struct {
	DocID      types.DocID
	Score      float64
	MatchCount int
}

// Query runs terms (AND across terms, phrase terms matched by adjacent
// positions) and returns the top-k hits ordered by
// (score desc, mtime desc, path asc), per §4.2 contract.
func (r *Reader) Query(terms []QueryTerm, weights Weights, k int) []Hit {
	if len(terms) == 0 {
		return nil
	}

	candidates := r.candidateDocs(terms)
	hits := make([]Hit, 0, len(candidates))
	for doc := range candidates {
		matchCount := r.countMatches(doc, terms)
		if matchCount == 0 {
			continue
		}
		score := r.score(doc, terms, weights)
		hits = append(hits, Hit{DocID: doc, Score: score, MatchCount: matchCount})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		mi, mj := r.seg.docs[hits[i].DocID].MTime, r.seg.docs[hits[j].DocID].MTime
		if !mi.Equal(mj) {
			return mi.After(mj)
		}
		return hits[i].DocID < hits[j].DocID
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// candidateDocs intersects the postings of every AND term (the first
// token of a phrase stands in as the candidate filter; exact phrase
// adjacency is verified in countMatches).
func (r *Reader) candidateDocs(terms []QueryTerm) map[types.DocID]bool {
	var sets []map[types.DocID]bool
	for _, t := range terms {
		if len(t.Tokens) == 0 {
			continue
		}
		set := make(map[types.DocID]bool)
		for _, p := range r.seg.postings[t.Tokens[0]] {
			set[p.doc] = true
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return nil
	}
	result := sets[0]
	for _, s := range sets[1:] {
		next := make(map[types.DocID]bool)
		for doc := range result {
			if s[doc] {
				next[doc] = true
			}
		}
		result = next
	}
	return result
}

func (r *Reader) countMatches(doc types.DocID, terms []QueryTerm) int {
	total := 0
	for _, t := range terms {
		if !t.Phrase {
			for _, p := range r.seg.postings[t.Tokens[0]] {
				if p.doc == doc {
					total += p.count
				}
			}
			continue
		}
		if r.hasPhrase(doc, t.Tokens) {
			total++
		} else {
			return 0 // phrase required, not present: doc is not a match
		}
	}
	return total
}

func (r *Reader) hasPhrase(doc types.DocID, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	firstPositions := positionsFor(r.seg, tokens[0], doc)
	for _, start := range firstPositions {
		ok := true
		for i := 1; i < len(tokens); i++ {
			if !containsPosition(positionsFor(r.seg, tokens[i], doc), start+i) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func positionsFor(seg *segment, token string, doc types.DocID) []int {
	for _, p := range seg.postings[token] {
		if p.doc == doc {
			return p.positions
		}
	}
	return nil
}

func containsPosition(positions []int, pos int) bool {
	for _, p := range positions {
		if p == pos {
			return true
		}
	}
	return false
}

// Weights are the configurable ranking parameters of §4.2.
type Weights = config.RankWeights

// score computes bm25_like * recency_factor * structural_boost *
// exact_token_bonus, per §4.2 "Ranking".
func (r *Reader) score(doc types.DocID, terms []QueryTerm, w Weights) float64 {
	meta := r.seg.docs[doc]
	docLen := float64(r.seg.docLen[doc])
	avgLen := r.seg.avgDocLen
	if avgLen == 0 {
		avgLen = 1
	}

	const k1, b = 1.2, 0.75
	bm25 := 0.0
	for _, t := range terms {
		if len(t.Tokens) == 0 {
			continue
		}
		tf := 0.0
		for _, p := range r.seg.postings[t.Tokens[0]] {
			if p.doc == doc {
				tf = float64(p.count)
			}
		}
		if tf == 0 {
			continue
		}
		df := float64(len(r.seg.postings[t.Tokens[0]]))
		n := float64(len(r.seg.docs))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		norm := tf * (k1 + 1) / (tf + k1*(1-b+b*docLen/avgLen))
		bm25 += idf * norm
	}

	recency := recencyFactor(meta.MTime, w.RecencyHalfLifeDays)

	structural := 1.0
	if meta.InSymbol {
		structural = w.StructuralBoost
	}

	exactBonus := 1.0
	for _, t := range terms {
		if len(t.Tokens) == 1 {
			exactBonus += w.ExactTokenBonus * 0.1
		}
	}

	typeAdj := fileTypeAdjustment(meta.FileType, w)

	return bm25 * recency * structural * exactBonus * typeAdj
}

func recencyFactor(mtime time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1.0
	}
	age := time.Since(mtime).Hours() / 24
	return math.Pow(0.5, age/halfLifeDays)
}

var codeExts = map[string]bool{".go": true, ".ts": true, ".py": true, ".rs": true, ".zig": true, ".js": true, ".java": true, ".c": true, ".cpp": true}
var docExts = map[string]bool{".md": true, ".txt": true, ".rst": true}
var configExts = map[string]bool{".json": true, ".yaml": true, ".yml": true, ".toml": true, ".kdl": true}

func fileTypeAdjustment(ext string, w Weights) float64 {
	base := 1.0
	switch {
	case codeExts[ext]:
		base += w.CodeFileBoost / 100
	case docExts[ext]:
		base += w.DocFilePenalty / 100
	case configExts[ext]:
		base += w.ConfigFileBoost / 100
	}
	if base < 0.01 {
		base = 0.01
	}
	return base
}
