package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Entry is one cached embedding: the tool it was computed for, the content
// hash it was computed from, and the resulting vector (spec.md §4.5
// "Embedding Entry").
type Entry struct {
	ToolName    string
	ContentHash string
	Vector      []float32
}

// Match is one nearest-neighbour result.
type Match struct {
	ToolName string
	Score    float64
}

// Snapshot is the immutable, read-only view of the index handed to a single
// discovery call (spec.md §4.9 "Shared snapshots instead of locked maps").
type Snapshot struct {
	entries map[string]Entry
	order   []string
}

// Lookup returns the cached vector for toolName, if any.
func (s *Snapshot) Lookup(toolName string) (Entry, bool) {
	e, ok := s.entries[toolName]
	return e, ok
}

// Nearest returns the k tools whose cached vectors are most cosine-similar
// to query, highest score first.
func (s *Snapshot) Nearest(query []float32, k int) []Match {
	matches := make([]Match, 0, len(s.order))
	for _, name := range s.order {
		entry := s.entries[name]
		matches = append(matches, Match{ToolName: name, Score: cosineSimilarity(query, entry.Vector)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ToolName < matches[j].ToolName
	})
	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ToolSource is the minimal surface of a capabilities.ToolDefinition the
// index needs to compute a content hash and an embeddable text, without
// importing internal/capabilities (avoids a package cycle; router and
// discovery both sit above capabilities and embedding).
type ToolSource struct {
	Name          string
	Description   string
	SchemaSummary string
}

// ContentHash computes the SHA-256 over name + description + schema summary
// (spec.md §4.5 "H = SHA-256(canonical(name + \"\\n\" + description + \"\\n\"
// + schema-summary))").
func ContentHash(t ToolSource) string {
	sum := sha256.Sum256([]byte(t.Name + "\n" + t.Description + "\n" + t.SchemaSummary))
	return hex.EncodeToString(sum[:])
}

func embeddableText(t ToolSource) string {
	return t.Name + " " + t.Description + " " + t.SchemaSummary
}

// Index is the reload-swapped, content-addressed embedding cache. It is
// safe for concurrent use: Current returns the latest published Snapshot,
// Reload computes a new one.
type Index struct {
	provider Provider
	current  atomic.Pointer[Snapshot]
	cache    map[string]Entry // toolName -> last known entry, across reloads

	// reloadGroup collapses overlapping Reload calls into one computation,
	// the way muster's oauth client collapses overlapping metadata fetches
	// with a singleflight.Group: two capability-directory watcher callbacks
	// can run at the same time (a debounced callback can fire while the
	// previous one is still reloading), and there is no reason to pay for
	// the provider call twice.
	reloadGroup singleflight.Group
}

func New(provider Provider) *Index {
	idx := &Index{provider: provider, cache: map[string]Entry{}}
	idx.current.Store(&Snapshot{entries: map[string]Entry{}})
	return idx
}

// Current returns the most recently published snapshot.
func (idx *Index) Current() *Snapshot {
	return idx.current.Load()
}

// Reload recomputes the index for tools, reusing cached vectors whose
// content hash is unchanged and calling the provider only for the rest.
// Entries whose tool no longer appears in tools are dropped (lazy pruning).
// Concurrent Reload calls collapse onto whichever is already in flight; the
// caller that lands second gets the first caller's result rather than
// triggering a second provider round-trip.
func (idx *Index) Reload(ctx context.Context, tools []ToolSource) error {
	_, err, _ := idx.reloadGroup.Do("reload", func() (interface{}, error) {
		return nil, idx.reload(ctx, tools)
	})
	return err
}

func (idx *Index) reload(ctx context.Context, tools []ToolSource) error {
	next := make(map[string]Entry, len(tools))
	var missingNames []string
	var missingTexts []string

	for _, t := range tools {
		hash := ContentHash(t)
		if cached, ok := idx.cache[t.Name]; ok && cached.ContentHash == hash {
			next[t.Name] = cached
			continue
		}
		missingNames = append(missingNames, t.Name)
		missingTexts = append(missingTexts, embeddableText(t))
	}

	if len(missingTexts) > 0 {
		vectors, err := idx.provider.Embed(ctx, missingTexts)
		if err != nil {
			return fmt.Errorf("embedding %d tool(s): %w", len(missingTexts), err)
		}
		if len(vectors) != len(missingNames) {
			return fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vectors), len(missingNames))
		}
		toolByName := make(map[string]ToolSource, len(tools))
		for _, t := range tools {
			toolByName[t.Name] = t
		}
		for i, name := range missingNames {
			next[name] = Entry{
				ToolName:    name,
				ContentHash: ContentHash(toolByName[name]),
				Vector:      vectors[i],
			}
		}
	}

	order := make([]string, 0, len(next))
	for name := range next {
		order = append(order, name)
	}
	sort.Strings(order)

	idx.cache = next
	idx.current.Store(&Snapshot{entries: next, order: order})
	return nil
}
