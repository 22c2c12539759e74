package discovery

import (
	"context"
	"strings"

	"github.com/giantswarm/magictunnel/internal/capabilities"
	"github.com/giantswarm/magictunnel/internal/embedding"
)

// scoredTool carries one tool definition plus its per-ranker raw scores,
// before normalisation and fusion.
type scoredTool struct {
	def      capabilities.ToolDefinition
	lexical  float64
	semantic float64
	keyword  float64
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

// lexicalScore is a token-set overlap score (BM25-like in spirit: term
// overlap between the request and name+description, with a slight premium
// on name matches) over [0, 1.5*len(requestTokens)].
func lexicalScore(requestTokens []string, def capabilities.ToolDefinition) float64 {
	nameTokens := tokenSet(tokenize(def.Name))
	descTokens := tokenSet(tokenize(def.Description))

	var score float64
	for _, tok := range requestTokens {
		if nameTokens[tok] {
			score += 1.5
		} else if descTokens[tok] {
			score += 1.0
		}
	}
	return score
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// keywordBoostScore counts explicit hits against a tool's declared tags
// (annotations["tags"]) or its routing URL, for routing types that carry
// one (spec.md §4.6 "explicit matches to terms listed in a tool's tags or
// routing url").
func keywordBoostScore(requestTokens []string, def capabilities.ToolDefinition) float64 {
	terms := tokenSet(tagTerms(def))
	if def.Routing.HTTP != nil {
		for _, tok := range tokenize(def.Routing.HTTP.URLTemplate) {
			terms[tok] = true
		}
	}

	var score float64
	for _, tok := range requestTokens {
		if terms[tok] {
			score++
		}
	}
	return score
}

func tagTerms(def capabilities.ToolDefinition) []string {
	raw, ok := def.Annotations["tags"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		terms := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				terms = append(terms, strings.ToLower(s))
			}
		}
		return terms
	case string:
		return tokenize(v)
	default:
		return nil
	}
}

// normalize min-max scales scores into [0, 1]; a ranker with no spread
// (all equal, including all zero) maps every score to 0.
func normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// Weights are the fusion weights for the three rankers (spec.md §4.6
// "combined with configured weights (defaults: 0.2 / 0.6 / 0.2)").
type Weights struct {
	Lexical  float64
	Semantic float64
	Keyword  float64
}

// rankCandidates fuses the three rankers over tools and returns them sorted
// by combined score, descending.
func rankCandidates(ctx context.Context, tools []capabilities.ToolDefinition, requestText string, embeddingIndex *embedding.Index, provider embedding.Provider, weights Weights) ([]scoredTool, error) {
	requestTokens := tokenize(requestText)

	scored := make([]scoredTool, len(tools))
	lexical := make([]float64, len(tools))
	keyword := make([]float64, len(tools))

	for i, def := range tools {
		scored[i].def = def
		lexical[i] = lexicalScore(requestTokens, def)
		keyword[i] = keywordBoostScore(requestTokens, def)
	}

	semantic, err := semanticScores(ctx, tools, requestText, embeddingIndex, provider)
	if err != nil {
		return nil, err
	}

	normLexical := normalize(lexical)
	normSemantic := normalize(semantic)
	normKeyword := normalize(keyword)

	for i := range scored {
		scored[i].lexical = normLexical[i]
		scored[i].semantic = normSemantic[i]
		scored[i].keyword = normKeyword[i]
	}

	sortScoredDescending(scored, weights)
	return scored, nil
}

func combinedScore(s scoredTool, w Weights) float64 {
	return s.lexical*w.Lexical + s.semantic*w.Semantic + s.keyword*w.Keyword
}

func sortScoredDescending(scored []scoredTool, w Weights) {
	// Simple insertion sort: candidate lists are bounded by registry size,
	// which spec.md caps at ~5000 and discovery only ever needs the top N.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && combinedScore(scored[j], w) > combinedScore(scored[j-1], w); j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
}

func semanticScores(ctx context.Context, tools []capabilities.ToolDefinition, requestText string, idx *embedding.Index, provider embedding.Provider) ([]float64, error) {
	if idx == nil || provider == nil {
		return make([]float64, len(tools)), nil
	}
	queryVectors, err := provider.Embed(ctx, []string{requestText})
	if err != nil {
		return nil, &EmbeddingServiceError{Cause: err}
	}
	if len(queryVectors) == 0 {
		return nil, &EmbeddingServiceError{Cause: err}
	}
	query := queryVectors[0]

	snap := idx.Current()
	byName := make(map[string]float64, len(tools))
	for _, match := range snap.Nearest(query, 0) {
		byName[match.ToolName] = match.Score
	}

	scores := make([]float64, len(tools))
	for i, def := range tools {
		scores[i] = byName[def.Name]
	}
	return scores, nil
}
