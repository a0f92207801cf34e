package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
	"github.com/user/listing-aggregator/pkg/utils"
)

const (
	embeddingConcurrency = 5
	similarityThreshold  = 0.7
	maxMemoEntries       = 5000
)

var errNoEmbeddings = errors.New("no listing could be embedded")

// vectorIndex embeds text through the backend and memoizes vectors by text.
type vectorIndex struct {
	embedder repository.Embedder

	mu   sync.Mutex
	memo map[string][]float64
}

func newVectorIndex(embedder repository.Embedder) *vectorIndex {
	return &vectorIndex{embedder: embedder, memo: make(map[string][]float64)}
}

func (v *vectorIndex) embed(ctx context.Context, text string) ([]float64, error) {
	v.mu.Lock()
	vec, ok := v.memo[text]
	v.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if len(v.memo) >= maxMemoEntries {
		v.memo = make(map[string][]float64)
	}
	v.memo[text] = vec
	v.mu.Unlock()
	return vec, nil
}

// embedListings embeds each listing with at most five calls in flight.
// Listings whose embedding fails come back as nil.
func (v *vectorIndex) embedListings(ctx context.Context, listings []entity.Listing) [][]float64 {
	vectors := make([][]float64, len(listings))

	var g errgroup.Group
	g.SetLimit(embeddingConcurrency)
	for i := range listings {
		i := i
		g.Go(func() error {
			vec, err := v.embed(ctx, listingText(listings[i]))
			if err != nil {
				slog.Warn("Failed to embed listing, excluding it", "listing_id", listings[i].ID, "error", err)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	return vectors
}

type scoredListing struct {
	listing    entity.Listing
	similarity float64
}

// searchByVector ranks listings by cosine similarity to the query, best first, up to topK.
func (v *vectorIndex) searchByVector(ctx context.Context, query string, listings []entity.Listing, topK int) ([]scoredListing, error) {
	queryVec, err := v.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors := v.embedListings(ctx, listings)
	scored := make([]scoredListing, 0, len(listings))
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		scored = append(scored, scoredListing{listing: listings[i], similarity: utils.CosineSimilarity(queryVec, vec)})
	}
	if len(listings) > 0 && len(scored) == 0 {
		return nil, errNoEmbeddings
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].similarity > scored[j].similarity })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// rankByVector scores the best maxResults*2 candidates by similarity and keeps maxResults.
func (v *vectorIndex) rankByVector(ctx context.Context, scorer keywordScorer, listings []entity.Listing, maxResults int) ([]entity.RankedResult, error) {
	pool, err := v.searchByVector(ctx, scorer.query, listings, maxResults*2)
	if err != nil {
		return nil, err
	}

	results := make([]entity.RankedResult, 0, len(pool))
	for _, s := range pool {
		score := clampScore(s.similarity * 100)
		reasons := append([]string{fmt.Sprintf("벡터 유사도: %.1f점", score)}, scorer.Reasons(s.listing)...)
		results = append(results, entity.RankedResult{
			Listing:         s.listing,
			Score:           score,
			Reasons:         reasons,
			MatchedKeywords: scorer.MatchedKeywords(s.listing),
		})
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// similar returns candidates whose similarity to target exceeds 0.7, best first.
func (v *vectorIndex) similar(ctx context.Context, target entity.Listing, candidates []entity.Listing, topK int) ([]entity.SimilarListing, error) {
	targetVec, err := v.embed(ctx, listingText(target))
	if err != nil {
		return nil, fmt.Errorf("embed target: %w", err)
	}

	others := make([]entity.Listing, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != target.ID {
			others = append(others, c)
		}
	}

	vectors := v.embedListings(ctx, others)
	out := make([]entity.SimilarListing, 0)
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		sim := utils.CosineSimilarity(targetVec, vec)
		if sim <= similarityThreshold {
			continue
		}
		out = append(out, entity.SimilarListing{Listing: others[i], Similarity: sim, Reason: similarityReason(sim)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func similarityReason(sim float64) string {
	switch {
	case sim >= 0.9:
		return "거의 동일한 상품입니다"
	case sim >= 0.8:
		return "매우 유사한 상품입니다"
	default:
		return "비슷한 상품입니다"
	}
}

func clampScore(s float64) float64 {
	return max(0, min(s, maxScore))
}
