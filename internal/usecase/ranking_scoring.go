package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
)

const (
	scoreTitleQuery     = 50
	scoreTitleKeyword   = 10
	scoreDescQuery      = 20
	scoreDescKeyword    = 5
	scoreAvailable      = 10
	scoreRecent         = 15
	maxScore            = 100
	minRecommendedScore = 30
	recentWindow        = 24 * time.Hour
)

// keywordScorer holds the lower-cased query and the keywords that earn a bonus.
// Keywords equal to the query are not counted again.
type keywordScorer struct {
	query    string
	keywords []string
	bonus    []string
	now      time.Time
}

func newKeywordScorer(query string, keywords []string, now time.Time) keywordScorer {
	q := strings.ToLower(strings.TrimSpace(query))
	bonus := make([]string, 0, len(keywords))
	for _, k := range keywords {
		lk := strings.ToLower(strings.TrimSpace(k))
		if lk == "" || lk == q {
			continue
		}
		bonus = append(bonus, lk)
	}
	return keywordScorer{query: q, keywords: keywords, bonus: bonus, now: now}
}

// Score computes the deterministic relevance of one listing, capped at 100.
func (s keywordScorer) Score(l entity.Listing) float64 {
	title := strings.ToLower(l.Title)
	desc := strings.ToLower(l.Description)

	score := 0
	if s.query != "" && strings.Contains(title, s.query) {
		score += scoreTitleQuery
	}
	for _, k := range s.bonus {
		if strings.Contains(title, k) {
			score += scoreTitleKeyword
		}
	}
	if s.query != "" && strings.Contains(desc, s.query) {
		score += scoreDescQuery
	}
	for _, k := range s.bonus {
		if strings.Contains(desc, k) {
			score += scoreDescKeyword
		}
	}
	if l.Status == entity.StatusAvailable {
		score += scoreAvailable
	}
	if s.isRecent(l) {
		score += scoreRecent
	}
	return float64(min(score, maxScore))
}

func (s keywordScorer) isRecent(l entity.Listing) bool {
	return !l.CreatedAt.IsZero() && s.now.Sub(l.CreatedAt) < recentWindow
}

// MatchedKeywords returns the keywords found in title or description, in keyword order.
func (s keywordScorer) MatchedKeywords(l entity.Listing) []string {
	text := strings.ToLower(l.Title + " " + l.Description)
	matched := []string{}
	for _, k := range s.keywords {
		lk := strings.ToLower(strings.TrimSpace(k))
		if lk != "" && strings.Contains(text, lk) {
			matched = append(matched, k)
		}
	}
	return matched
}

// Reasons explains a score in user-facing Korean sentences.
func (s keywordScorer) Reasons(l entity.Listing) []string {
	reasons := []string{}
	if s.query != "" && strings.Contains(strings.ToLower(l.Title), s.query) {
		reasons = append(reasons, "제목이 검색어와 정확히 일치합니다")
	}
	if matched := s.MatchedKeywords(l); len(matched) > 0 {
		if len(matched) > 3 {
			matched = matched[:3]
		}
		reasons = append(reasons, "관련 키워드 포함: "+strings.Join(matched, ", "))
	}
	if l.Status == entity.StatusAvailable {
		reasons = append(reasons, "현재 판매 중인 상품입니다")
	}
	if s.isRecent(l) {
		reasons = append(reasons, "최근 등록된 상품입니다")
	}
	return reasons
}

// rankDeterministic keeps listings scoring above the threshold, best first.
func rankDeterministic(scorer keywordScorer, listings []entity.Listing, maxResults int) []entity.RankedResult {
	results := make([]entity.RankedResult, 0)
	for _, l := range listings {
		score := scorer.Score(l)
		if score <= minRecommendedScore {
			continue
		}
		results = append(results, entity.RankedResult{
			Listing:         l,
			Score:           score,
			Reasons:         scorer.Reasons(l),
			MatchedKeywords: scorer.MatchedKeywords(l),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// listingText is the composite text embedded for a listing. Empty title or
// description parts are left out.
func listingText(l entity.Listing) string {
	parts := make([]string, 0, 4)
	if l.Title != "" {
		parts = append(parts, l.Title)
	}
	if l.Description != "" {
		parts = append(parts, l.Description)
	}
	parts = append(parts, fmt.Sprintf("가격: %d원", l.Price))
	if l.Location != "" {
		parts = append(parts, "지역: "+l.Location)
	}
	return strings.Join(parts, " | ")
}
