package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/pkg/utils"
)

const (
	topLocations       = 5
	topTrendingItems   = 5
	suggestedLocations = 3
)

var wonPrinter = message.NewPrinter(language.Korean)

// formatWon renders an amount with thousands separators.
func formatWon(n int64) string {
	return wonPrinter.Sprintf("%d", n)
}

type priceStats struct {
	count   int
	average int64
	min     int64
	max     int64
}

// pricedStats summarises prices above zero. count is 0 when nothing is priced.
func pricedStats(listings []entity.Listing) priceStats {
	var st priceStats
	var sum float64
	for _, l := range listings {
		if l.Price <= 0 {
			continue
		}
		if st.count == 0 || l.Price < st.min {
			st.min = l.Price
		}
		if l.Price > st.max {
			st.max = l.Price
		}
		sum += float64(l.Price)
		st.count++
	}
	if st.count > 0 {
		st.average = int64(math.Round(sum / float64(st.count)))
	}
	return st
}

func (e *rankingEngine) marketInsights(ctx context.Context, query string, listings []entity.Listing) entity.MarketInsights {
	prices := pricedStats(listings)

	locations := utils.NewCounter()
	trending := utils.NewCounter()
	for _, l := range listings {
		if l.Location != "" {
			locations.Add(l.Location)
		}
		for _, tok := range utils.TitleTokens(l.Title) {
			trending.Add(tok)
		}
	}

	insights := entity.MarketInsights{
		AveragePrice:        prices.average,
		PriceRange:          entity.IntRange{Min: prices.min, Max: prices.max},
		MostCommonLocations: locations.Top(topLocations),
		TrendingItems:       trending.Top(topTrendingItems),
		Summary:             fmt.Sprintf(`"%s" 검색 결과 분석`, query),
	}

	if e.completer != nil {
		prompt := fmt.Sprintf(`다음은 "%s" 검색 결과입니다:
- 총 %d개 상품
- 평균 가격: %s원
- 가격 범위: %s원 ~ %s원
- 주요 지역: %s

이 시장 상황을 한 문장으로 요약해주세요.`,
			query, len(listings), formatWon(prices.average), formatWon(prices.min), formatWon(prices.max),
			strings.Join(insights.MostCommonLocations, ", "))

		summary, err := e.completer.Complete(ctx, prompt)
		if err != nil {
			slog.Warn("Failed to generate market summary, using template", "query", query, "error", err)
		} else if s := strings.TrimSpace(summary); s != "" {
			insights.Summary = s
		}
	}
	return insights
}

func suggestFilters(insights entity.MarketInsights) entity.SuggestedFilters {
	var filters entity.SuggestedFilters
	if insights.AveragePrice > 0 {
		avg := float64(insights.AveragePrice)
		filters.PriceRange = &entity.IntRange{
			Min: int64(math.Round(avg * 0.7)),
			Max: int64(math.Round(avg * 1.3)),
		}
	}
	if n := len(insights.MostCommonLocations); n > 0 {
		filters.Locations = insights.MostCommonLocations[:min(n, suggestedLocations)]
	}
	return filters
}

// relatedKeywords asks the completion backend to expand the query.
// Any failure yields the query alone.
func (e *rankingEngine) relatedKeywords(ctx context.Context, query string) []string {
	fallback := []string{query}
	if e.completer == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`다음 검색어에서 핵심 키워드를 추출하세요. 유사어나 관련어도 포함하세요.
검색어: "%s"

JSON 형식으로 응답: ["키워드1", "키워드2", "키워드3"]`, query)

	content, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("Keyword expansion failed, using query", "query", query, "error", err)
		return fallback
	}
	res := parseKeywordArray(content)
	if !res.ok {
		slog.Warn("Keyword expansion unparseable, using query", "query", query, "reason", res.reason)
		return fallback
	}
	return res.value
}
