package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/user/listing-aggregator/internal/entity"
)

var (
	suspiciousKeywords = []string{"급매", "파격", "선입금", "무료나눔", "공짜"}
	safetyTips         = []string{"판매자 프로필을 확인하세요", "직거래를 권장합니다", "선입금은 피하세요"}

	categoryRules = []struct {
		pattern *regexp.Regexp
		result  entity.CategoryClassification
	}{
		{
			pattern: regexp.MustCompile(`아이폰|갤럭시|스마트폰|폰|핸드폰`),
			result:  entity.CategoryClassification{Category: "전자기기", Confidence: 0.7, SubCategories: []string{"스마트폰"}, Reasoning: "스마트폰 관련 키워드가 포함되어 있습니다"},
		},
		{
			pattern: regexp.MustCompile(`노트북|맥북|컴퓨터|pc`),
			result:  entity.CategoryClassification{Category: "전자기기", Confidence: 0.7, SubCategories: []string{"노트북/PC"}, Reasoning: "컴퓨터 관련 키워드가 포함되어 있습니다"},
		},
		{
			pattern: regexp.MustCompile(`의류|옷|티셔츠|바지|원피스`),
			result:  entity.CategoryClassification{Category: "의류/패션", Confidence: 0.6, SubCategories: []string{"의류"}, Reasoning: "의류 관련 키워드가 포함되어 있습니다"},
		},
	}
)

const (
	lowPriceThreshold     = 10000
	shortDescriptionRunes = 20
	suspiciousRiskScore   = 30
	keywordRisk           = 15
	lowPriceRisk          = 20
	shortDescriptionRisk  = 10
)

// analyzeTopListing runs the price, fraud and category analyses for the best result.
func (e *rankingEngine) analyzeTopListing(ctx context.Context, top entity.Listing, corpus []entity.Listing) *entity.TopListingAnalysis {
	return &entity.TopListingAnalysis{
		PricePrediction:        e.predictPrice(ctx, top, corpus),
		FraudDetection:         e.detectFraud(ctx, top),
		CategoryClassification: e.classifyCategory(ctx, top),
	}
}

type pricePredictionReply struct {
	PredictedPrice float64 `json:"predictedPrice"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

func (e *rankingEngine) predictPrice(ctx context.Context, target entity.Listing, corpus []entity.Listing) entity.PricePrediction {
	similar := make([]entity.Listing, 0, len(corpus))
	for _, l := range corpus {
		if l.ID != target.ID && l.Price > 0 {
			similar = append(similar, l)
		}
	}
	if e.completer == nil || len(similar) == 0 {
		return rulePricePrediction(target, similar)
	}

	stats := pricedStats(similar)
	prompt := fmt.Sprintf(`중고거래 상품의 적정 가격을 예측해주세요.

분석할 상품:
- 제목: %s
- 설명: %s
- 현재 가격: %d원

유사 상품 가격 정보:
- 평균 가격: %s원
- 최저 가격: %s원
- 최고 가격: %s원
- 유사 상품 수: %d개

다음 JSON 형식으로 응답하세요:
{"predictedPrice": 숫자, "confidence": 0~1 사이 숫자, "reasoning": "이유 설명"}`,
		target.Title, target.Description, target.Price,
		formatWon(stats.average), formatWon(stats.min), formatWon(stats.max), len(similar))

	content, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("Price prediction failed, using rules", "listing_id", target.ID, "error", err)
		return rulePricePrediction(target, similar)
	}
	res := parseJSONObject[pricePredictionReply](content)
	if !res.ok || res.value.PredictedPrice <= 0 || res.value.Confidence < 0 || res.value.Confidence > 1 {
		slog.Warn("Price prediction unusable, using rules", "listing_id", target.ID, "reason", res.reason)
		return rulePricePrediction(target, similar)
	}

	return entity.PricePrediction{
		PredictedPrice: int64(math.Round(res.value.PredictedPrice)),
		Confidence:     res.value.Confidence,
		PriceRange: entity.IntRange{
			Min: int64(math.Round(float64(stats.min) * 0.9)),
			Max: int64(math.Round(float64(stats.max) * 1.1)),
		},
		Reasoning: res.value.Reasoning,
	}
}

func rulePricePrediction(target entity.Listing, similar []entity.Listing) entity.PricePrediction {
	if len(similar) == 0 {
		price := float64(target.Price)
		return entity.PricePrediction{
			PredictedPrice: target.Price,
			Confidence:     0.3,
			PriceRange:     entity.IntRange{Min: int64(math.Round(price * 0.8)), Max: int64(math.Round(price * 1.2))},
			Reasoning:      "유사 상품이 없어 현재 가격 기준으로 예측했습니다.",
		}
	}

	var sum float64
	for _, l := range similar {
		sum += float64(l.Price)
	}
	avg := sum / float64(len(similar))
	return entity.PricePrediction{
		PredictedPrice: int64(math.Round(avg)),
		Confidence:     0.6,
		PriceRange:     entity.IntRange{Min: int64(math.Round(avg * 0.85)), Max: int64(math.Round(avg * 1.15))},
		Reasoning:      fmt.Sprintf("%d개 유사 상품의 평균 가격을 기준으로 예측했습니다.", len(similar)),
	}
}

type fraudReply struct {
	IsSuspicious    bool     `json:"isSuspicious"`
	RiskScore       float64  `json:"riskScore"`
	RedFlags        []string `json:"redFlags"`
	Recommendations []string `json:"recommendations"`
}

func (e *rankingEngine) detectFraud(ctx context.Context, l entity.Listing) entity.FraudDetection {
	if e.completer == nil {
		return ruleFraudDetection(l)
	}

	prompt := fmt.Sprintf(`중고거래 상품의 사기 가능성을 분석해주세요.

상품 정보:
- 제목: %s
- 설명: %s
- 가격: %d원
- 지역: %s

분석 기준:
1. 지나치게 저렴한 가격
2. 의심스러운 키워드 (급매, 파격, 선입금 등)
3. 모호하거나 부족한 설명
4. 비현실적인 조건

다음 JSON 형식으로 응답하세요:
{"isSuspicious": true/false, "riskScore": 0~100 숫자, "redFlags": ["위험 요소"], "recommendations": ["권장사항"]}`,
		l.Title, l.Description, l.Price, l.Location)

	content, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("Fraud detection failed, using rules", "listing_id", l.ID, "error", err)
		return ruleFraudDetection(l)
	}
	res := parseJSONObject[fraudReply](content)
	if !res.ok {
		slog.Warn("Fraud detection unparseable, using rules", "listing_id", l.ID, "reason", res.reason)
		return ruleFraudDetection(l)
	}

	out := entity.FraudDetection{
		IsSuspicious:    res.value.IsSuspicious,
		RiskScore:       int(math.Round(max(0, min(res.value.RiskScore, 100)))),
		RedFlags:        res.value.RedFlags,
		Recommendations: res.value.Recommendations,
	}
	if out.RedFlags == nil {
		out.RedFlags = []string{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return out
}

func ruleFraudDetection(l entity.Listing) entity.FraudDetection {
	text := strings.ToLower(l.Title + " " + l.Description)
	flags := []string{}
	risk := 0

	for _, kw := range suspiciousKeywords {
		if strings.Contains(text, kw) {
			flags = append(flags, fmt.Sprintf("의심스러운 키워드 포함: %q", kw))
			risk += keywordRisk
		}
	}
	if l.Price > 0 && l.Price < lowPriceThreshold {
		flags = append(flags, "가격이 지나치게 저렴합니다")
		risk += lowPriceRisk
	}
	if utf8.RuneCountInString(l.Description) < shortDescriptionRunes {
		flags = append(flags, "상품 설명이 부족합니다")
		risk += shortDescriptionRisk
	}

	return entity.FraudDetection{
		IsSuspicious:    risk >= suspiciousRiskScore,
		RiskScore:       min(risk, 100),
		RedFlags:        flags,
		Recommendations: append([]string(nil), safetyTips...),
	}
}

type categoryReply struct {
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
	SubCategories []string `json:"subCategories"`
	Reasoning     string   `json:"reasoning"`
}

func (e *rankingEngine) classifyCategory(ctx context.Context, l entity.Listing) entity.CategoryClassification {
	if e.completer == nil {
		return ruleCategory(l)
	}

	prompt := fmt.Sprintf(`중고거래 상품을 카테고리로 분류해주세요.

상품 정보:
- 제목: %s
- 설명: %s

가능한 카테고리:
- 전자기기 (스마트폰, 노트북, 태블릿 등)
- 가구/인테리어
- 의류/패션
- 도서/문구
- 생활용품
- 스포츠/레저
- 기타

다음 JSON 형식으로 응답하세요:
{"category": "메인 카테고리", "confidence": 0~1 사이 숫자, "subCategories": ["세부 카테고리"], "reasoning": "분류 이유"}`,
		l.Title, l.Description)

	content, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("Category classification failed, using rules", "listing_id", l.ID, "error", err)
		return ruleCategory(l)
	}
	res := parseJSONObject[categoryReply](content)
	if !res.ok || strings.TrimSpace(res.value.Category) == "" {
		slog.Warn("Category classification unusable, using rules", "listing_id", l.ID, "reason", res.reason)
		return ruleCategory(l)
	}

	subs := res.value.SubCategories
	if subs == nil {
		subs = []string{}
	}
	return entity.CategoryClassification{
		Category:      strings.TrimSpace(res.value.Category),
		Confidence:    max(0, min(res.value.Confidence, 1)),
		SubCategories: subs,
		Reasoning:     res.value.Reasoning,
	}
}

func ruleCategory(l entity.Listing) entity.CategoryClassification {
	text := strings.ToLower(l.Title + " " + l.Description)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			c := rule.result
			c.SubCategories = append([]string(nil), rule.result.SubCategories...)
			return c
		}
	}
	return entity.CategoryClassification{
		Category:      "기타",
		Confidence:    0.5,
		SubCategories: []string{},
		Reasoning:     "명확한 카테고리를 찾을 수 없습니다",
	}
}
