// Package sheet appends one row per analysed product to a tabular store.
package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// Column keys in sheet order. The order is fixed.
const (
	ColCollectedAt     = "collected_at"
	ColSourceURL       = "source_url"
	ColProductName     = "product_name"
	ColBrand           = "brand"
	ColPriceCAD        = "price_cad"
	ColCategory        = "category"
	ColIngredients     = "ingredients"
	ColRating          = "rating"
	ColDescription     = "description"
	ColKeywords        = "keywords"
	ColTargetKeywords  = "target_keywords"
	ColSearchVolume    = "search_volume"
	ColCompetition     = "competition"
	ColMarginEstimate  = "margin_estimate"
	ColEntryScore      = "entry_score"
	ColStatus          = "status"
	ColMarketAnalysis  = "market_analysis"
	ColMarginAnalysis  = "margin_analysis"
	ColCrossValidation = "cross_validation"
	ColFinalDecision   = "final_decision"
	ColReviewerOpinion = "reviewer_opinion"
	ColFinalAgreement  = "final_agreement"
)

// Columns lists every column key in sheet order.
var Columns = []string{
	ColCollectedAt, ColSourceURL, ColProductName, ColBrand, ColPriceCAD, ColCategory,
	ColIngredients, ColRating, ColDescription, ColKeywords, ColTargetKeywords,
	ColSearchVolume, ColCompetition, ColMarginEstimate, ColEntryScore, ColStatus,
	ColMarketAnalysis, ColMarginAnalysis, ColCrossValidation, ColFinalDecision,
	ColReviewerOpinion, ColFinalAgreement,
}

// Headers are the display labels written as the first row.
var Headers = []string{
	"수집일자", "출처사이트", "제품명", "브랜드", "캐나다가격", "카테고리",
	"주요성분", "평점", "제품설명", "핵심키워드", "타겟키워드",
	"검색량추정", "경쟁강도", "마진예상", "진출점수", "상태",
	"시장분석", "마진분석", "교차검증", "최종결론",
	"검토의견", "최종합의",
}

// TimeLayout formats collected_at.
const TimeLayout = "2006-01-02 15:04:05"

// ErrNoRows is returned by LastRow when nothing has been appended yet.
var ErrNoRows = errors.New("sheet: no rows")

// Row is one record keyed by column. Missing keys read as empty.
type Row map[string]string

// Values returns the cells in Columns order.
func (r Row) Values() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = r[c]
	}
	return out
}

// RowFromValues maps positional cells back onto column keys. Short input is
// padded with empty cells.
func RowFromValues(values []string) Row {
	r := make(Row, len(Columns))
	for i, c := range Columns {
		if i < len(values) {
			r[c] = values[i]
		} else {
			r[c] = ""
		}
	}
	return r
}

// Sink is an append-only tabular store.
type Sink interface {
	EnsureHeader(ctx context.Context) error
	Append(ctx context.Context, row Row) (string, error)
	LastRow(ctx context.Context) (Row, error)
}

// Reader lists every stored row, oldest first.
type Reader interface {
	Rows(ctx context.Context) ([]Row, error)
}

const maxDescription = 500

// BuildRow lays out one product's results. Human review columns stay empty.
func BuildRow(p model.Product, market, margin model.AnalysisResult, v model.Verdict, at time.Time) Row {
	r := Row{
		ColCollectedAt:     at.Format(TimeLayout),
		ColSourceURL:       p.SourceURL,
		ColProductName:     p.Name,
		ColBrand:           p.Brand,
		ColPriceCAD:        strconv.FormatFloat(p.PriceCAD, 'f', 2, 64),
		ColCategory:        p.Category,
		ColIngredients:     p.IngredientsText(),
		ColRating:          p.RatingText(),
		ColDescription:     truncate(p.Description, maxDescription),
		ColKeywords:        strings.Join(v.Market.Keywords, ", "),
		ColTargetKeywords:  strings.Join(v.Margin.Hashtags, " "),
		ColSearchVolume:    "",
		ColCompetition:     fieldText(v.Market.CompetitionScore),
		ColMarginEstimate:  marginEstimate(v),
		ColEntryScore:      "",
		ColStatus:          string(v.Status),
		ColMarketAnalysis:  resultJSON(market),
		ColMarginAnalysis:  resultJSON(margin),
		ColCrossValidation: crossValidationText(v),
		ColFinalDecision:   string(v.FinalRecommendation.Decision),
		ColReviewerOpinion: "",
		ColFinalAgreement:  "",
	}
	if v.Status == model.VerdictStatusSuccess {
		r[ColEntryScore] = strconv.FormatFloat(v.FinalScore, 'f', -1, 64)
	}
	return r
}

func marginEstimate(v model.Verdict) string {
	if m, ok := v.Margin.MarginPercent.Get(); ok {
		return strconv.FormatFloat(m, 'f', -1, 64) + "%"
	}
	if m, ok := v.Market.MarginPercent.Get(); ok {
		return strconv.FormatFloat(m, 'f', -1, 64) + "%"
	}
	return ""
}

func fieldText(f model.Field[float64]) string {
	if x, ok := f.Get(); ok {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func crossValidationText(v model.Verdict) string {
	s := fmt.Sprintf("consistency=%.2f confidence=%.2f", v.ConsistencyScore, v.FinalRecommendation.Confidence)
	if len(v.Compared) > 0 {
		s += " compared=" + strings.Join(v.Compared, ",")
	}
	if len(v.Errors) > 0 {
		s += " errors=" + strings.Join(v.Errors, "; ")
	}
	return s
}

func resultJSON(r model.AnalysisResult) string {
	b, err := json.Marshal(r)
	if err != nil {
		return r.Analysis
	}
	return string(b)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
