// Package report computes performance KPIs and the weekly summary over
// analysed products.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/sheet"
)

// TopN is the number of products listed in a weekly report.
const TopN = 5

// CalculateKPIs summarizes records. Margin and score averages only count
// records that carry the value.
func CalculateKPIs(records []model.KPIRecord) model.KPIs {
	k := model.KPIs{AnalysisCount: len(records)}
	if len(records) == 0 {
		return k
	}

	k.Recommended = lo.CountBy(records, isRecommended)
	k.SuccessRate = round2(float64(k.Recommended) / float64(k.AnalysisCount) * 100)

	margins := lo.FilterMap(records, func(r model.KPIRecord, _ int) (float64, bool) {
		if r.MarginPercent == nil {
			return 0, false
		}
		return *r.MarginPercent, true
	})
	if len(margins) > 0 {
		k.AvgMargin = round2(lo.Mean(margins))
	}

	scored := lo.Filter(records, func(r model.KPIRecord, _ int) bool {
		return r.Decision != model.DecisionInsufficientData
	})
	if len(scored) > 0 {
		k.AvgFinalScore = round2(lo.MeanBy(scored, func(r model.KPIRecord) float64 { return r.FinalScore }))
	}
	return k
}

// WeeklyReport builds the periodic summary. The reporting window spans the
// earliest and latest record timestamps.
func WeeklyReport(records []model.KPIRecord) model.WeeklyReport {
	rep := model.WeeklyReport{
		Summary:     CalculateKPIs(records),
		TopProducts: TopProducts(records, TopN),
		Insights:    Insights(records),
	}
	if len(records) > 0 {
		rep.From = lo.MinBy(records, func(a, b model.KPIRecord) bool { return a.Timestamp.Before(b.Timestamp) }).Timestamp
		rep.To = lo.MaxBy(records, func(a, b model.KPIRecord) bool { return a.Timestamp.After(b.Timestamp) }).Timestamp
	}
	return rep
}

// TopProducts returns up to n recommended records ordered by margin, then by
// final score. Records without a margin sort after those with one.
func TopProducts(records []model.KPIRecord, n int) []model.KPIRecord {
	top := lo.Filter(records, func(r model.KPIRecord, _ int) bool { return isRecommended(r) })
	sort.SliceStable(top, func(i, j int) bool {
		mi, mj := marginOrInf(top[i]), marginOrInf(top[j])
		if mi != mj {
			return mi > mj
		}
		return top[i].FinalScore > top[j].FinalScore
	})
	if len(top) > n {
		top = top[:n]
	}
	if top == nil {
		top = []model.KPIRecord{}
	}
	return top
}

// Insights produces short human-readable observations about records.
func Insights(records []model.KPIRecord) []string {
	if len(records) == 0 {
		return []string{"분석된 제품이 없습니다"}
	}
	var out []string

	byCategory := lo.CountValuesBy(lo.Filter(records, func(r model.KPIRecord, _ int) bool {
		return isRecommended(r) && r.Category != ""
	}), func(r model.KPIRecord) string { return r.Category })
	if len(byCategory) > 0 {
		cats := lo.Keys(byCategory)
		sort.Slice(cats, func(i, j int) bool {
			if byCategory[cats[i]] != byCategory[cats[j]] {
				return byCategory[cats[i]] > byCategory[cats[j]]
			}
			return cats[i] < cats[j]
		})
		out = append(out, fmt.Sprintf("추천이 가장 많은 카테고리: %s (%d건)", cats[0], byCategory[cats[0]]))
	}

	k := CalculateKPIs(records)
	switch {
	case k.AvgMargin >= 50:
		out = append(out, fmt.Sprintf("평균 마진 %.1f%%: 우수", k.AvgMargin))
	case k.AvgMargin >= 30:
		out = append(out, fmt.Sprintf("평균 마진 %.1f%%: 양호", k.AvgMargin))
	case k.AvgMargin > 0:
		out = append(out, fmt.Sprintf("평균 마진 %.1f%%: 가격 경쟁력 재검토 필요", k.AvgMargin))
	}

	pending := lo.CountBy(records, func(r model.KPIRecord) bool { return strings.TrimSpace(r.ReviewerNotes) == "" })
	if pending > 0 {
		out = append(out, fmt.Sprintf("검토 의견 미작성: %d건 (%.0f%%)", pending, float64(pending)/float64(len(records))*100))
	}
	return out
}

// FromAnalyses converts history records into the reporting view. The margin
// comes from the margin analysis first, then the market analysis.
func FromAnalyses(recs []model.AnalysisRecord) []model.KPIRecord {
	return lo.Map(recs, func(a model.AnalysisRecord, _ int) model.KPIRecord {
		r := model.KPIRecord{
			Timestamp:   a.CreatedAt,
			ProductName: a.Product.Name,
			Category:    a.Product.Category,
			FinalScore:  a.Verdict.FinalScore,
			Decision:    a.Verdict.FinalRecommendation.Decision,
		}
		if m, ok := a.Verdict.Margin.MarginPercent.Get(); ok {
			r.MarginPercent = lo.ToPtr(m)
		} else if m, ok := a.Verdict.Market.MarginPercent.Get(); ok {
			r.MarginPercent = lo.ToPtr(m)
		}
		return r
	})
}

// FromRows converts sheet rows into the reporting view. Unparseable numeric
// cells are treated as absent.
func FromRows(rows []sheet.Row) []model.KPIRecord {
	out := make([]model.KPIRecord, 0, len(rows))
	for _, row := range rows {
		r := model.KPIRecord{
			ProductName:   row[sheet.ColProductName],
			Category:      row[sheet.ColCategory],
			Decision:      parseDecision(row[sheet.ColFinalDecision]),
			ReviewerNotes: row[sheet.ColReviewerOpinion],
		}
		if ts, err := time.ParseInLocation(sheet.TimeLayout, row[sheet.ColCollectedAt], time.UTC); err == nil {
			r.Timestamp = ts
		}
		if m, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(row[sheet.ColMarginEstimate]), "%"), 64); err == nil {
			r.MarginPercent = lo.ToPtr(m)
		}
		if s, err := strconv.ParseFloat(strings.TrimSpace(row[sheet.ColEntryScore]), 64); err == nil {
			r.FinalScore = s
		}
		out = append(out, r)
	}
	return out
}

// parseDecision accepts the stored decision values and the Korean labels a
// reviewer may type.
func parseDecision(s string) model.Decision {
	switch strings.TrimSpace(s) {
	case string(model.DecisionRecommend), model.ResearchRecommend:
		return model.DecisionRecommend
	case string(model.DecisionHold), model.ResearchHold:
		return model.DecisionHold
	case string(model.DecisionReject), model.ResearchNotRecommend:
		return model.DecisionReject
	default:
		return model.DecisionInsufficientData
	}
}

func isRecommended(r model.KPIRecord) bool {
	return r.Decision == model.DecisionRecommend
}

func marginOrInf(r model.KPIRecord) float64 {
	if r.MarginPercent == nil {
		return math.Inf(-1)
	}
	return *r.MarginPercent
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
