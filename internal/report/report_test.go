package report

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/sheet"
)

func sampleRecords() []model.KPIRecord {
	return []model.KPIRecord{
		{
			Timestamp:     time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC),
			ProductName:   "Product 1",
			Category:      "건강식품",
			MarginPercent: lo.ToPtr(65.0),
			FinalScore:    80,
			Decision:      model.DecisionRecommend,
			ReviewerNotes: "좋음",
		},
		{
			Timestamp:     time.Date(2025, 5, 30, 11, 0, 0, 0, time.UTC),
			ProductName:   "Product 2",
			Category:      "펫용품",
			MarginPercent: lo.ToPtr(45.0),
			FinalScore:    55,
			Decision:      model.DecisionHold,
		},
	}
}

func TestCalculateKPIs(t *testing.T) {
	k := CalculateKPIs(sampleRecords())
	assert.Equal(t, 2, k.AnalysisCount)
	assert.Equal(t, 1, k.Recommended)
	assert.InDelta(t, 50.0, k.SuccessRate, 0.001)
	assert.InDelta(t, 55.0, k.AvgMargin, 0.001)
	assert.InDelta(t, 67.5, k.AvgFinalScore, 0.001)
}

func TestCalculateKPIs_Empty(t *testing.T) {
	k := CalculateKPIs(nil)
	assert.Zero(t, k.AnalysisCount)
	assert.Zero(t, k.SuccessRate)
	assert.Zero(t, k.AvgMargin)
}

func TestCalculateKPIs_SkipsMissingMargin(t *testing.T) {
	recs := append(sampleRecords(), model.KPIRecord{Decision: model.DecisionInsufficientData})
	k := CalculateKPIs(recs)
	assert.Equal(t, 3, k.AnalysisCount)
	assert.InDelta(t, 55.0, k.AvgMargin, 0.001)
	assert.InDelta(t, 67.5, k.AvgFinalScore, 0.001)
	assert.InDelta(t, 33.33, k.SuccessRate, 0.001)
}

func TestWeeklyReport(t *testing.T) {
	rep := WeeklyReport(sampleRecords())
	assert.Equal(t, 2, rep.Summary.AnalysisCount)
	require.Len(t, rep.TopProducts, 1)
	assert.Equal(t, "Product 1", rep.TopProducts[0].ProductName)
	assert.NotEmpty(t, rep.Insights)
	assert.Contains(t, rep.Insights[0], "건강식품")
	assert.True(t, rep.From.Before(rep.To))
}

func TestTopProducts_Order(t *testing.T) {
	var recs []model.KPIRecord
	for i, m := range []float64{30, 60, 60, 10, 45, 50} {
		recs = append(recs, model.KPIRecord{
			ProductName:   string(rune('A' + i)),
			MarginPercent: lo.ToPtr(m),
			FinalScore:    float64(50 + i),
			Decision:      model.DecisionRecommend,
		})
	}
	recs = append(recs,
		model.KPIRecord{ProductName: "nomargin", FinalScore: 99, Decision: model.DecisionRecommend},
		model.KPIRecord{ProductName: "held", MarginPercent: lo.ToPtr(90.0), Decision: model.DecisionHold},
	)

	top := TopProducts(recs, TopN)
	names := lo.Map(top, func(r model.KPIRecord, _ int) string { return r.ProductName })
	assert.Equal(t, []string{"C", "B", "F", "E", "A"}, names)
}

func TestTopProducts_None(t *testing.T) {
	top := TopProducts(nil, TopN)
	assert.NotNil(t, top)
	assert.Empty(t, top)
}

func TestInsights(t *testing.T) {
	assert.Equal(t, []string{"분석된 제품이 없습니다"}, Insights(nil))

	ins := Insights(sampleRecords())
	require.Len(t, ins, 3)
	assert.Contains(t, ins[1], "우수")
	assert.Contains(t, ins[2], "1건")
}

func TestFromAnalyses(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recs := []model.AnalysisRecord{
		{
			Product: model.Product{Name: "A", Category: "vitamins"},
			Verdict: model.Verdict{
				FinalScore:          75,
				FinalRecommendation: model.Recommendation{Decision: model.DecisionRecommend},
				Market:              model.Signals{MarginPercent: model.Some(20.0)},
				Margin:              model.Signals{MarginPercent: model.Some(35.0)},
			},
			CreatedAt: at,
		},
		{
			Product: model.Product{Name: "B"},
			Verdict: model.Verdict{
				FinalRecommendation: model.Recommendation{Decision: model.DecisionHold},
				Market:              model.Signals{MarginPercent: model.Some(20.0)},
			},
		},
		{Product: model.Product{Name: "C"}},
	}

	got := FromAnalyses(recs)
	require.Len(t, got, 3)
	assert.Equal(t, 35.0, *got[0].MarginPercent)
	assert.True(t, got[0].Timestamp.Equal(at))
	assert.Equal(t, 20.0, *got[1].MarginPercent)
	assert.Nil(t, got[2].MarginPercent)
}

func TestFromRows(t *testing.T) {
	rows := []sheet.Row{
		{
			sheet.ColCollectedAt:     "2026-03-01 10:00:00",
			sheet.ColProductName:     "A",
			sheet.ColCategory:        "vitamins",
			sheet.ColMarginEstimate:  "42.5%",
			sheet.ColEntryScore:      "75",
			sheet.ColFinalDecision:   "recommend",
			sheet.ColReviewerOpinion: "ok",
		},
		{
			sheet.ColProductName:    "B",
			sheet.ColMarginEstimate: "n/a",
			sheet.ColFinalDecision:  "비추천",
		},
	}

	got := FromRows(rows)
	require.Len(t, got, 2)
	assert.Equal(t, 42.5, *got[0].MarginPercent)
	assert.Equal(t, 75.0, got[0].FinalScore)
	assert.Equal(t, model.DecisionRecommend, got[0].Decision)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got[0].Timestamp)
	assert.Nil(t, got[1].MarginPercent)
	assert.Equal(t, model.DecisionReject, got[1].Decision)
	assert.True(t, got[1].Timestamp.IsZero())
}
