// Package research records in-store field observations and summarizes them.
package research

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
)

// DefaultSummaryDays is the recency window used when none is given.
const DefaultSummaryDays = 7

// latestCount is how many recent entries a summary carries.
const latestCount = 5

// Log is the append-only persistence the service needs.
type Log interface {
	AddResearch(ctx context.Context, entry *model.FieldResearchEntry) (int64, error)
	ListResearch(ctx context.Context, since time.Time) ([]model.FieldResearchEntry, error)
}

// Input is one observation as entered by a researcher.
type Input struct {
	ProductName    string   `json:"product_name" validate:"required"`
	StoreLocation  string   `json:"store_location" validate:"required"`
	PriceCAD       float64  `json:"price_cad" validate:"gte=0"`
	DiscountInfo   string   `json:"discount_info"`
	StockStatus    string   `json:"stock_status"`
	PhotoURLs      []string `json:"photo_urls" validate:"omitempty,dive,url"`
	Notes          string   `json:"notes"`
	QualityScore   int      `json:"quality_score" validate:"min=1,max=5"`
	Recommendation string   `json:"recommendation" validate:"required,oneof=추천 보류 비추천"`
}

// Service appends and summarizes field research entries.
type Service struct {
	log        Log
	researcher string
	validate   *validator.Validate
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. researcher is stamped on every entry.
func New(log Log, researcher string, opts ...Option) *Service {
	s := &Service{
		log:        log,
		researcher: researcher,
		validate:   validator.New(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add validates the input, stamps it and appends it to the log.
func (s *Service) Add(ctx context.Context, in Input) (model.ResearchAck, error) {
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.StoreLocation = strings.TrimSpace(in.StoreLocation)
	if err := s.validate.Struct(in); err != nil {
		return model.ResearchAck{Status: "failed"}, eris.Wrap(
			resilience.NewConfigError(err.Error()), "research: invalid entry")
	}
	if s.researcher == "" {
		return model.ResearchAck{Status: "failed"}, resilience.NewConfigError("", "research.researcher")
	}

	entry := &model.FieldResearchEntry{
		Timestamp:      s.now().UTC(),
		ProductName:    in.ProductName,
		StoreLocation:  in.StoreLocation,
		PriceCAD:       in.PriceCAD,
		DiscountInfo:   in.DiscountInfo,
		StockStatus:    in.StockStatus,
		PhotoURLs:      in.PhotoURLs,
		Notes:          in.Notes,
		Researcher:     s.researcher,
		QualityScore:   in.QualityScore,
		Recommendation: in.Recommendation,
	}

	id, err := s.log.AddResearch(ctx, entry)
	if err != nil {
		return model.ResearchAck{Status: "failed"}, eris.Wrap(err, "research: append entry")
	}

	zap.L().Info("research: entry added",
		zap.Int64("entry_id", id),
		zap.String("product", entry.ProductName),
		zap.String("store", entry.StoreLocation),
	)

	return model.ResearchAck{Status: "success", EntryID: id, Timestamp: entry.Timestamp}, nil
}

// Summary aggregates entries recorded within the last days days. A
// non-positive window falls back to DefaultSummaryDays.
func (s *Service) Summary(ctx context.Context, days int) (model.ResearchSummary, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)

	entries, err := s.log.ListResearch(ctx, since)
	if err != nil {
		return model.ResearchSummary{Days: days}, eris.Wrap(err, "research: list entries")
	}
	// The window is exclusive of its start.
	entries = lo.Filter(entries, func(e model.FieldResearchEntry, _ int) bool {
		return e.Timestamp.After(since)
	})
	return Summarize(entries, days), nil
}

// Summarize computes the summary for entries already restricted to the window
// and ordered oldest first.
func Summarize(entries []model.FieldResearchEntry, days int) model.ResearchSummary {
	sum := model.ResearchSummary{
		Days:           days,
		TotalProducts:  len(entries),
		LatestResearch: []model.FieldResearchEntry{},
	}
	if len(entries) == 0 {
		return sum
	}

	sum.Recommended = lo.CountBy(entries, func(e model.FieldResearchEntry) bool {
		return e.Recommendation == model.ResearchRecommend
	})
	sum.AverageQuality = lo.MeanBy(entries, func(e model.FieldResearchEntry) float64 {
		return float64(e.QualityScore)
	})
	sum.StoresVisited = len(lo.UniqBy(entries, func(e model.FieldResearchEntry) string {
		return e.StoreLocation
	}))
	sum.LatestResearch = lo.Subset(entries, -latestCount, latestCount)
	return sum
}
