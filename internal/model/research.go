package model

import "time"

// Field research recommendation labels, as entered by the researcher.
const (
	ResearchRecommend    = "추천"
	ResearchHold         = "보류"
	ResearchNotRecommend = "비추천"
)

// FieldResearchEntry is one in-store observation. Entries are append-only.
type FieldResearchEntry struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ProductName    string    `json:"product_name"`
	StoreLocation  string    `json:"store_location"`
	PriceCAD       float64   `json:"price_cad"`
	DiscountInfo   string    `json:"discount_info,omitempty"`
	StockStatus    string    `json:"stock_status,omitempty"`
	PhotoURLs      []string  `json:"photo_urls,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Researcher     string    `json:"researcher"`
	QualityScore   int       `json:"quality_score"`
	Recommendation string    `json:"recommendation"`
}

// ResearchAck acknowledges an appended entry.
type ResearchAck struct {
	Status    string    `json:"status"`
	EntryID   int64     `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ResearchSummary aggregates entries within a recency window.
type ResearchSummary struct {
	Days           int                  `json:"days"`
	TotalProducts  int                  `json:"total_products"`
	Recommended    int                  `json:"recommended"`
	AverageQuality float64              `json:"average_quality"`
	StoresVisited  int                  `json:"stores_visited"`
	LatestResearch []FieldResearchEntry `json:"latest_research"`
}

// KPIs summarize analysis throughput and outcomes.
type KPIs struct {
	AnalysisCount int     `json:"analysis_count"`
	Recommended   int     `json:"recommended"`
	SuccessRate   float64 `json:"success_rate"` // percent recommended
	AvgMargin     float64 `json:"avg_margin"`   // percent
	AvgFinalScore float64 `json:"avg_final_score"`
}

// KPIRecord is the reporting view of one analysed product.
type KPIRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	ProductName   string    `json:"product_name"`
	Category      string    `json:"category"`
	MarginPercent *float64  `json:"margin_percent,omitempty"`
	FinalScore    float64   `json:"final_score"`
	Decision      Decision  `json:"decision"`
	ReviewerNotes string    `json:"reviewer_notes,omitempty"`
}

// WeeklyReport is the periodic performance summary.
type WeeklyReport struct {
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Summary     KPIs        `json:"summary"`
	TopProducts []KPIRecord `json:"top_products"`
	Insights    []string    `json:"insights"`
}
