package model

import (
	"time"

	"github.com/lib/pq"
)

// Decision values returned by the evaluation stage.
const (
	DecisionPass  = "PASS"
	DecisionBlock = "BLOCK"
)

// Sentiment labels the rewrite stage may emit.
const (
	SentimentBullish = "BULLISH"
	SentimentBearish = "BEARISH"
	SentimentNeutral = "NEUTRAL"
)

// Length caps applied to refined text before storage. Oversized model output
// is truncated, never rejected.
const (
	HeadlineMaxLen     = 120
	SummaryMaxLen      = 180
	MarketImpactMaxLen = 200
	MaxTickers         = 5
)

// Evaluation is the classification verdict for one candidate. It is never
// persisted on its own; its metadata is folded into the archived story when
// the decision is PASS.
type Evaluation struct {
	Decision             string   `json:"decision"`
	Reason               string   `json:"reason"`
	RelevanceScore       float64  `json:"relevance_score"`
	Categories           []string `json:"categories"`
	Importance           string   `json:"importance"`
	MentionedCryptos     []string `json:"mentioned_cryptos"`
	MentionedBlockchains []string `json:"mentioned_blockchains"`
}

// Passed reports whether the candidate cleared the rubric.
func (e Evaluation) Passed() bool {
	return e.Decision == DecisionPass
}

// BlockedEvaluation builds the verdict used when the model call itself fails.
// A broken classifier must never let a candidate through.
func BlockedEvaluation(reason string) Evaluation {
	return Evaluation{
		Decision:   DecisionBlock,
		Reason:     reason,
		Importance: "LOW",
	}
}

// RefinedStory is the rewrite stage output: a stylized headline/summary plus
// extracted market metadata. Numeric fields stay nil when the article carries
// no figures.
type RefinedStory struct {
	Headline           string   `json:"processed_headline"`
	Summary            string   `json:"processed_description"`
	Tickers            []string `json:"tickers"`
	Sentiment          string   `json:"sentiment"`
	MarketImpact       string   `json:"market_impact"`
	Price              *float64 `json:"price_mentioned"`
	PriceChangePercent *float64 `json:"price_change_percent"`
	Volume             *float64 `json:"volume_mentioned"`
	MarketCap          *float64 `json:"market_cap_mentioned"`
}

// ArchivedStory is one row of the destination table. Created exactly once per
// accepted candidate, never updated, deleted only by retention pruning.
type ArchivedStory struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`

	OriginalID          string    `gorm:"column:original_id" json:"original_id"`
	OriginalHeadline    string    `gorm:"column:original_headline" json:"original_headline"`
	OriginalDescription string    `gorm:"column:original_description" json:"original_description"`
	OriginalLink        string    `gorm:"column:original_link" json:"original_link"`
	OriginalPublishedAt time.Time `gorm:"column:original_published_at" json:"original_published_at"`
	OriginalSourceName  string    `gorm:"column:original_source_name" json:"original_source_name"`

	Headline     string         `gorm:"column:processed_headline" json:"processed_headline"`
	Summary      string         `gorm:"column:processed_description" json:"processed_description"`
	Tickers      pq.StringArray `gorm:"column:tickers;type:text[]" json:"tickers"`
	Sentiment    string         `gorm:"column:sentiment" json:"sentiment"`
	MarketImpact string         `gorm:"column:market_impact" json:"market_impact"`

	RelevanceScore   float64        `gorm:"column:relevance_score" json:"relevance_score"`
	EvaluationReason string         `gorm:"column:evaluation_reason" json:"evaluation_reason"`
	Categories       pq.StringArray `gorm:"column:categories;type:text[]" json:"categories"`
	ImportanceLevel  string         `gorm:"column:importance_level" json:"importance_level"`
	Blockchains      pq.StringArray `gorm:"column:blockchain_mentioned;type:text[]" json:"blockchain_mentioned"`

	Price              *float64 `gorm:"column:price_mentioned" json:"price_mentioned"`
	PriceChangePercent *float64 `gorm:"column:price_change_percent" json:"price_change_percent"`
	Volume             *float64 `gorm:"column:volume_mentioned" json:"volume_mentioned"`
	MarketCap          *float64 `gorm:"column:market_cap_mentioned" json:"market_cap_mentioned"`

	ProcessedAt       time.Time `gorm:"column:processed_at" json:"processed_at"`
	ProcessingVersion string    `gorm:"column:processing_version" json:"processing_version"`
}

// Truncate shortens s to at most max characters without splitting a rune.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
