package model

import (
	"strings"
	"time"
)

// Candidate is a raw news row fetched from the source table. The row is owned
// by the ingestion side; the only field this service ever writes back is the
// processed flag.
type Candidate struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Headline    string    `gorm:"column:headline" json:"headline"`
	Description string    `gorm:"column:description" json:"description"`
	SourceName  string    `gorm:"column:source_name" json:"source_name"`
	Link        string    `gorm:"column:link" json:"link"`
	PublishedAt time.Time `gorm:"column:published_at" json:"published_at"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	Processed   bool      `gorm:"column:processed" json:"processed"`
}

// HeadlinePrefix returns a shortened headline for log lines.
func (c Candidate) HeadlinePrefix() string {
	const max = 50
	short := Truncate(c.Headline, max)
	if short == c.Headline {
		return c.Headline
	}
	return short + "..."
}

// PromptDescription returns the description to embed in prompts. Upstream
// feeds often leave the description empty or copy the headline into it; the
// model is told to work from the headline in that case.
func (c Candidate) PromptDescription(placeholder string) string {
	desc := strings.TrimSpace(c.Description)
	if desc == "" || desc == strings.TrimSpace(c.Headline) {
		return placeholder
	}
	return c.Description
}
