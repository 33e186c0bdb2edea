package model

import "time"

// UsageRecord is one successful request's token usage.
type UsageRecord struct {
	ID           string    `db:"id" json:"id"`
	Model        string    `db:"model" json:"model"`
	Provider     string    `db:"provider" json:"provider"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	Streamed     bool      `db:"streamed" json:"streamed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DailyStats represents aggregated usage data for a specific day.
type DailyStats struct {
	Date          string `db:"date" json:"date"`
	TotalRequests int    `db:"total_requests" json:"total_requests"`
	InputTokens   int    `db:"input_tokens" json:"input_tokens"`
	OutputTokens  int    `db:"output_tokens" json:"output_tokens"`
	TotalTokens   int    `db:"total_tokens" json:"total_tokens"`
}
