package entity

import "time"

// ReportItem is one ranked entry in a Report, referencing an Item by id
// only (items outlive reports, per the ownership rule in spec §3).
type ReportItem struct {
	ItemID   string
	Score    int
	Position int // 1..N
}

// Report is the materialized output of one brief-pipeline run: the top-N
// scored items for a Briefing since its last run.
type Report struct {
	ID          string
	BriefingID  string
	GeneratedAt time.Time
	Items       []ReportItem // ordered by Position ascending, 1 <= len <= MaxReportItems
}

// Validate checks the report-size invariant (spec P4): positions form a
// contiguous 1..N sequence and scores are non-increasing by position.
func (r *Report) Validate(maxItems int) error {
	n := len(r.Items)
	if n < 1 || n > maxItems {
		return &ValidationError{Field: "items", Message: "report must contain between 1 and maxItems items"}
	}
	for idx, it := range r.Items {
		if it.Position != idx+1 {
			return &ValidationError{Field: "items.position", Message: "positions must be contiguous starting at 1"}
		}
		if idx > 0 && it.Score > r.Items[idx-1].Score {
			return &ValidationError{Field: "items.score", Message: "scores must be non-increasing by position"}
		}
	}
	return nil
}
