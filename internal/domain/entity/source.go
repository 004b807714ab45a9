package entity

import (
	"fmt"
	"time"
)

// SourceType identifies which fetcher implementation a Source uses.
type SourceType string

const (
	SourceTypeRSS    SourceType = "RSS"
	SourceTypeWeb    SourceType = "WEB"
	SourceTypeEmail  SourceType = "EMAIL"
	SourceTypeReddit SourceType = "REDDIT"
)

// SourceStatus is the user-facing health state of a Source.
type SourceStatus string

const (
	SourceStatusActive SourceStatus = "ACTIVE"
	SourceStatusPaused SourceStatus = "PAUSED"
	SourceStatusError  SourceStatus = "ERROR"
)

// FetchStatus is the fetch-pipeline transitional state of a Source.
type FetchStatus string

const (
	FetchStatusIdle     FetchStatus = "IDLE"
	FetchStatusQueued   FetchStatus = "QUEUED"
	FetchStatusFetching FetchStatus = "FETCHING"
)

// Source is an external content origin bound to exactly one Briefing.
type Source struct {
	ID                     string
	BriefingID             string
	Type                   SourceType
	URL                    string // for EMAIL, a routing token
	Name                   string
	ExtractionPrompt       string // WEB only
	RefreshIntervalMinutes int    // 0 means never polled
	Status                 SourceStatus
	FetchStatus            FetchStatus
	LastFetchedAt          *time.Time
	ETag                   string
	LastModified           string
	ErrorMessage           string
	QueuedAt               *time.Time
	FetchStartedAt         *time.Time
	UpdatedAt              time.Time
}

// EligibleForFetch implements the fetch-scheduler eligibility invariant
// from spec §3: active, idle, due for refresh, and polling enabled.
func (s *Source) EligibleForFetch(now time.Time) bool {
	if s.Status != SourceStatusActive || s.FetchStatus != FetchStatusIdle {
		return false
	}
	if s.RefreshIntervalMinutes <= 0 {
		return false
	}
	if s.LastFetchedAt == nil {
		return true
	}
	due := s.LastFetchedAt.Add(time.Duration(s.RefreshIntervalMinutes) * time.Minute)
	return !due.After(now)
}

// Validate checks structural invariants of a Source independent of the
// store: valid type, WEB sources carry an extraction prompt, EMAIL
// sources carry a routing token in URL.
func (s *Source) Validate() error {
	switch s.Type {
	case SourceTypeRSS, SourceTypeWeb, SourceTypeEmail, SourceTypeReddit:
	default:
		return fmt.Errorf("invalid source type: %s (must be RSS, WEB, EMAIL, or REDDIT)", s.Type)
	}
	if s.Type == SourceTypeWeb && s.ExtractionPrompt == "" {
		return &ValidationError{Field: "extractionPrompt", Message: "required for WEB sources"}
	}
	if s.URL == "" {
		return &ValidationError{Field: "url", Message: "required"}
	}
	return nil
}
