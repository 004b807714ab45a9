// Package entity defines the core domain entities and validation logic for
// the background processing core: Source, Item, Briefing, Report, and
// CreditLedger, along with their validation rules and domain-specific
// errors.
package entity

import "time"

// ItemStatus is the enrich-pipeline lifecycle state of an Item.
type ItemStatus string

const (
	ItemStatusNew        ItemStatus = "NEW"
	ItemStatusPending    ItemStatus = "PENDING"
	ItemStatusProcessing ItemStatus = "PROCESSING"
	ItemStatusDone       ItemStatus = "DONE"
	ItemStatusError      ItemStatus = "ERROR"
)

// Sentiment is the enricher's classification of an item's overall tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Tags holds the structured entities and classification the enricher
// extracts from an item alongside its summary and score.
type Tags struct {
	Topics       []string
	People       []string
	Companies    []string
	Technologies []string
	Sentiment    Sentiment
}

// Item is a single fetched article/post, optionally enriched and scored.
type Item struct {
	ID             string
	SourceID       string
	GUID           string // unique within source; the dedup key
	Title          string
	Link           string
	Author         string
	PublishedAt    *time.Time
	RawContent     string
	CleanContent   string
	WebContent     string
	Summary        string
	Tags           *Tags
	Score          *int // 0..100 once enriched; nil before, and nil for first-import items stored DONE
	ScoreReasoning string
	Status         ItemStatus
	ErrorMessage   string
	ReadAt         *time.Time
	Saved          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveContent returns the content used as enricher input: cleaned
// content when available, otherwise the raw fetched content (spec §4.2
// step 3).
func (i *Item) EffectiveContent() string {
	if i.CleanContent != "" {
		return i.CleanContent
	}
	return i.RawContent
}

// DisplayContent returns the content used for downstream reads, per the
// precedence invariant of spec §4.2: webContent (non-blank) > cleanContent
// > rawContent.
func (i *Item) DisplayContent() string {
	if i.WebContent != "" {
		return i.WebContent
	}
	if i.CleanContent != "" {
		return i.CleanContent
	}
	return i.RawContent
}

const maxErrorMessageLen = 1024

// MaxErrorMessageLen is the cap applied to Item.ErrorMessage (spec §4.2).
func MaxErrorMessageLen() int { return maxErrorMessageLen }
