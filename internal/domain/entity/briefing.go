package entity

import "time"

// BriefingFrequency controls how often a Briefing's brief pipeline run recurs.
type BriefingFrequency string

const (
	FrequencyDaily  BriefingFrequency = "DAILY"
	FrequencyWeekly BriefingFrequency = "WEEKLY"
)

// BriefingStatus is the brief-pipeline lifecycle state of a Briefing.
type BriefingStatus string

const (
	BriefingStatusActive     BriefingStatus = "ACTIVE"
	BriefingStatusPaused     BriefingStatus = "PAUSED"
	BriefingStatusQueued     BriefingStatus = "QUEUED"
	BriefingStatusProcessing BriefingStatus = "PROCESSING"
	BriefingStatusError      BriefingStatus = "ERROR"
)

// Briefing is a user-scoped digest configuration: a bundle of Sources plus
// scoring criteria plus a schedule.
type Briefing struct {
	ID                   string
	UserID               string
	Title                string
	BriefingCriteria     string // free text used by the enricher for scoring
	Frequency            BriefingFrequency
	DayOfWeek            *time.Weekday // WEEKLY only
	LocalTime            string        // "HH:MM" in Timezone
	Timezone             string        // IANA timezone name
	Status               BriefingStatus
	LastExecutedAt       *time.Time
	EmailDeliveryEnabled bool
	Position             int
	QueuedAt             *time.Time
	ProcessingStartedAt  *time.Time
	ErrorMessage         string
}
