package entity_test

import (
	"testing"
	"time"

	"briefingcore/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestSourceEligibleForFetch(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	t.Run("never polled when refresh interval is zero", func(t *testing.T) {
		s := &entity.Source{
			Status:                 entity.SourceStatusActive,
			FetchStatus:            entity.FetchStatusIdle,
			RefreshIntervalMinutes: 0,
		}
		assert.False(t, s.EligibleForFetch(now))
	})

	t.Run("eligible on first fetch", func(t *testing.T) {
		s := &entity.Source{
			Status:                 entity.SourceStatusActive,
			FetchStatus:            entity.FetchStatusIdle,
			RefreshIntervalMinutes: 60,
		}
		assert.True(t, s.EligibleForFetch(now))
	})

	t.Run("not eligible before refresh interval elapses", func(t *testing.T) {
		last := now.Add(-30 * time.Minute)
		s := &entity.Source{
			Status:                 entity.SourceStatusActive,
			FetchStatus:            entity.FetchStatusIdle,
			RefreshIntervalMinutes: 60,
			LastFetchedAt:          &last,
		}
		assert.False(t, s.EligibleForFetch(now))
	})

	t.Run("eligible once refresh interval elapses", func(t *testing.T) {
		last := now.Add(-61 * time.Minute)
		s := &entity.Source{
			Status:                 entity.SourceStatusActive,
			FetchStatus:            entity.FetchStatusIdle,
			RefreshIntervalMinutes: 60,
			LastFetchedAt:          &last,
		}
		assert.True(t, s.EligibleForFetch(now))
	})

	t.Run("not eligible when paused", func(t *testing.T) {
		s := &entity.Source{
			Status:                 entity.SourceStatusPaused,
			FetchStatus:            entity.FetchStatusIdle,
			RefreshIntervalMinutes: 60,
		}
		assert.False(t, s.EligibleForFetch(now))
	})

	t.Run("not eligible when already queued", func(t *testing.T) {
		s := &entity.Source{
			Status:                 entity.SourceStatusActive,
			FetchStatus:            entity.FetchStatusQueued,
			RefreshIntervalMinutes: 60,
		}
		assert.False(t, s.EligibleForFetch(now))
	})
}

func TestSourceValidate(t *testing.T) {
	t.Run("rejects unknown type", func(t *testing.T) {
		s := &entity.Source{Type: "BOGUS", URL: "https://example.test"}
		assert.Error(t, s.Validate())
	})

	t.Run("web source requires extraction prompt", func(t *testing.T) {
		s := &entity.Source{Type: entity.SourceTypeWeb, URL: "https://example.test"}
		assert.Error(t, s.Validate())
	})

	t.Run("web source with prompt is valid", func(t *testing.T) {
		s := &entity.Source{Type: entity.SourceTypeWeb, URL: "https://example.test", ExtractionPrompt: "extract posts"}
		assert.NoError(t, s.Validate())
	})

	t.Run("rss source needs no prompt", func(t *testing.T) {
		s := &entity.Source{Type: entity.SourceTypeRSS, URL: "https://example.test/feed.xml"}
		assert.NoError(t, s.Validate())
	})
}
