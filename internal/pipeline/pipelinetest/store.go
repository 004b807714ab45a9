// Package pipelinetest provides an in-memory repository.Store fake shared
// by the fetch/enrich/brief/recovery pipeline tests, mirroring the
// reusable-fixtures convention used elsewhere in this codebase's test
// suites rather than duplicating a hand-rolled mock in every package.
package pipelinetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/repository"
)

// Store is an in-memory repository.Store. Zero value is not usable;
// construct with NewStore. All methods are safe for concurrent use since
// worker pools exercise them from multiple goroutines.
type Store struct {
	mu sync.Mutex

	sources   map[string]*entity.Source
	items     map[string]*entity.Item
	briefings map[string]*entity.Briefing
	reports   []*entity.Report
	balances  map[string]bool
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{
		sources:   make(map[string]*entity.Source),
		items:     make(map[string]*entity.Item),
		briefings: make(map[string]*entity.Briefing),
		balances:  make(map[string]bool),
	}
}

// PutSource seeds a source.
func (s *Store) PutSource(src *entity.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID] = src
}

// PutItem seeds an item.
func (s *Store) PutItem(it *entity.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
}

// PutBriefing seeds a briefing.
func (s *Store) PutBriefing(b *entity.Briefing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.briefings[b.ID] = b
}

// SetBalance seeds whether userID has a positive credit balance.
func (s *Store) SetBalance(userID string, has bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = has
}

// CreatedReports returns every report created via ReportRepository.Create so far.
func (s *Store) CreatedReports() []*entity.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

func (s *Store) Sources() repository.SourceRepository     { return (*sourceRepo)(s) }
func (s *Store) Items() repository.ItemRepository          { return (*itemRepo)(s) }
func (s *Store) Briefings() repository.BriefingRepository  { return (*briefingRepo)(s) }
func (s *Store) Reports() repository.ReportRepository       { return (*reportRepo)(s) }
func (s *Store) Credits() repository.CreditRepository       { return (*creditRepo)(s) }

// WithTx runs fn with ctx unchanged: the fake has no real transactions,
// only the atomicity callers depend on (all repo mutations are already
// serialized behind s.mu).
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type sourceRepo Store

func (r *sourceRepo) Get(_ context.Context, id string) (*entity.Source, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (r *sourceRepo) ListEligibleForFetch(_ context.Context, userIDs []string, limit int) ([]*entity.Source, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = true
	}
	var out []*entity.Source
	for _, src := range s.sources {
		if len(out) >= limit {
			break
		}
		if !src.EligibleForFetch(time.Now()) {
			continue
		}
		briefing, ok := s.briefings[src.BriefingID]
		if !ok || !allowed[briefing.UserID] {
			continue
		}
		cp := *src
		out = append(out, &cp)
	}
	return out, nil
}

func (r *sourceRepo) CASFetchStatus(_ context.Context, id string, expected, next entity.FetchStatus, queuedAt, fetchStartedAt *time.Time) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return false, entity.ErrNotFound
	}
	if src.FetchStatus != expected {
		return false, nil
	}
	src.FetchStatus = next
	if queuedAt != nil {
		src.QueuedAt = queuedAt
	}
	if fetchStartedAt != nil {
		src.FetchStartedAt = fetchStartedAt
	}
	src.UpdatedAt = time.Now()
	return true, nil
}

func (r *sourceRepo) ApplyFetchResult(_ context.Context, id string, upd repository.SourceFetchUpdate) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return entity.ErrNotFound
	}
	src.FetchStatus = upd.FetchStatus
	src.Status = upd.Status
	src.LastFetchedAt = upd.LastFetchedAt
	src.ETag = upd.ETag
	src.LastModified = upd.LastModified
	src.ErrorMessage = upd.ErrorMessage
	src.UpdatedAt = time.Now()
	return nil
}

func (r *sourceRepo) MarkStuck(_ context.Context, threshold time.Duration) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	cutoff := time.Now().Add(-threshold)
	for _, src := range s.sources {
		if (src.FetchStatus == entity.FetchStatusQueued || src.FetchStatus == entity.FetchStatusFetching) && src.UpdatedAt.Before(cutoff) {
			src.FetchStatus = entity.FetchStatusIdle
			src.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

type itemRepo Store

func (r *itemRepo) Get(_ context.Context, id string) (*entity.Item, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *itemRepo) Create(_ context.Context, item *entity.Item) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = item.SourceID + ":" + item.GUID
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (r *itemRepo) ExistsBySourceAndGUID(_ context.Context, sourceID, guid string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.SourceID == sourceID && it.GUID == guid {
			return true, nil
		}
	}
	return false, nil
}

func (r *itemRepo) ListForEnrich(_ context.Context, limit int) ([]*repository.ItemForEnrich, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.ItemForEnrich
	for _, it := range s.items {
		if len(out) >= limit {
			break
		}
		if it.Status != entity.ItemStatusNew {
			continue
		}
		src, ok := s.sources[it.SourceID]
		if !ok {
			continue
		}
		briefing, ok := s.briefings[src.BriefingID]
		if !ok {
			continue
		}
		cp := *it
		out = append(out, &repository.ItemForEnrich{Item: &cp, UserID: briefing.UserID})
	}
	return out, nil
}

func (r *itemRepo) CASStatus(_ context.Context, id string, expected, next entity.ItemStatus) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return false, entity.ErrNotFound
	}
	if it.Status != expected {
		return false, nil
	}
	it.Status = next
	it.UpdatedAt = time.Now()
	return true, nil
}

func (r *itemRepo) ApplyEnrichmentDone(_ context.Context, id string, res repository.EnrichmentResult) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return entity.ErrNotFound
	}
	it.Summary = res.Summary
	it.Tags = res.Tags
	score := res.Score
	it.Score = &score
	it.ScoreReasoning = res.ScoreReasoning
	it.WebContent = res.WebContent
	it.Status = entity.ItemStatusDone
	it.UpdatedAt = time.Now()
	return nil
}

func (r *itemRepo) MarkError(_ context.Context, id string, errMsg string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return entity.ErrNotFound
	}
	it.Status = entity.ItemStatusError
	it.ErrorMessage = errMsg
	it.UpdatedAt = time.Now()
	return nil
}

func (r *itemRepo) MarkStuck(_ context.Context, threshold time.Duration) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	cutoff := time.Now().Add(-threshold)
	for _, it := range s.items {
		if (it.Status == entity.ItemStatusPending || it.Status == entity.ItemStatusProcessing) && it.UpdatedAt.Before(cutoff) {
			it.Status = entity.ItemStatusError
			it.ErrorMessage = "stuck recovery"
			it.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (r *itemRepo) TopScoredSince(_ context.Context, briefingID string, since time.Time, limit int) ([]*entity.Item, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Item
	for _, it := range s.items {
		if it.Status != entity.ItemStatusDone || it.Score == nil {
			continue
		}
		src, ok := s.sources[it.SourceID]
		if !ok || src.BriefingID != briefingID {
			continue
		}
		if it.PublishedAt != nil && it.PublishedAt.Before(since) {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].Score != *out[j].Score {
			return *out[i].Score > *out[j].Score
		}
		pi, pj := out[i].PublishedAt, out[j].PublishedAt
		return pi != nil && (pj == nil || pi.After(*pj))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type briefingRepo Store

func (r *briefingRepo) Get(_ context.Context, id string) (*entity.Briefing, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.briefings[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *briefingRepo) ListActive(_ context.Context) ([]*entity.Briefing, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Briefing
	for _, b := range s.briefings {
		if b.Status == entity.BriefingStatusActive {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *briefingRepo) CASStatus(_ context.Context, id string, expected, next entity.BriefingStatus) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.briefings[id]
	if !ok {
		return false, entity.ErrNotFound
	}
	if b.Status != expected {
		return false, nil
	}
	b.Status = next
	return true, nil
}

func (r *briefingRepo) CompleteRun(_ context.Context, id string, generatedAt time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.briefings[id]
	if !ok {
		return entity.ErrNotFound
	}
	b.LastExecutedAt = &generatedAt
	b.Status = entity.BriefingStatusActive
	return nil
}

func (r *briefingRepo) MarkError(_ context.Context, id string, errMsg string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.briefings[id]
	if !ok {
		return entity.ErrNotFound
	}
	b.Status = entity.BriefingStatusError
	b.ErrorMessage = errMsg
	return nil
}

func (r *briefingRepo) MarkStuck(_ context.Context, threshold time.Duration) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.briefings {
		if b.Status == entity.BriefingStatusQueued || b.Status == entity.BriefingStatusProcessing {
			b.Status = entity.BriefingStatusActive
			n++
		}
	}
	return n, nil
}

type reportRepo Store

func (r *reportRepo) Create(_ context.Context, report *entity.Report) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (r *reportRepo) ExistsForLocalDate(_ context.Context, briefingID string, localDate time.Time) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rep := range s.reports {
		if rep.BriefingID == briefingID && sameDate(rep.GeneratedAt, localDate) {
			return true, nil
		}
	}
	return false, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type creditRepo Store

func (r *creditRepo) HasBalance(_ context.Context, userID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (r *creditRepo) Withdraw(_ context.Context, userID string, amount int) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.balances[userID] {
		return false, nil
	}
	return true, nil
}

func (r *creditRepo) UsersWithBalance(_ context.Context) (map[string]bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.balances))
	for id, has := range s.balances {
		if has {
			out[id] = true
		}
	}
	return out, nil
}
