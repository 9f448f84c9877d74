// Package schedule loads shop opening hours for the booking core.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"shopvisit/internal/metrics"
	"shopvisit/internal/model"
)

// ErrScheduleUnavailable means neither the backend nor the local mirror had a schedule.
var ErrScheduleUnavailable = errors.New("schedule unavailable")

// Origin tells where a loaded schedule came from.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginMirror   Origin = "mirror"
	OriginFallback Origin = "fallback"
)

// Source supplies open hours, normally the Shop-Management backend.
type Source interface {
	GetOpenHours(ctx context.Context, shopID string) ([]model.OpenHourEntry, error)
}

// Invalidator is implemented by sources that cache schedules.
type Invalidator interface {
	InvalidateShop(ctx context.Context, shopID string)
}

// Mirror keeps the last schedule fetched per shop.
type Mirror interface {
	SaveOpenHours(ctx context.Context, shopID string, entries []model.OpenHourEntry) error
	ListOpenHours(ctx context.Context, shopID string) ([]model.OpenHourEntry, bool, error)
}

// Schedule is a loaded shop schedule.
type Schedule struct {
	ShopID  string
	Entries []model.OpenHourEntry
	Origin  Origin
	// Err is set when the schedule fell back to always open.
	Err error
}

// Service reads schedules from the backend, mirroring them locally.
type Service struct {
	source Source
	mirror Mirror
	logger *zerolog.Logger
}

// NewService creates a schedule service. mirror may be nil.
func NewService(source Source, mirror Mirror, logger *zerolog.Logger) *Service {
	return &Service{source: source, mirror: mirror, logger: logger}
}

// Load never fails: on read errors it falls back to the mirror and then to an
// empty (always open) schedule, logging the failure.
func (s *Service) Load(ctx context.Context, shopID string) Schedule {
	entries, err := s.source.GetOpenHours(ctx, shopID)
	if err == nil {
		entries = forShop(shopID, entries)
		s.logIssues(shopID, entries)
		if s.mirror != nil {
			if mErr := s.mirror.SaveOpenHours(ctx, shopID, entries); mErr != nil {
				s.logger.Warn().Err(mErr).Str("shop_id", shopID).Msg("failed to mirror open hours")
			}
		}
		metrics.IncScheduleLoad(string(OriginRemote))
		return Schedule{ShopID: shopID, Entries: entries, Origin: OriginRemote}
	}

	s.logger.Warn().Err(err).Str("shop_id", shopID).Msg("fetch open hours failed")

	if s.mirror != nil {
		mirrored, synced, mErr := s.mirror.ListOpenHours(ctx, shopID)
		switch {
		case mErr != nil:
			s.logger.Error().Err(mErr).Str("shop_id", shopID).Msg("read mirrored open hours failed")
		case synced:
			metrics.IncScheduleLoad(string(OriginMirror))
			return Schedule{ShopID: shopID, Entries: mirrored, Origin: OriginMirror}
		}
	}

	unavailable := fmt.Errorf("%w: shop %s: %v", ErrScheduleUnavailable, shopID, err)
	s.logger.Error().Err(unavailable).Str("shop_id", shopID).Msg("treating shop as always open")
	metrics.IncScheduleLoad(string(OriginFallback))
	return Schedule{ShopID: shopID, Origin: OriginFallback, Err: unavailable}
}

// Refresh drops any cached schedule of the shop and loads it again.
func (s *Service) Refresh(ctx context.Context, shopID string) Schedule {
	if inv, ok := s.source.(Invalidator); ok {
		inv.InvalidateShop(ctx, shopID)
	}
	return s.Load(ctx, shopID)
}

func (s *Service) logIssues(shopID string, entries []model.OpenHourEntry) {
	for _, issue := range Validate(entries) {
		s.logger.Warn().
			Str("shop_id", shopID).
			Str("day", issue.Entry.DayOfWeek.String()).
			Str("problem", issue.Problem).
			Msg("invalid open hour entry")
	}
}

// forShop drops entries that belong to another shop. Entries without a shop id are kept.
func forShop(shopID string, entries []model.OpenHourEntry) []model.OpenHourEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.ShopID != "" && e.ShopID != shopID {
			continue
		}
		e.ShopID = shopID
		out = append(out, e)
	}
	return out
}

// Issue is an entry the evaluator will ignore or override.
type Issue struct {
	Entry   model.OpenHourEntry
	Problem string
}

// Validate reports entries that break the schedule invariants.
func Validate(entries []model.OpenHourEntry) []Issue {
	closedDays := make(map[model.Weekday]bool)
	for _, e := range entries {
		if e.IsClosed {
			closedDays[e.DayOfWeek] = true
		}
	}

	var issues []Issue
	for _, e := range entries {
		if !e.DayOfWeek.Valid() {
			issues = append(issues, Issue{Entry: e, Problem: "invalid day of week"})
			continue
		}
		if e.IsClosed {
			continue
		}
		if closedDays[e.DayOfWeek] {
			issues = append(issues, Issue{Entry: e, Problem: "range on a closed day"})
			continue
		}
		if _, _, err := e.Range(); err != nil {
			issues = append(issues, Issue{Entry: e, Problem: err.Error()})
		}
	}
	return issues
}
