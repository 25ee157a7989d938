package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Craigmuzza/PVPStore-sub000/internal/alerting"
	"github.com/Craigmuzza/PVPStore-sub000/internal/geapi"
	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
	"github.com/Craigmuzza/PVPStore-sub000/internal/scheduler"
	"github.com/Craigmuzza/PVPStore-sub000/internal/storage"
)

// Options wire the service's collaborators. Engine, watcher, notifier and the
// audit stores are all optional; a nil collaborator disables that concern.
type Options struct {
	PriceScheduler *scheduler.Scheduler
	ScanScheduler  *scheduler.Scheduler
	DumpScheduler  *scheduler.Scheduler

	Store    *pricestore.Store
	Engine   *alerting.Engine
	Watcher  *alerting.DumpWatcher
	Notifier alerting.Notifier

	Samples storage.PriceSampleStore
	Audit   storage.AlertAuditStore
}

// Service drives the refresh → evaluate → publish cadence. The price refresh
// and alert scan run on independent timers so a refresh failure never blocks
// evaluation against the last-known-good snapshot.
type Service struct {
	opts   Options
	logger zerolog.Logger

	catalogMu     sync.Mutex
	catalogLoaded bool
}

// New constructs the watcher service.
func New(opts Options, logger zerolog.Logger) *Service {
	return &Service{
		opts:   opts,
		logger: logging.Component(logger, "service"),
	}
}

// Run blocks until ctx is cancelled, driving all configured loops.
func (s *Service) Run(ctx context.Context) error {
	if s.opts.PriceScheduler == nil || s.opts.Store == nil {
		return errors.New("price scheduler and store are required")
	}

	if err := s.ensureCatalog(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial catalog refresh failed; will retry on price ticks")
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.opts.PriceScheduler.Run(ctx, s.PriceTick)
	}()

	if s.opts.ScanScheduler != nil && s.opts.Engine != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.opts.ScanScheduler.Run(ctx, s.ScanTick)
		}()
	}

	if s.opts.DumpScheduler != nil && s.opts.Watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.opts.DumpScheduler.Run(ctx, s.DumpTick)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

// ensureCatalog loads the item catalog once; later calls are no-ops after the
// first success.
func (s *Service) ensureCatalog(ctx context.Context) error {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	if s.catalogLoaded {
		return nil
	}
	if err := s.opts.Store.RefreshCatalog(ctx); err != nil {
		return err
	}
	s.catalogLoaded = true
	return nil
}

// PriceTick refreshes the latest price snapshot. Rate limiting by the API is
// transient: skip this tick and let the next one retry.
func (s *Service) PriceTick(ctx context.Context, bucket time.Time) error {
	if err := s.ensureCatalog(ctx); err != nil {
		return err
	}

	if err := s.opts.Store.RefreshPrices(ctx); err != nil {
		if errors.Is(err, geapi.ErrRateLimited) {
			s.logger.Warn().Time("bucket", bucket).Msg("price API rate limited; skipping tick")
			return nil
		}
		return err
	}

	s.persistWatchedSamples(ctx, bucket)
	return nil
}

// persistWatchedSamples records a live sample for every watchlisted item.
// Persistence is best effort: failures are logged and the tick continues.
func (s *Service) persistWatchedSamples(ctx context.Context, bucket time.Time) {
	if s.opts.Samples == nil || s.opts.Engine == nil {
		return
	}

	for _, itemID := range s.opts.Engine.WatchedItemIDs() {
		point, ok := s.opts.Store.Price(itemID)
		if !ok {
			continue
		}
		sample := storage.PriceSample{
			ItemID:      itemID,
			Bucket:      bucket.UTC(),
			InstantBuy:  point.InstantBuy,
			InstantSell: point.InstantSell,
			Source:      "live",
		}
		if err := s.opts.Samples.UpsertPriceSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Int("item_id", itemID).Msg("failed to persist price sample")
		}
	}
}

// ScanTick evaluates all alerts and dispatches the triggered set. Each
// payload is delivered individually so one failing delivery never blocks its
// siblings.
func (s *Service) ScanTick(ctx context.Context, bucket time.Time) error {
	payloads := s.opts.Engine.Scan(ctx)
	if len(payloads) == 0 {
		return nil
	}

	delivered := 0
	for _, payload := range payloads {
		if !s.opts.Engine.Commit(payload) {
			continue
		}
		s.dispatch(ctx, payload)
		delivered++
	}

	s.logger.Info().Time("bucket", bucket).Int("triggered", len(payloads)).Int("dispatched", delivered).Msg("alert scan complete")
	return nil
}

// DumpTick runs the tiered dump-watch profile and dispatches its payloads.
func (s *Service) DumpTick(ctx context.Context, bucket time.Time) error {
	payloads := s.opts.Watcher.Scan(ctx)
	for _, payload := range payloads {
		s.dispatch(ctx, payload)
	}
	if len(payloads) > 0 {
		s.logger.Info().Time("bucket", bucket).Int("dispatched", len(payloads)).Msg("dump watch complete")
	}
	return nil
}

// dispatch delivers one payload and records it for auditing. Failures on
// either path are logged per alert and never propagate; a failed delivery is
// still consumed.
func (s *Service) dispatch(ctx context.Context, payload alerting.Payload) {
	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.Notify(ctx, payload); err != nil {
			s.logger.Error().Err(err).
				Str("type", string(payload.Type)).
				Int("item_id", payload.Item.ID).
				Msg("alert delivery failed")
		}
	}

	if s.opts.Audit != nil {
		if _, err := s.opts.Audit.InsertAlert(ctx, auditRecord(payload)); err != nil {
			s.logger.Error().Err(err).
				Str("type", string(payload.Type)).
				Int("item_id", payload.Item.ID).
				Msg("failed to persist alert record")
		}
	}
}

func auditRecord(payload alerting.Payload) storage.AlertRecord {
	rec := storage.AlertRecord{
		ServerID:  payload.ServerID,
		ChannelID: payload.ChannelID,
		ItemID:    payload.Item.ID,
		AlertType: string(payload.Type),
		Severity:  string(payload.Severity),
	}
	if payload.Tier != "" {
		rec.Severity = string(payload.Tier)
	}
	if payload.ChangePct != 0 {
		change := decimal.NewFromFloat(payload.ChangePct)
		rec.ChangePct = &change
	}
	if body, err := json.Marshal(payload); err == nil {
		rec.Payload = body
	}
	return rec
}
