package alerting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Craigmuzza/PVPStore-sub000/internal/analytics"
	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
)

// Options tune engine behaviour. Defaults seed each server configuration on
// first access.
type Options struct {
	Defaults       ServerConfig
	CooldownMaxAge time.Duration
	Clock          func() time.Time
}

type ownerKey struct {
	serverID string
	userID   string
}

func (k ownerKey) String() string {
	return k.serverID + "/" + k.userID
}

type cooldownKey struct {
	serverID string
	itemID   int
	kind     PayloadType
}

type rateWindow struct {
	start time.Time
	count int
}

// Engine owns alert definitions, server configuration, watchlists and
// cooldown state, and decides which alerts fire on each scan. It is the
// single writer of all of them.
type Engine struct {
	opts      Options
	store     *pricestore.Store
	analytics *analytics.Analytics
	state     StateStore
	logger    zerolog.Logger
	clock     func() time.Time

	mu         sync.Mutex
	defs       map[ownerKey][]*Definition
	servers    map[string]*ServerConfig
	watchlists map[string][]int
	cooldowns  map[cooldownKey]time.Time
	rates      map[string]*rateWindow
}

// NewEngine constructs an alert engine. Call Load before the first scan to
// hydrate persisted state.
func NewEngine(store *pricestore.Store, an *analytics.Analytics, state StateStore, opts Options, logger zerolog.Logger) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if opts.CooldownMaxAge <= 0 {
		opts.CooldownMaxAge = 24 * time.Hour
	}
	return &Engine{
		opts:       opts,
		store:      store,
		analytics:  an,
		state:      state,
		logger:     logging.Component(logger, "alert_engine"),
		clock:      clock,
		defs:       make(map[ownerKey][]*Definition),
		servers:    make(map[string]*ServerConfig),
		watchlists: make(map[string][]int),
		cooldowns:  make(map[cooldownKey]time.Time),
		rates:      make(map[string]*rateWindow),
	}
}

// Load hydrates the engine from the state store.
func (e *Engine) Load() error {
	if e.state == nil {
		return nil
	}
	state, err := e.state.Load()
	if err != nil {
		return fmt.Errorf("load alert state: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.defs = make(map[ownerKey][]*Definition)
	for key, defs := range state.Alerts {
		owner, ok := parseOwnerKey(key)
		if !ok {
			e.logger.Warn().Str("owner", key).Msg("skipping malformed owner key in state")
			continue
		}
		for i := range defs {
			def := defs[i]
			e.defs[owner] = append(e.defs[owner], &def)
		}
	}

	e.servers = make(map[string]*ServerConfig)
	for serverID, cfg := range state.Servers {
		c := cfg
		e.servers[serverID] = &c
	}

	e.watchlists = make(map[string][]int)
	for serverID, items := range state.Watchlists {
		e.watchlists[serverID] = append([]int(nil), items...)
	}

	return nil
}

func parseOwnerKey(key string) (ownerKey, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return ownerKey{serverID: key[:i], userID: key[i+1:]}, true
		}
	}
	return ownerKey{}, false
}

// AddPriceTargetAlert stores a one-shot price target alert for a user.
func (e *Engine) AddPriceTargetAlert(serverID, userID string, spec PriceTargetSpec) (Definition, error) {
	return e.addDefinition(serverID, userID, Definition{Kind: KindPriceTarget, PriceTarget: &spec})
}

// AddPriceChangeAlert stores a one-shot percent-change alert for a user.
func (e *Engine) AddPriceChangeAlert(serverID, userID string, spec PriceChangeSpec) (Definition, error) {
	return e.addDefinition(serverID, userID, Definition{Kind: KindPriceChange, PriceChange: &spec})
}

// AddMarginAlert stores a one-shot margin alert for a user.
func (e *Engine) AddMarginAlert(serverID, userID string, spec MarginSpec) (Definition, error) {
	return e.addDefinition(serverID, userID, Definition{Kind: KindMargin, Margin: &spec})
}

func (e *Engine) addDefinition(serverID, userID string, def Definition) (Definition, error) {
	def.ID = uuid.NewString()
	def.ServerID = serverID
	def.UserID = userID
	def.CreatedAt = e.clock().UTC()

	if err := def.validate(); err != nil {
		return Definition{}, fmt.Errorf("invalid alert definition: %w", err)
	}

	e.mu.Lock()
	owner := ownerKey{serverID: serverID, userID: userID}
	e.defs[owner] = append(e.defs[owner], &def)
	e.saveLocked()
	e.mu.Unlock()

	return def, nil
}

// DeleteAlert removes a stored alert by id. Returns false when not found.
func (e *Engine) DeleteAlert(serverID, userID, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	owner := ownerKey{serverID: serverID, userID: userID}
	defs := e.defs[owner]
	for i, def := range defs {
		if def.ID == id {
			e.defs[owner] = append(defs[:i], defs[i+1:]...)
			e.saveLocked()
			return true
		}
	}
	return false
}

// ListAlerts returns copies of a user's stored alerts.
func (e *Engine) ListAlerts(serverID, userID string) []Definition {
	e.mu.Lock()
	defer e.mu.Unlock()

	defs := e.defs[ownerKey{serverID: serverID, userID: userID}]
	out := make([]Definition, 0, len(defs))
	for _, def := range defs {
		out = append(out, *def)
	}
	return out
}

// ServerConfig returns a copy of a server's configuration, creating it from
// defaults on first access.
func (e *Engine) ServerConfig(serverID string) ServerConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.serverConfigLocked(serverID)
}

func (e *Engine) serverConfigLocked(serverID string) *ServerConfig {
	if cfg, ok := e.servers[serverID]; ok {
		return cfg
	}
	cfg := e.opts.Defaults
	e.servers[serverID] = &cfg
	return &cfg
}

// UpdateServerConfig applies a mutation to a server's configuration and
// persists the result.
func (e *Engine) UpdateServerConfig(serverID string, mutate func(*ServerConfig)) ServerConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.serverConfigLocked(serverID)
	mutate(cfg)
	e.saveLocked()
	return *cfg
}

// SetWatchlist replaces a server's watchlist. An empty list means the scan
// covers the whole liquid item universe.
func (e *Engine) SetWatchlist(serverID string, itemIDs []int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(itemIDs) == 0 {
		delete(e.watchlists, serverID)
	} else {
		e.watchlists[serverID] = append([]int(nil), itemIDs...)
	}
	e.saveLocked()
}

// Watchlist returns a copy of a server's watchlist.
func (e *Engine) Watchlist(serverID string) []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.watchlists[serverID]...)
}

// WatchedItemIDs returns the deduplicated union of all server watchlists,
// sorted ascending.
func (e *Engine) WatchedItemIDs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[int]struct{})
	ids := make([]int, 0)
	for _, items := range e.watchlists {
		for _, id := range items {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Scan evaluates every un-triggered user alert and every enabled server's
// watchlist against current analytics output and returns the triggered
// payloads. User alerts are consumed here (one-shot); server signals are
// cooldown-gated candidates whose cooldown is only set once Commit admits
// them. The caller owns delivery.
func (e *Engine) Scan(ctx context.Context) []Payload {
	now := e.clock().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pruneCooldownsLocked(now)

	var payloads []Payload
	dirty := false

	for owner, defs := range e.defs {
		for _, def := range defs {
			if def.Triggered {
				continue
			}
			payload, fired := e.evaluateDefinition(*def, now)
			if !fired {
				continue
			}
			def.Triggered = true
			dirty = true
			payload.ChannelID = e.serverConfigLocked(owner.serverID).ChannelID
			payloads = append(payloads, payload)
		}
	}

	for serverID, cfg := range e.servers {
		if !cfg.Enabled {
			continue
		}
		items := e.watchlists[serverID]
		if len(items) == 0 {
			items = e.store.LiquidItemIDs()
		}
		for _, itemID := range items {
			select {
			case <-ctx.Done():
				if dirty {
					e.saveLocked()
				}
				return payloads
			default:
			}
			payloads = append(payloads, e.evaluateServerItem(serverID, cfg, itemID, now)...)
		}
	}

	if dirty {
		e.saveLocked()
	}
	return payloads
}

func (e *Engine) evaluateDefinition(def Definition, now time.Time) (Payload, bool) {
	payload := Payload{
		ServerID:   def.ServerID,
		UserID:     def.UserID,
		AlertID:    def.ID,
		Item:       e.itemRef(def.ItemID()),
		ObservedAt: now,
	}

	switch def.Kind {
	case KindPriceTarget:
		spec := def.PriceTarget
		point, ok := e.store.Price(spec.ItemID)
		if !ok || point.InstantBuy == nil {
			return Payload{}, false
		}
		price := *point.InstantBuy
		crossed := (spec.Direction == DirectionAbove && price >= spec.TargetPrice) ||
			(spec.Direction == DirectionBelow && price <= spec.TargetPrice)
		if !crossed {
			return Payload{}, false
		}
		payload.Type = PayloadPriceTarget
		payload.Price = price
		payload.TargetPrice = spec.TargetPrice
		return payload, true

	case KindPriceChange:
		spec := def.PriceChange
		change, ok := e.analytics.PriceChange(spec.ItemID, spec.WindowHours)
		if !ok {
			return Payload{}, false
		}
		fired := (spec.ThresholdPct > 0 && change >= spec.ThresholdPct) ||
			(spec.ThresholdPct < 0 && change <= spec.ThresholdPct)
		if !fired {
			return Payload{}, false
		}
		payload.Type = PayloadPriceChange
		payload.ChangePct = change
		payload.WindowHours = spec.WindowHours
		return payload, true

	case KindMargin:
		spec := def.Margin
		margin, ok := e.analytics.Margin(spec.ItemID)
		if !ok {
			return Payload{}, false
		}
		if margin.MarginPct < spec.MinMarginPct || margin.Margin < spec.MinMarginGp {
			return Payload{}, false
		}
		payload.Type = PayloadMargin
		payload.MarginGp = margin.Margin
		payload.MarginPct = margin.MarginPct
		payload.Price = margin.BuyAt
		return payload, true
	}

	e.logger.Error().Str("kind", string(def.Kind)).Str("alert_id", def.ID).Msg("unreachable alert kind")
	return Payload{}, false
}

func (e *Engine) evaluateServerItem(serverID string, cfg *ServerConfig, itemID int, now time.Time) []Payload {
	var payloads []Payload

	base := Payload{
		ServerID:   serverID,
		ChannelID:  cfg.ChannelID,
		Item:       e.itemRef(itemID),
		ObservedAt: now,
	}

	if cfg.PumpEnabled && !e.isOnCooldownLocked(serverID, itemID, PayloadPump, cfg.Cooldown, now) {
		result, ok := e.analytics.DetectPump(itemID, analytics.PumpConfig{
			MinIncreasePct:   cfg.PumpMinIncreasePct,
			SustainedPeriods: cfg.PumpSustainedPeriods,
		})
		if ok && result.Detected {
			p := base
			p.Type = PayloadPump
			p.ChangePct = result.ChangePct
			p.Severity = result.Severity
			p.Confidence = result.Confidence
			payloads = append(payloads, p)
		}
	}

	if cfg.DumpEnabled && !e.isOnCooldownLocked(serverID, itemID, PayloadDump, cfg.Cooldown, now) {
		result, ok := e.analytics.DetectDump(itemID, analytics.DumpConfig{MinDropPct: cfg.DumpMinDropPct})
		if ok && result.Detected {
			p := base
			p.Type = PayloadDump
			p.ChangePct = -result.DropPct
			p.Severity = result.Severity
			p.Confidence = result.Confidence
			payloads = append(payloads, p)
		}
	}

	if cfg.CrashEnabled || cfg.SpikeEnabled {
		change, ok := e.analytics.PriceChange(itemID, cfg.TimeframeHours)
		if ok {
			if cfg.CrashEnabled && change <= -cfg.Crash.ModeratePct &&
				!e.isOnCooldownLocked(serverID, itemID, PayloadCrash, cfg.Cooldown, now) {
				p := base
				p.Type = PayloadCrash
				p.ChangePct = change
				p.WindowHours = cfg.TimeframeHours
				p.Severity = tierSeverity(-change, cfg.Crash)
				payloads = append(payloads, p)
			}
			if cfg.SpikeEnabled && change >= cfg.Spike.ModeratePct &&
				!e.isOnCooldownLocked(serverID, itemID, PayloadSpike, cfg.Cooldown, now) {
				p := base
				p.Type = PayloadSpike
				p.ChangePct = change
				p.WindowHours = cfg.TimeframeHours
				p.Severity = tierSeverity(change, cfg.Spike)
				payloads = append(payloads, p)
			}
		}
	}

	if cfg.UnusualEnabled && !e.isOnCooldownLocked(serverID, itemID, PayloadUnusual, cfg.Cooldown, now) {
		result, ok := e.analytics.UnusualActivity(itemID)
		if ok && result.Score >= cfg.UnusualMinScore {
			p := base
			p.Type = PayloadUnusual
			p.Score = result.Score
			p.Reasons = result.Reasons
			payloads = append(payloads, p)
		}
	}

	return payloads
}

func tierSeverity(magnitude float64, tiers TierThresholds) analytics.Severity {
	switch {
	case magnitude >= tiers.ExtremePct:
		return analytics.SeverityExtreme
	case magnitude >= tiers.SeverePct:
		return analytics.SeveritySevere
	case magnitude >= tiers.ModeratePct:
		return analytics.SeverityModerate
	default:
		return analytics.SeverityLow
	}
}

// Commit applies the per-channel rate limit to a scanned payload and, when
// admitted, records its cooldown. Call it immediately before handing the
// payload to the sink; a later delivery failure does not roll this back (the
// alert is consumed either way). Returns false when the payload must be
// dropped.
func (e *Engine) Commit(p Payload) bool {
	now := e.clock().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.serverConfigLocked(p.ServerID)
	if p.ChannelID != "" && cfg.MaxAlertsPerHour > 0 {
		window, ok := e.rates[p.ChannelID]
		if !ok || now.Sub(window.start) >= time.Hour {
			window = &rateWindow{start: now}
			e.rates[p.ChannelID] = window
		}
		if window.count >= cfg.MaxAlertsPerHour {
			e.logger.Debug().Str("channel_id", p.ChannelID).Str("type", string(p.Type)).Msg("rate ceiling reached; dropping alert")
			return false
		}
		window.count++
	}

	if isServerKind(p.Type) {
		e.cooldowns[cooldownKey{serverID: p.ServerID, itemID: p.Item.ID, kind: p.Type}] = now
	}
	return true
}

func isServerKind(t PayloadType) bool {
	switch t {
	case PayloadPump, PayloadDump, PayloadCrash, PayloadSpike, PayloadUnusual:
		return true
	default:
		return false
	}
}

func (e *Engine) isOnCooldownLocked(serverID string, itemID int, kind PayloadType, window time.Duration, now time.Time) bool {
	if window <= 0 {
		return false
	}
	last, ok := e.cooldowns[cooldownKey{serverID: serverID, itemID: itemID, kind: kind}]
	return ok && now.Sub(last) < window
}

func (e *Engine) pruneCooldownsLocked(now time.Time) {
	for key, last := range e.cooldowns {
		if now.Sub(last) > e.opts.CooldownMaxAge {
			delete(e.cooldowns, key)
		}
	}
}

func (e *Engine) itemRef(itemID int) ItemRef {
	ref := ItemRef{ID: itemID}
	if item, ok := e.store.Item(itemID); ok {
		ref.Name = item.Name
	}
	return ref
}

// saveLocked persists current state. Persistence failure is logged; the
// in-memory state stays authoritative and the next successful write
// reconciles.
func (e *Engine) saveLocked() {
	if e.state == nil {
		return
	}

	state := NewState()
	for owner, defs := range e.defs {
		list := make([]Definition, 0, len(defs))
		for _, def := range defs {
			list = append(list, *def)
		}
		state.Alerts[owner.String()] = list
	}
	for serverID, cfg := range e.servers {
		state.Servers[serverID] = *cfg
	}
	for serverID, items := range e.watchlists {
		state.Watchlists[serverID] = append([]int(nil), items...)
	}

	if err := e.state.Save(state); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist alert state")
	}
}
