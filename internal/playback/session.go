package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fire-timeline-service/internal/domain"
	"github.com/couchcryptid/fire-timeline-service/internal/fetch"
	"github.com/couchcryptid/fire-timeline-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MaxHistoryDays is the widest range /history_daily accepts.
const MaxHistoryDays = 7

var (
	// ErrBackendNotReady is returned by loads attempted before the health gate passed.
	ErrBackendNotReady = errors.New("backend not ready")
	// ErrInvalidRange is returned for malformed or oversized history ranges.
	ErrInvalidRange = errors.New("invalid history range")
)

// Backend is the fire backend collaborator.
type Backend interface {
	Health(ctx context.Context) (domain.HealthReport, error)
	Fires(ctx context.Context, minConf domain.Confidence) (domain.FeatureCollection, error)
	FetchNow(ctx context.Context) (int, error)
	HistoryDaily(ctx context.Context, start, end string, minConf domain.Confidence) (domain.HistoryResponse, error)
	Weather(ctx context.Context) (domain.WeatherReport, error)
}

// SnapshotPublisher receives a summary of every timeline rebuild.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Settings are the session's startup parameters.
type Settings struct {
	MinConfidence  domain.Confidence
	Mode           domain.Mode
	HistoryDays    int
	Retry          fetch.Policy
	HealthInterval time.Duration
}

// Session is the single owner of the event store, the playback cursor and
// the wind cache. Loads complete asynchronously with respect to each other;
// each completion replaces the timeline under the session lock, so when
// requests overlap the last one to complete wins. Superseded requests are
// not cancelled.
type Session struct {
	backend   Backend
	publisher SnapshotPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	health      *fetch.Retrier
	fires       *fetch.Retrier
	historyDays int
	ready       atomic.Bool

	mu        sync.Mutex
	store     *domain.EventStore
	cursor    *domain.Cursor
	wind      *domain.WindEstimator
	live      *domain.WindSample
	windErr   string
	minConf   domain.Confidence
	source    string
	status    Status
	lastStats domain.StoreStats
}

// New creates a Session. publisher may be nil to disable snapshot publishing.
func New(settings Settings, backend Backend, publisher SnapshotPublisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Session {
	if settings.HistoryDays < 1 || settings.HistoryDays > MaxHistoryDays {
		settings.HistoryDays = MaxHistoryDays
	}
	if settings.HealthInterval <= 0 {
		settings.HealthInterval = 3 * time.Second
	}
	if settings.Retry == (fetch.Policy{}) {
		settings.Retry = fetch.DefaultPolicy()
	}

	store := domain.NewEventStore()
	s := &Session{
		backend:     backend,
		publisher:   publisher,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		health:      fetch.NewRetrier("health", fetch.FixedPolicy(settings.HealthInterval), clock, logger, metrics),
		fires:       fetch.NewRetrier("fires", settings.Retry, clock, logger, metrics),
		historyDays: settings.HistoryDays,
		store:       store,
		cursor:      domain.NewCursor(store, settings.Mode),
		wind:        domain.NewWindEstimator(clock),
		minConf:     settings.MinConfidence,
	}
	s.status = Status{Kind: StatusWaiting, Message: "waiting for backend", At: clock.Now()}

	s.health.OnRetry(func(n fetch.Notice) {
		s.setStatus(StatusWaiting, fmt.Sprintf("backend not responding (%v), retrying in %s", errors.Unwrap(n.Err), n.Delay))
	})
	s.fires.OnRetry(func(n fetch.Notice) {
		s.setStatus(StatusRetrying, fmt.Sprintf("retrying in %.1fs (attempt %d)", n.Delay.Seconds(), n.Attempt))
	})
	return s
}

// Run performs the startup sequence: wait for the backend health gate, then
// load the live timeline and the live wind sample. It returns nil when ctx
// is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("playback session started", "mode", s.Mode(), "min_conf", s.MinConfidence())

	if err := s.WaitReady(ctx); err != nil {
		if ctx.Err() != nil {
			s.logger.Info("playback session stopping", "reason", ctx.Err())
			return nil
		}
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := s.RefreshWind(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("live wind unavailable", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := s.Reload(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("initial load failed", "error", err)
		}
	}()
	wg.Wait()
	return nil
}

// WaitReady blocks until GET /health succeeds, polling at the fixed health interval.
func (s *Session) WaitReady(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	h, err := fetch.Do(ctx, s.health, s.backend.Health)
	if err != nil {
		return err
	}
	s.ready.Store(true)
	s.metrics.BackendReady.Set(1)
	s.setStatus(StatusOK, fmt.Sprintf("backend ready total=%d last_fetch=%s", h.Total, orNull(h.LastFetch)))
	s.logger.Info("backend ready", "total", h.Total, "last_fetch", h.LastFetch)
	return nil
}

// CheckReadiness returns nil once the health gate has passed and the live
// timeline has loaded at least once.
func (s *Session) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("backend health gate has not passed yet")
	}
	if !s.fires.Succeeded() {
		return errors.New("timeline has not loaded yet")
	}
	return nil
}

// Reload fetches the live detections and rebuilds the timeline on the most
// recent day. Until the first success it retries with backoff; afterwards a
// failure is returned once as an interactive error.
func (s *Session) Reload(ctx context.Context) (domain.Snapshot, error) {
	if !s.ready.Load() {
		s.setStatus(StatusWaiting, "waiting for backend")
		return domain.Snapshot{}, ErrBackendNotReady
	}

	minConf := s.MinConfidence()
	start := s.clock.Now()
	s.setStatus(StatusLoading, "downloading")

	fc, err := fetch.Do(ctx, s.fires, func(ctx context.Context) (domain.FeatureCollection, error) {
		return s.backend.Fires(ctx, minConf)
	})
	if err != nil {
		if ctx.Err() == nil {
			s.setStatus(StatusError, fmt.Sprintf("fires: %v", errors.Unwrap(err)))
		}
		return domain.Snapshot{}, err
	}

	events := domain.EventsFromFeatures(fc.Features)
	snap := s.apply(events, domain.ResetToLatest, domain.SourceLive)

	if len(events) == 0 {
		s.setStatus(StatusEmpty, "no detections (check backend key and range)")
	} else {
		elapsed := s.clock.Since(start)
		s.setStatus(StatusOK, fmt.Sprintf("%d detections in %d ms", len(events), elapsed.Milliseconds()))
	}
	s.publish(ctx, snap)
	return snap, nil
}

// ForceFetch asks the backend to resync from its upstream, then reloads.
// The resync is a manual action and is never retried.
func (s *Session) ForceFetch(ctx context.Context) (int, error) {
	if !s.ready.Load() {
		return 0, ErrBackendNotReady
	}
	s.setStatus(StatusLoading, "forcing remote fetch")

	added, err := s.backend.FetchNow(ctx)
	s.recordOneShot("fetch_now", err)
	if err != nil {
		s.setStatus(StatusError, fmt.Sprintf("force fetch: %v", err))
		return 0, fetch.NewInteractive("fetch_now", err)
	}
	s.logger.Info("forced backend fetch", "added", added)

	if _, err := s.Reload(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// DefaultHistoryRange is the inclusive range ending today that spans the
// configured number of days.
func (s *Session) DefaultHistoryRange() (start, end string) {
	now := s.clock.Now().UTC()
	return domain.DayKey(now.AddDate(0, 0, -(s.historyDays - 1))), domain.DayKey(now)
}

// LoadHistory loads an inclusive UTC day range and rebuilds the timeline on
// its earliest day. History loads are manual and never retried.
func (s *Session) LoadHistory(ctx context.Context, start, end string) (domain.Snapshot, error) {
	if err := validateRange(start, end); err != nil {
		return domain.Snapshot{}, err
	}
	if !s.ready.Load() {
		return domain.Snapshot{}, ErrBackendNotReady
	}

	minConf := s.MinConfidence()
	s.setStatus(StatusLoading, "loading history")

	resp, err := s.backend.HistoryDaily(ctx, start, end, minConf)
	s.recordOneShot("history", err)
	if err != nil {
		s.setStatus(StatusError, fmt.Sprintf("history: %v", err))
		return domain.Snapshot{}, fetch.NewInteractive("history", err)
	}

	events := domain.EventsFromFeatures(resp.Features())
	snap := s.apply(events, domain.ResetToFirst, domain.SourceHistory)

	if len(events) == 0 {
		s.setStatus(StatusEmpty, fmt.Sprintf("no data in range %s..%s", start, end))
	} else {
		msg := fmt.Sprintf("history %d days total=%d", len(resp.Days), resp.Total)
		if resp.FetchedExtra {
			msg += " (fetched from upstream)"
		}
		s.setStatus(StatusOK, msg)
	}
	s.publish(ctx, snap)
	return snap, nil
}

// RefreshWind fetches the live wind observation used for today and as the
// baseline for estimates. On failure the previous live sample, if any, is kept.
func (s *Session) RefreshWind(ctx context.Context) (domain.WindSample, error) {
	rep, err := s.backend.Weather(ctx)
	s.recordOneShot("weather", err)
	if err == nil {
		var sample domain.WindSample
		sample, err = rep.LiveSample(s.clock.Now())
		if err == nil {
			s.mu.Lock()
			s.live = &sample
			s.windErr = ""
			s.mu.Unlock()
			s.logger.Info("live wind updated", "speed", sample.Speed, "direction", sample.Direction, "source", sample.Source)
			return sample, nil
		}
	}

	s.mu.Lock()
	s.windErr = err.Error()
	s.mu.Unlock()
	return domain.WindSample{}, fetch.NewInteractive("weather", err)
}

// WindFor returns the wind sample for dayKey: the live sample for today when
// available, otherwise a memoized estimate.
func (s *Session) WindFor(dayKey string) (domain.WindSample, error) {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()
	return s.estimate(dayKey, live)
}

func (s *Session) estimate(dayKey string, live *domain.WindSample) (domain.WindSample, error) {
	sample, kind, err := s.wind.Estimate(dayKey, live)
	if err != nil {
		return domain.WindSample{}, err
	}
	s.metrics.WindEstimates.WithLabelValues(string(kind)).Inc()
	return sample, nil
}

// Navigate moves the cursor. Out-of-range requests leave it in place.
func (s *Session) Navigate(n domain.Navigation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved, err := s.cursor.Navigate(n)
	if err != nil {
		return false, err
	}
	s.metrics.Navigations.WithLabelValues(string(n.Action)).Inc()
	return moved, nil
}

// SetMode switches the playback mode.
func (s *Session) SetMode(m domain.Mode) {
	s.mu.Lock()
	s.cursor.SetMode(m)
	s.mu.Unlock()
}

// Mode returns the playback mode.
func (s *Session) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Mode()
}

// SetMinConfidence changes the filter applied to subsequent loads.
func (s *Session) SetMinConfidence(c domain.Confidence) {
	s.mu.Lock()
	s.minConf = c
	s.mu.Unlock()
}

// MinConfidence returns the current load filter.
func (s *Session) MinConfidence() domain.Confidence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minConf
}

// DayCounts lists the loaded days and their detection counts.
func (s *Session) DayCounts() []domain.DayCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.DayCounts()
}

// Frame returns the selected frame and its visible subset with ages.
func (s *Session) Frame() FrameView {
	s.mu.Lock()
	defer s.mu.Unlock()

	fv := FrameView{Mode: s.cursor.Mode(), Index: s.cursor.Index()}
	f := s.cursor.CurrentFrame()
	if f == nil {
		return fv
	}
	end := f.FrameEnd
	fv.DayKey = f.DayKey
	fv.FrameEnd = &end
	fv.Count = f.Count
	fv.Events = domain.ProjectAges(s.cursor.CurrentSubset(), s.clock.Now())
	return fv
}

// View derives the presentation model for the current state.
func (s *Session) View() domain.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wind *domain.WindSample
	if day := s.cursor.CurrentDayKey(); day != "" {
		if sample, err := s.estimate(day, s.live); err == nil {
			wind = &sample
		}
	}
	return domain.Present(s.cursor, s.store.Len(), s.clock.Now(), wind)
}

// Status reports the session state for operators.
func (s *Session) Status() StatusReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := StatusReport{
		Status:        s.status,
		Ready:         s.ready.Load(),
		Loaded:        s.fires.Succeeded(),
		Source:        s.source,
		Mode:          s.cursor.Mode(),
		MinConfidence: s.minConf,
		Stats:         s.lastStats,
		WindError:     s.windErr,
	}
	if s.live != nil {
		live := *s.live
		r.LiveWind = &live
	}
	return r
}

// BackendHealth proxies GET /health once, without retry.
func (s *Session) BackendHealth(ctx context.Context) (domain.HealthReport, error) {
	h, err := s.backend.Health(ctx)
	s.recordOneShot("health", err)
	if err != nil {
		return domain.HealthReport{}, fetch.NewInteractive("health", err)
	}
	return h, nil
}

// apply replaces the store and rebuilds the cursor in one step.
func (s *Session) apply(events []domain.Event, policy domain.ResetPolicy, source string) domain.Snapshot {
	frames := domain.Bin(events)
	skipped := domain.Skipped(events)

	s.mu.Lock()
	s.store.Replace(events)
	s.cursor.Rebuild(frames, policy)
	s.source = source
	s.lastStats = s.store.Stats()
	s.mu.Unlock()

	s.metrics.EventsLoaded.Set(float64(len(events)))
	s.metrics.FramesLoaded.Set(float64(len(frames)))
	if skipped > 0 {
		s.metrics.EventsSkipped.Add(float64(skipped))
		s.logger.Debug("detections without a parsable timestamp skipped", "count", skipped)
	}
	s.logger.Info("timeline rebuilt", "source", source, "events", len(events), "frames", len(frames))

	return domain.NewSnapshot(uuid.NewString(), source, s.clock.Now(), frames, len(events), skipped)
}

func (s *Session) publish(ctx context.Context, snap domain.Snapshot) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
		s.metrics.SnapshotsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("snapshot publish failed", "snapshot_id", snap.ID, "error", err)
		return
	}
	s.metrics.SnapshotsPublished.WithLabelValues("success").Inc()
}

func (s *Session) recordOneShot(resource string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		s.logger.Error("fetch failed", "resource", resource, "error", err)
	}
	s.metrics.FetchRequests.WithLabelValues(resource, outcome).Inc()
}

func (s *Session) setStatus(kind StatusKind, msg string) {
	st := Status{Kind: kind, Message: msg, At: s.clock.Now()}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	s.logger.Debug("status changed", "kind", kind, "message", msg)
}

func validateRange(start, end string) error {
	sd, err := domain.ParseDayKey(start)
	if err != nil {
		return fmt.Errorf("%w: start_date %q is not YYYY-MM-DD", ErrInvalidRange, start)
	}
	ed, err := domain.ParseDayKey(end)
	if err != nil {
		return fmt.Errorf("%w: end_date %q is not YYYY-MM-DD", ErrInvalidRange, end)
	}
	if ed.Before(sd) {
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidRange)
	}
	if span := domain.DaysBetween(sd, ed) + 1; span > MaxHistoryDays {
		return fmt.Errorf("%w: %d days exceeds the %d day maximum", ErrInvalidRange, span, MaxHistoryDays)
	}
	return nil
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
