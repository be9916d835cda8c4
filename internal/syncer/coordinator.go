// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package syncer implements the Sync Coordinator: the
// per-MajorDataSeries state machine that drives a version check, plans a
// download, and applies it, coalescing concurrent callers and fanning the
// kanji series out to a sequential radicals follow-on.
package syncer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kotobadb/kotobadb/internal/applier"
	"github.com/kotobadb/kotobadb/internal/events"
	"github.com/kotobadb/kotobadb/internal/logging"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/planner"
	"github.com/kotobadb/kotobadb/internal/store"
	"github.com/kotobadb/kotobadb/internal/transport"
	"github.com/kotobadb/kotobadb/internal/version"
)

// fallbackLang is tried when a series has no manifest entry for the
// requested language.
const fallbackLang = "en"

// Listener receives "stateupdated" and "deleted" notifications. Coordinator
// dispatches off a snapshot of the listener list taken under lock, so a
// listener that calls back into AddChangeListener or the unsubscribe func
// it returned never
// deadlocks or races the dispatch in progress.
type Listener func(topic string, series model.DataSeries, state model.UpdateState)

type seriesRuntime struct {
	mu      sync.Mutex
	state   model.UpdateState
	lang    string
	cancel  context.CancelFunc
	waiters []chan error
}

// Coordinator owns one seriesRuntime per MajorDataSeries. Radicals is
// updated only as kanji's follow-on and has no runtime of its own exposed
// to callers.
type Coordinator struct {
	store         *store.Store
	versionClient *version.Client
	fetcher       *transport.Fetcher
	applierImpl   *applier.Applier
	base          string
	log           *logging.Logger

	mu        sync.Mutex
	runtimes  map[model.MajorDataSeries]*seriesRuntime
	listeners []Listener
}

// New builds a Coordinator. base is the remote content host root.
func New(s *store.Store, vc *version.Client, fetcher *transport.Fetcher, base string, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	c := &Coordinator{
		store:         s,
		versionClient: vc,
		fetcher:       fetcher,
		applierImpl:   applier.New(s, log),
		base:          base,
		log:           log,
		runtimes:      make(map[model.MajorDataSeries]*seriesRuntime),
	}
	for _, ms := range model.AllMajorSeries {
		lastCheck, _ := c.loadLastCheck(ms.Series())
		c.runtimes[ms] = &seriesRuntime{state: model.IdleState(lastCheck)}
	}
	return c
}

func (c *Coordinator) loadLastCheck(series model.DataSeries) (*int64, error) {
	dv, err := c.store.GetDataVersion(series)
	if err != nil || dv == nil {
		return nil, err
	}
	// The store does not separately persist a lastCheck timestamp; the
	// presence of a committed DataVersion is itself evidence of a past
	// successful check, but lastCheck only needs to be meaningful to the
	// in-process UpdateState, so a fresh process simply starts with no
	// lastCheck until its own runs complete one.
	return nil, err
}

func (c *Coordinator) runtimeFor(series model.MajorDataSeries) *seriesRuntime {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt, ok := c.runtimes[series]
	if !ok {
		rt = &seriesRuntime{state: model.IdleState(nil)}
		c.runtimes[series] = rt
	}
	return rt
}

// State returns a snapshot of series' current UpdateState.
func (c *Coordinator) State(series model.MajorDataSeries) model.UpdateState {
	rt := c.runtimeFor(series)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.state
}

// AddChangeListener registers fn for every emit whose topic matches, and
// returns an unsubscribe func.
func (c *Coordinator) AddChangeListener(fn Listener) func() {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	idx := len(c.listeners) - 1
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.listeners) {
			c.listeners[idx] = nil
		}
	}
}

func (c *Coordinator) emit(topic string, series model.DataSeries, state model.UpdateState) {
	c.mu.Lock()
	snapshot := make([]Listener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	for _, l := range snapshot {
		if l != nil {
			l(topic, series, state)
		}
	}
}

// Update runs (or joins an in-flight run of) a check+download+apply cycle
// for series in lang. Concurrent callers requesting the same (series, lang)
// coalesce onto the one in-flight run; a call for a different lang cancels
// whatever is in flight and starts fresh.
func (c *Coordinator) Update(ctx context.Context, series model.MajorDataSeries, lang string) error {
	rt := c.runtimeFor(series)

	rt.mu.Lock()
	if rt.state.Kind != model.UpdateIdle {
		if rt.lang == lang {
			ch := make(chan error, 1)
			rt.waiters = append(rt.waiters, ch)
			rt.mu.Unlock()
			select {
			case err := <-ch:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if rt.cancel != nil {
			rt.cancel()
		}
	}
	rt.mu.Unlock()

	return c.runUpdate(ctx, series, lang)
}

// UpdateAll runs Update for every series in list concurrently, fanning out
// with an errgroup.Group the way independent MajorDataSeries updates share
// nothing but the Coordinator's own per-series runtimes. It returns the
// first error encountered, after every update has finished or been
// canceled alongside it.
func (c *Coordinator) UpdateAll(ctx context.Context, list []model.MajorDataSeries, lang string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, series := range list {
		series := series
		g.Go(func() error {
			return c.Update(gctx, series, lang)
		})
	}
	return g.Wait()
}

func (c *Coordinator) runUpdate(ctx context.Context, series model.MajorDataSeries, lang string) error {
	rt := c.runtimeFor(series)
	runCtx, cancel := context.WithCancel(ctx)

	rt.mu.Lock()
	rt.cancel = cancel
	rt.lang = lang
	rt.state = model.UpdateState{Kind: model.UpdateChecking, Series: series.Series()}
	snapshot := rt.state
	rt.mu.Unlock()
	c.emit("stateupdated", series.Series(), snapshot)

	err := c.doUpdate(runCtx, rt, series, lang)

	rt.mu.Lock()
	cancel()
	rt.cancel = nil
	lastCheck := rt.state.LastCheck
	rt.state = model.IdleState(lastCheck)
	finalState := rt.state
	waiters := rt.waiters
	rt.waiters = nil
	rt.mu.Unlock()
	c.emit("stateupdated", series.Series(), finalState)

	for _, w := range waiters {
		w <- err
	}
	return err
}

func (c *Coordinator) doUpdate(ctx context.Context, rt *seriesRuntime, series model.MajorDataSeries, lang string) error {
	dataSeries := series.Series()
	_, err := c.updateOne(ctx, rt, dataSeries, lang, true)
	if err != nil {
		return err
	}

	if series == model.MajorKanji {
		// Radicals follow-on: sequential, same language, and deliberately
		// silent on rt's own lastCheck (Open Question resolution: kanji's
		// lastCheck reflects only the kanji file(s) it itself committed).
		if _, rerr := c.updateOne(ctx, nil, model.SeriesRadicals, lang, false); rerr != nil {
			c.log.Warn("radicals follow-on failed", "err", rerr)
		}
	}
	return nil
}

// updateOne runs one series' check+plan+download+apply cycle. When rt is
// non-nil, progress is reported into it and onto the listener bus;
// otherwise the run proceeds silently (used for the radicals follow-on).
func (c *Coordinator) updateOne(ctx context.Context, rt *seriesRuntime, dataSeries model.DataSeries, lang string, forceFetch bool) (*model.DataVersion, error) {
	effectiveLang := lang
	if !c.versionClient.HasLanguage(ctx, dataSeries, lang) {
		effectiveLang = fallbackLang
	}

	latest, err := c.versionClient.LatestVersion(ctx, dataSeries, effectiveLang, forceFetch)
	if err != nil {
		return nil, err
	}

	currentDV, err := c.store.GetDataVersion(dataSeries)
	if err != nil {
		return nil, err
	}

	var current *planner.Current
	if currentDV != nil {
		if currentDV.Lang != effectiveLang {
			if err := c.store.DeleteSeriesData(dataSeries); err != nil {
				return nil, err
			}
		} else {
			current = &planner.Current{Version: currentDV.VersionNumber, PartInfo: currentDV.PartInfo}
		}
	}

	plan, err := planner.Compute(current, planner.Latest{Version: latest.Number(), Parts: latest.Parts})
	if err != nil {
		return nil, err
	}
	if len(plan.Files) == 0 {
		return currentDV, nil
	}

	if rt != nil {
		rt.mu.Lock()
		rt.state = model.UpdateState{Kind: model.UpdateUpdating, Series: dataSeries}
		snapshot := rt.state
		rt.mu.Unlock()
		c.emit("stateupdated", dataSeries, snapshot)
	}

	producer := events.NewProducer(c.base, dataSeries, effectiveLang, c.fetcher, plan)
	notify := func(n applier.Notification) {
		if rt == nil {
			return
		}
		rt.mu.Lock()
		switch n.Kind {
		case applier.NotifyProgress:
			rt.state.FileProgress = n.FileProgress
			rt.state.TotalProgress = n.TotalProgress
		case applier.NotifyFinishPatch:
			now := time.Now().UnixMilli()
			rt.state.LastCheck = &now
		case applier.NotifyParseError:
			c.log.Warn("parse error", "series", dataSeries, "err", n.ParseErr)
		}
		snapshot := rt.state
		rt.mu.Unlock()
		c.emit("stateupdated", dataSeries, snapshot)
	}

	return c.applierImpl.Apply(ctx, dataSeries, effectiveLang, producer, notify)
}

// CancelUpdate cancels series' in-flight run, if any; a no-op if idle.
func (c *Coordinator) CancelUpdate(series model.MajorDataSeries) {
	rt := c.runtimeFor(series)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.cancel != nil {
		rt.cancel()
	}
}

// DeleteSeries cancels any in-flight update for series, wipes its records
// and data-version row outright, and — for kanji — cascades to radicals,
// which has no update lifecycle of its own and is always deleted alongside
// the series that drives it.
func (c *Coordinator) DeleteSeries(series model.DataSeries) error {
	c.CancelUpdate(model.MajorDataSeries(series))

	if err := c.store.DeleteSeriesData(series); err != nil {
		return err
	}
	if series == model.SeriesKanji {
		if err := c.store.DeleteSeriesData(model.SeriesRadicals); err != nil {
			return err
		}
	}

	c.emit("deleted", series, model.IdleState(nil))
	return nil
}

// Destroy cancels every in-flight run and waits for each to reach idle,
// ignoring whatever error the cancellation produced, then closes the store,
// resets every series back to a fresh idle state, and notifies "deleted"
// observers before dropping the listener list. The Coordinator is not
// usable afterward; its store is gone.
func (c *Coordinator) Destroy() {
	c.mu.Lock()
	runtimes := make(map[model.MajorDataSeries]*seriesRuntime, len(c.runtimes))
	for ms, rt := range c.runtimes {
		runtimes[ms] = rt
	}
	c.mu.Unlock()

	for _, rt := range runtimes {
		rt.mu.Lock()
		var wait chan error
		if rt.cancel != nil {
			wait = make(chan error, 1)
			rt.waiters = append(rt.waiters, wait)
			rt.cancel()
		}
		rt.mu.Unlock()
		if wait != nil {
			<-wait
		}
	}

	c.store.Close()

	c.mu.Lock()
	for ms := range c.runtimes {
		c.runtimes[ms] = &seriesRuntime{state: model.IdleState(nil)}
	}
	c.mu.Unlock()

	for _, series := range model.AllSeries {
		c.emit("deleted", series, model.IdleState(nil))
	}

	c.mu.Lock()
	c.listeners = nil
	c.mu.Unlock()
}
