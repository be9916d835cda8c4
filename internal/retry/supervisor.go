// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package retry implements the Retry Supervisor: it wraps the
// Sync Coordinator's Update with an offline gate, exponential backoff on
// network errors, and a bounded store-retry for transient ConstraintError
// failures.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kotobadb/kotobadb/internal/errs"
	"github.com/kotobadb/kotobadb/internal/logging"
	"github.com/kotobadb/kotobadb/internal/model"
	"github.com/kotobadb/kotobadb/internal/syncer"
)

const (
	initialDelayMin = 3 * time.Second
	initialDelayMax = 6 * time.Second
	maxBackoff      = 12 * time.Hour
	maxStoreRetries = 2
	idleTick        = time.Second
)

// Listener receives a Supervisor-level signal. Currently the only signal
// raised is Offline, fired once each time waitOnline finds the gate closed
// and parks a caller behind it.
type Listener func(series model.MajorDataSeries, err error)

// Supervisor sits above a syncer.Coordinator, providing the retry and
// offline-gating policy as a layer separate from the Coordinator's own
// state machine.
type Supervisor struct {
	coord *syncer.Coordinator
	log   *logging.Logger

	mu        sync.Mutex
	online    bool
	onlineCh  chan struct{}
	runtimes  map[model.MajorDataSeries]*supervisorRun
	listeners []Listener
}

type supervisorRun struct {
	active  bool
	lang    string
	cancel  context.CancelFunc
	waiters []chan error
}

func New(coord *syncer.Coordinator, log *logging.Logger) *Supervisor {
	if log == nil {
		log = logging.Nop()
	}
	return &Supervisor{
		coord:    coord,
		log:      log,
		online:   true,
		onlineCh: make(chan struct{}),
		runtimes: make(map[model.MajorDataSeries]*supervisorRun),
	}
}

// SetOnline flips the offline gate. Going false->true releases every
// UpdateWithRetry call currently parked waiting for connectivity.
func (s *Supervisor) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if online == s.online {
		return
	}
	s.online = online
	if online {
		close(s.onlineCh)
		s.onlineCh = make(chan struct{})
	}
}

// AddChangeListener registers fn for every Offline signal waitOnline
// raises, and returns an unsubscribe func.
func (s *Supervisor) AddChangeListener(fn Listener) func() {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

func (s *Supervisor) emit(series model.MajorDataSeries, err error) {
	s.mu.Lock()
	snapshot := make([]Listener, len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		if l != nil {
			l(series, err)
		}
	}
}

func (s *Supervisor) waitOnline(ctx context.Context, series model.MajorDataSeries) error {
	s.mu.Lock()
	if s.online {
		s.mu.Unlock()
		return nil
	}
	ch := s.onlineCh
	s.mu.Unlock()

	s.emit(series, errs.New(errs.Offline))

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errs.New(errs.Aborted)
	}
}

func (s *Supervisor) runtimeFor(series model.MajorDataSeries) *supervisorRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.runtimes[series]
	if !ok {
		rt = &supervisorRun{}
		s.runtimes[series] = rt
	}
	return rt
}

// UpdateWithRetry runs series' update under the offline gate and retry
// policy, coalescing concurrent same-language callers exactly as
// Coordinator.Update does, and cancelling-then-restarting on a
// different-language call. updateNow bypasses the offline gate: an
// explicit, user-initiated update is allowed to attempt the network once
// even while offline.
func (s *Supervisor) UpdateWithRetry(ctx context.Context, series model.MajorDataSeries, lang string, updateNow bool) error {
	rt := s.runtimeFor(series)

	rt2 := func() (wait chan error, start bool) {
		mu := &s.mu
		mu.Lock()
		defer mu.Unlock()
		if rt.active {
			if rt.lang == lang {
				ch := make(chan error, 1)
				rt.waiters = append(rt.waiters, ch)
				return ch, false
			}
			if rt.cancel != nil {
				rt.cancel()
			}
		}
		return nil, true
	}
	if ch, start := rt2(); !start {
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	rt.active = true
	rt.lang = lang
	rt.cancel = cancel
	s.mu.Unlock()

	err := s.run(runCtx, series, lang, updateNow)

	s.mu.Lock()
	rt.active = false
	rt.cancel = nil
	cancel()
	waiters := rt.waiters
	rt.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w <- err
	}
	return err
}

func (s *Supervisor) run(ctx context.Context, series model.MajorDataSeries, lang string, updateNow bool) error {
	if !updateNow {
		if err := s.waitOnline(ctx, series); err != nil {
			return err
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = randomInitialDelay()
	bo.Multiplier = 2
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	// A committed file moves UpdateState.LastCheck forward; resetting the
	// backoff on that signal (rather than after every sleep) is what lets
	// the interval actually double across a run of consecutive failures.
	var lastCommit *int64
	unsubscribe := s.coord.AddChangeListener(func(topic string, ds model.DataSeries, state model.UpdateState) {
		if topic != "stateupdated" || ds != series.Series() {
			return
		}
		if state.LastCheck != nil && (lastCommit == nil || *state.LastCheck != *lastCommit) {
			lastCommit = state.LastCheck
			bo.Reset()
		}
	})
	defer unsubscribe()

	storeRetries := 0
	for {
		err := s.coord.Update(ctx, series, lang)
		if err == nil {
			return nil
		}

		var e *errs.Error
		if errors.As(err, &e) {
			switch {
			case errs.IsRunLevel(err):
				if e.Code == errs.ConstraintError && storeRetries < maxStoreRetries {
					storeRetries++
					s.log.Warn("store error, retrying on next idle tick", "series", series, "attempt", storeRetries)
					if werr := sleep(ctx, idleTick); werr != nil {
						return werr
					}
					continue
				}
				return err
			case errs.IsNetwork(err):
				d := bo.NextBackOff()
				s.log.Warn("network error, backing off", "series", series, "delay", d)
				if werr := sleep(ctx, d); werr != nil {
					return werr
				}
				continue
			}
		}
		return err
	}
}

// CancelUpdateWithRetry cancels series' in-flight retry loop (and whatever
// Coordinator update it is currently waiting on or running).
func (s *Supervisor) CancelUpdateWithRetry(series model.MajorDataSeries) {
	rt := s.runtimeFor(series)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt.cancel != nil {
		rt.cancel()
	}
}

func randomInitialDelay() time.Duration {
	span := initialDelayMax - initialDelayMin
	return initialDelayMin + time.Duration(rand.Int63n(int64(span)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errs.New(errs.Aborted)
	}
}
