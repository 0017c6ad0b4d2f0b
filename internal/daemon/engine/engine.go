// Package engine runs the reconciliation loop that keeps every declared
// tunnel session connected.
package engine

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/tunnelkeeper/pkg/descriptor"
	"github.com/grovetools/tunnelkeeper/pkg/introspect"
	"github.com/grovetools/tunnelkeeper/pkg/registry"
)

const (
	// DefaultLaunchGrace is how long a freshly started client gets to connect.
	DefaultLaunchGrace = 3 * time.Second
	// DefaultPollInterval is the pause between reconciliation passes.
	DefaultPollInterval = 3 * time.Second
)

// State is the last observed lifecycle state of a session.
type State string

const (
	StateNew          State = "NEW"
	StateLaunching    State = "LAUNCHING"
	StateConnected    State = "CONNECTED"
	StateDisconnected State = "DISCONNECTED"
)

// Host observes and controls client processes.
type Host interface {
	Processes(ctx context.Context, image string) ([]introspect.ProcessRow, error)
	Connections(ctx context.Context, host string, states ...string) ([]introspect.ConnectionRow, error)
	Start(ctx context.Context, d descriptor.Descriptor) error
	Kill(ctx context.Context, pid int) error
}

// Loader loads session descriptors by id.
type Loader interface {
	Load(id string) (descriptor.Descriptor, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLaunchGrace sets the wait between starting a client and looking for its connection.
func WithLaunchGrace(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.launchGrace = d
		}
	}
}

// WithPollInterval sets the pause between passes.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithSleep replaces the cancellable wait used for both pauses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithPassHook calls fn with the pass id after every completed pass.
func WithPassHook(fn func(pass string)) Option {
	return func(e *Engine) {
		e.onPass = fn
	}
}

// Engine reconciles declared sessions against what the host reports.
type Engine struct {
	loader       Loader
	host         Host
	registry     *registry.Registry
	logger       *logrus.Entry
	launchGrace  time.Duration
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	onPass       func(pass string)

	mu     sync.RWMutex
	states map[string]State
}

// New creates an Engine over the registry's declared sessions.
func New(loader Loader, host Host, reg *registry.Registry, logger *logrus.Entry, opts ...Option) *Engine {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	e := &Engine{
		loader:       loader,
		host:         host,
		registry:     reg,
		logger:       logger,
		launchGrace:  DefaultLaunchGrace,
		pollInterval: DefaultPollInterval,
		sleep:        sleepContext,
		states:       make(map[string]State),
	}
	for _, id := range reg.Total() {
		e.states[id] = StateNew
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's session registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// State returns the last observed state of id.
func (e *Engine) State(id string) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[id]
}

// States returns the last observed state of every declared session.
func (e *Engine) States() map[string]State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]State, len(e.states))
	for id, s := range e.states {
		out[id] = s
	}
	return out
}

func (e *Engine) transition(id string, to State, log *logrus.Entry) {
	e.mu.Lock()
	from := e.states[id]
	e.states[id] = to
	e.mu.Unlock()

	if from != to {
		log.WithFields(logrus.Fields{"from": string(from), "state": string(to)}).Info("Session state changed")
	}
}

// Run reconciles until ctx is cancelled, pausing the poll interval between
// passes. Cancellation is not an error.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.WithFields(logrus.Fields{
		"sessions":      len(e.registry.Total()),
		"poll_interval": e.pollInterval.String(),
		"launch_grace":  e.launchGrace.String(),
	}).Info("Starting reconciliation loop")

	for {
		if ctx.Err() != nil {
			break
		}
		e.Reconcile(ctx)
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			break
		}
	}

	e.logger.Info("Reconciliation loop stopped")
	return nil
}

// Reconcile runs one pass over the declared sessions. Every session is
// observed before any is repaired, so a connected client is tracked before
// another session's launch could mistake it for a stale one. Failures are
// logged and never abort the pass.
func (e *Engine) Reconcile(ctx context.Context) {
	pass := uuid.NewString()
	log := e.logger.WithField("pass", pass)
	log.Debug("Reconciliation pass started")

	ids := e.registry.Total()
	var disconnected []string
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		sessLog := log.WithField("session", id)
		guard(sessLog, func() {
			if e.observe(ctx, id, sessLog) {
				disconnected = append(disconnected, id)
			}
		})
	}
	for _, id := range disconnected {
		if ctx.Err() != nil {
			return
		}
		sessLog := log.WithField("session", id)
		guard(sessLog, func() { e.repair(ctx, id, sessLog) })
	}

	log.WithField("tracked", e.registry.Len()).Debug("Reconciliation pass finished")
	if e.onPass != nil {
		e.onPass(pass)
	}
}

// guard runs fn, recovering and logging a panic.
func guard(log *logrus.Entry, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Recovered from panic while reconciling session")
		}
	}()
	fn()
}

// observe polls id and records its state. It reports whether id needs a
// relaunch; sessions that could not be observed are skipped this pass.
func (e *Engine) observe(ctx context.Context, id string, log *logrus.Entry) bool {
	pids, err := e.poll(ctx, id, log)
	if err != nil {
		log.WithError(err).Warn("Skipping session this pass")
		return false
	}
	if len(pids) > 0 {
		e.adopt(id, pids, log)
		e.transition(id, StateConnected, log)
		return false
	}
	if e.State(id) == StateConnected {
		e.transition(id, StateDisconnected, log)
	}
	return true
}

// repair drops tracked sessions that lost their connection and relaunches id.
func (e *Engine) repair(ctx context.Context, id string, log *logrus.Entry) {
	removed := e.RemovalSet(ctx, log)
	for _, pid := range removed {
		e.registry.Unregister(pid)
	}
	if len(removed) > 0 {
		log.WithField("pids", removed).Info("Unregistered disconnected sessions")
	}

	if _, err := e.launch(ctx, id, log); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("Launch failed")
	}
}

// Poll reports whether id's host has a live connection owned by a process
// running id's executable. A failed host query is an error, not a missing
// connection.
func (e *Engine) Poll(ctx context.Context, id string) (bool, error) {
	pids, err := e.poll(ctx, id, e.logger.WithField("session", id))
	return len(pids) > 0, err
}

func (e *Engine) poll(ctx context.Context, id string, log *logrus.Entry) ([]int, error) {
	d, err := e.loader.Load(id)
	if err != nil {
		return nil, err
	}
	return e.connectedPIDs(ctx, d, log)
}

// adopt registers the first untracked connected pid for an untracked
// session, so clients that connect after the launch grace are protected
// from stale-client cleanup.
func (e *Engine) adopt(id string, pids []int, log *logrus.Entry) {
	if e.registry.IsTracked(id) {
		return
	}
	for _, pid := range pids {
		if e.registry.IsTrackedPID(pid) {
			continue
		}
		if e.registry.Register(pid, id) {
			log.WithField("pid", pid).Info("Tracking connected client")
		}
		return
	}
}

// RemovalSet returns every tracked pid that no longer holds a live
// connection to its own session's host. A tracked pid whose connection
// query fails is kept until the next pass.
func (e *Engine) RemovalSet(ctx context.Context, log *logrus.Entry) []int {
	var removed []int
	for _, s := range e.registry.Snapshot() {
		tlog := log.WithFields(logrus.Fields{"pid": s.PID, "tracked_session": s.DescriptorID})

		d, err := e.loader.Load(s.DescriptorID)
		if err != nil {
			tlog.WithError(err).Warn("Tracked session descriptor unavailable")
			removed = append(removed, s.PID)
			continue
		}

		rows, err := e.host.Connections(ctx, d.Host, introspect.LiveStates...)
		if err != nil {
			tlog.WithError(err).Warn("Connection query failed, keeping session this pass")
			continue
		}
		if !slices.ContainsFunc(rows, func(r introspect.ConnectionRow) bool { return r.PID == s.PID }) {
			removed = append(removed, s.PID)
		}
	}
	return removed
}

// Launch (re)starts the client for id and registers the pid that connects
// within the launch grace period. It returns 0 with a nil error when the
// client started but no connection was observed yet.
func (e *Engine) Launch(ctx context.Context, id string) (int, error) {
	return e.launch(ctx, id, e.logger.WithField("session", id))
}

func (e *Engine) launch(ctx context.Context, id string, log *logrus.Entry) (int, error) {
	d, err := e.loader.Load(id)
	if err != nil {
		return 0, err
	}
	log = log.WithFields(logrus.Fields{
		"executable": d.Executable,
		"host":       d.Host,
	})

	if !e.registry.CanAdmit(id) {
		log.Debug("Session not admitted, skipping launch")
		return 0, nil
	}

	procs, err := e.host.Processes(ctx, d.Executable)
	if err != nil {
		return 0, err
	}
	for _, p := range procs {
		if e.registry.IsTrackedPID(p.PID) {
			continue
		}
		if err := e.host.Kill(ctx, p.PID); err != nil {
			log.WithError(err).WithField("pid", p.PID).Warn("Failed to kill stale client")
			continue
		}
		log.WithField("pid", p.PID).Info("Killed stale client")
	}

	e.transition(id, StateLaunching, log)
	if err := e.host.Start(ctx, d); err != nil {
		return 0, err
	}
	log.WithField("profile", d.Profile).Info("Started client")

	if err := e.sleep(ctx, e.launchGrace); err != nil {
		return 0, err
	}

	pids, err := e.connectedPIDs(ctx, d, log)
	if err != nil {
		return 0, err
	}
	for _, pid := range pids {
		if e.registry.IsTrackedPID(pid) {
			continue
		}
		if !e.registry.Register(pid, id) {
			log.WithField("pid", pid).Warn("Registry rejected pid")
			return 0, nil
		}
		e.transition(id, StateConnected, log.WithField("pid", pid))
		return pid, nil
	}

	log.Info("No connection observed yet, retrying next pass")
	return 0, nil
}

// connectedPIDs returns, in connection-table order, the pids that run d's
// executable and hold a live connection to d's host.
func (e *Engine) connectedPIDs(ctx context.Context, d descriptor.Descriptor, log *logrus.Entry) ([]int, error) {
	procs, err := e.host.Processes(ctx, d.Executable)
	if err != nil {
		return nil, err
	}
	if len(procs) == 0 {
		log.Debug("No client process running")
		return nil, nil
	}
	rows, err := e.host.Connections(ctx, d.Host, introspect.LiveStates...)
	if err != nil {
		return nil, err
	}

	running := make(map[int]struct{}, len(procs))
	for _, p := range procs {
		running[p.PID] = struct{}{}
	}
	var pids []int
	for _, r := range rows {
		if _, ok := running[r.PID]; ok && !slices.Contains(pids, r.PID) {
			pids = append(pids, r.PID)
		}
	}
	return pids, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
