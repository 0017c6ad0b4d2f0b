package cmd

import (
	"context"
	"maps"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/tunnelkeeper/cli"
	"github.com/grovetools/tunnelkeeper/internal/daemon/engine"
	"github.com/grovetools/tunnelkeeper/internal/daemon/pidfile"
	"github.com/grovetools/tunnelkeeper/pkg/descriptor"
	"github.com/grovetools/tunnelkeeper/pkg/registry"
	"github.com/grovetools/tunnelkeeper/state"
)

// NewRunCmd returns the command that runs the supervisor in the foreground.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the session supervisor",
		Long: `Scans the workspace for session descriptors and keeps each session's
tunnel client running and connected until interrupted.

Descriptors added after startup are reported but not supervised until the
next restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "supervisor")

			pidPath := cfg.Supervisor.PidFile
			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.WithError(err).Error("Failed to release pid file")
				}
			}()

			store, err := newStore(cfg)
			if err != nil {
				return err
			}
			ids, err := store.Scan()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				logger.WithField("workspace", store.Dir()).Warn("No session descriptors found")
			}

			host, err := newHost(cfg, cli.GetLogger(cmd, "hostctl"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(withContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pending := newPendingSessions()
			watcher, err := descriptor.NewWatcher(store, ids, cli.GetLogger(cmd, "watcher"))
			if err != nil {
				logger.WithError(err).Warn("Workspace watcher unavailable")
			} else {
				defer watcher.Close()
				watcher.OnChange(pending.track)
				go watcher.Start(ctx)
			}

			statePath := state.PathFor(pidPath)
			defer func() {
				if err := state.Remove(statePath); err != nil {
					logger.WithError(err).Warn("Failed to remove state file")
				}
			}()

			var eng *engine.Engine
			eng = engine.New(store, host, registry.New(ids), cli.GetLogger(cmd, "engine"),
				engine.WithPollInterval(cfg.Supervisor.PollInterval.Std()),
				engine.WithLaunchGrace(cfg.Supervisor.LaunchGrace.Std()),
				engine.WithPassHook(func(pass string) {
					if err := state.Save(statePath, snapshot(eng, store.Dir(), pass, pending.list())); err != nil {
						logger.WithError(err).Warn("Failed to write state file")
					}
				}),
			)

			logger.WithFields(logrus.Fields{
				"pid":       os.Getpid(),
				"workspace": store.Dir(),
				"sessions":  len(ids),
			}).Info("Starting supervisor")

			err = eng.Run(ctx)
			logger.Info("Supervisor stopped")
			return err
		},
	}
}

// pendingSessions collects descriptors that appeared after the startup scan.
type pendingSessions struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newPendingSessions() *pendingSessions {
	return &pendingSessions{ids: make(map[string]bool)}
}

func (p *pendingSessions) track(c descriptor.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch c.Kind {
	case descriptor.ChangeAdded:
		p.ids[c.ID] = true
	case descriptor.ChangeRemoved:
		delete(p.ids, c.ID)
	}
}

func (p *pendingSessions) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := slices.Collect(maps.Keys(p.ids))
	slices.Sort(ids)
	return ids
}

// snapshot captures the engine's session states for the state file.
func snapshot(eng *engine.Engine, workspace, pass string, pending []string) *state.State {
	reg := eng.Registry()
	states := eng.States()

	st := &state.State{
		SupervisorPID: os.Getpid(),
		Workspace:     workspace,
		Pass:          pass,
		UpdatedAt:     time.Now().UTC(),
		Pending:       pending,
	}
	for _, id := range reg.Total() {
		s := state.Session{ID: id, State: string(states[id])}
		if pid, ok := reg.PIDFor(id); ok {
			s.PID = pid
		}
		st.Sessions = append(st.Sessions, s)
	}
	return st
}

func withContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
