package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/tunnelkeeper/cli"
	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/internal/daemon/pidfile"
	"github.com/grovetools/tunnelkeeper/logging"
	"github.com/grovetools/tunnelkeeper/pkg/process"
	"github.com/grovetools/tunnelkeeper/state"
)

type supervisorStatus struct {
	Running  bool            `json:"running"`
	PID      int             `json:"pid,omitempty"`
	PidFile  string          `json:"pid_file"`
	Updated  *time.Time      `json:"updated_at,omitempty"`
	Sessions []state.Session `json:"sessions,omitempty"`
	Pending  []string        `json:"pending,omitempty"`
}

// NewStopCmd returns the command that stops a running supervisor.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			pidPath := cfg.Supervisor.PidFile

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeStorage, "failed to read pid file").
					WithDetail("path", pidPath)
			}
			if !running {
				return errors.New(errors.ErrCodeNotRunning, "supervisor is not running").
					WithDetail("pidFile", pidPath)
			}

			if err := process.Terminate(pid); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to send stop signal").
					WithDetail("pid", pid)
			}

			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).
				Success(fmt.Sprintf("Sent stop signal to supervisor (PID %d)", pid))
			return nil
		},
	}
}

// NewStatusCmd returns the command that reports whether a supervisor is running.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check supervisor status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			running, pid, err := pidfile.IsRunning(cfg.Supervisor.PidFile)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeStorage, "failed to read pid file").
					WithDetail("path", cfg.Supervisor.PidFile)
			}
			status := supervisorStatus{Running: running, PidFile: cfg.Supervisor.PidFile}
			if running {
				status.PID = pid
				st, err := state.Load(state.PathFor(cfg.Supervisor.PidFile))
				if err != nil {
					cli.GetLogger(cmd, "status").WithError(err).Warn("Failed to read state file")
				} else if st.SupervisorPID == pid {
					status.Sessions = st.Sessions
					status.Updated = &st.UpdatedAt
					status.Pending = st.Pending
				}
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			} else {
				pretty := logging.NewPrettyLogger().WithWriter(out)
				if running {
					pretty.Success(fmt.Sprintf("Running (PID: %d)", pid))
				} else {
					pretty.WarnPretty("Stopped")
				}
				pretty.Path("PID file", cfg.Supervisor.PidFile)
				pretty.Path("Workspace", cfg.Workspace.Path)
				if status.Updated != nil {
					pretty.Field("Last pass", status.Updated.Local().Format(time.DateTime))
				}
				for _, s := range status.Sessions {
					line := s.State
					if s.PID > 0 {
						line = fmt.Sprintf("%s (PID %d)", s.State, s.PID)
					}
					pretty.Field(s.ID, line)
				}
				for _, id := range status.Pending {
					pretty.Field(id, "pending restart")
				}
			}

			if !running {
				return errors.New(errors.ErrCodeNotRunning, "supervisor is not running").
					WithDetail("pidFile", cfg.Supervisor.PidFile)
			}
			return nil
		},
	}
}
