package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/grovetools/tunnelkeeper/cli"
	"github.com/grovetools/tunnelkeeper/internal/daemon/engine"
	"github.com/grovetools/tunnelkeeper/pkg/registry"
)

// SessionCheck is the observed state of one descriptor.
type SessionCheck struct {
	Session    string `json:"session"`
	Executable string `json:"executable,omitempty"`
	Profile    string `json:"profile,omitempty"`
	Host       string `json:"host,omitempty"`
	Connected  bool   `json:"connected"`
	Error      string `json:"error,omitempty"`
}

// NewCheckCmd returns the one-shot observation command.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report which sessions are connected right now",
		Long: `Loads every session descriptor and queries the host once for a live
connection. Nothing is started or killed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			store, err := newStore(cfg)
			if err != nil {
				return err
			}
			ids, err := store.Scan()
			if err != nil {
				return err
			}
			host, err := newHost(cfg, cli.GetLogger(cmd, "hostctl"))
			if err != nil {
				return err
			}
			eng := engine.New(store, host, registry.New(ids), cli.GetLogger(cmd, "engine"))

			ctx := withContext(cmd)
			checks := make([]SessionCheck, 0, len(ids))
			for _, id := range ids {
				check := SessionCheck{Session: id}
				d, err := store.Load(id)
				if err != nil {
					check.Error = err.Error()
					checks = append(checks, check)
					continue
				}
				check.Executable, check.Profile, check.Host = d.Executable, d.Profile, d.Host
				check.Connected, err = eng.Poll(ctx, id)
				if err != nil {
					check.Error = err.Error()
				}
				checks = append(checks, check)
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(checks, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			renderChecks(cmd.OutOrStdout(), store.Dir(), checks)
			return nil
		},
	}
}

var (
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle         = lipgloss.NewStyle().Padding(0, 1)
)

func renderChecks(w io.Writer, workspace string, checks []SessionCheck) {
	if len(checks) == 0 {
		fmt.Fprintf(w, "No session descriptors in %s\n", workspace)
		return
	}

	t := ltable.New().
		Border(lipgloss.RoundedBorder()).
		Headers("SESSION", "EXECUTABLE", "PROFILE", "HOST", "STATUS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, c := range checks {
		status := connectedStyle.Render("connected")
		switch {
		case c.Error != "":
			status = disconnectedStyle.Render("error: " + c.Error)
		case !c.Connected:
			status = disconnectedStyle.Render("disconnected")
		}
		t.Row(c.Session, c.Executable, c.Profile, c.Host, status)
	}
	fmt.Fprintln(w, t.Render())
}
