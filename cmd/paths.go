package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/tunnelkeeper/cli"
	"github.com/grovetools/tunnelkeeper/pkg/paths"
)

// PathsOutput lists the directories and files tunnelkeeper uses.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	StateDir  string `json:"state_dir"`
	LogDir    string `json:"log_dir"`
	PidFile   string `json:"pid_file"`
	Workspace string `json:"workspace"`
}

// NewPathsCmd returns the `paths` command.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by tunnelkeeper as JSON",
		Long: `Print the paths used by tunnelkeeper as JSON.

- config_dir: tunnelkeeper.yml
- data_dir: persistent data, including the default workspace
- state_dir: pid file and logs
- workspace: the directory scanned for session descriptors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			output := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				DataDir:   paths.DataDir(),
				StateDir:  paths.StateDir(),
				LogDir:    paths.LogDir(),
				PidFile:   cfg.Supervisor.PidFile,
				Workspace: cfg.Workspace.Path,
			}
			data, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
