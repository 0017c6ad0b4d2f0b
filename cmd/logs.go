package cmd

import (
	"bufio"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/tunnelkeeper/cli"
	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/logging"
	"github.com/grovetools/tunnelkeeper/pkg/paths"
)

// NewLogsCmd returns the command that prints the supervisor log.
func NewLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the supervisor log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cli.LoadConfig(cmd); err != nil {
				return err
			}

			path, err := latestLogFile()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if err := printLastLines(out, path, lines); err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return followLog(cmd, out, path)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	return cmd
}

// latestLogFile returns the configured log file, or the newest daily file
// in the log directory.
func latestLogFile() (string, error) {
	cfg := logging.LoadConfig()
	if cfg.File.Path != "" {
		return logging.LogFilePath(cfg, time.Now()), nil
	}

	dir := paths.LogDir()
	matches, err := filepath.Glob(filepath.Join(dir, "tunnelkeeper-*.log"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errors.New(errors.ErrCodeMissingFile, "no supervisor log files found").
			WithDetail("dir", dir)
	}
	// Daily names sort chronologically.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func printLastLines(w io.Writer, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to open log file").WithDetail("path", path)
	}
	defer f.Close()

	if n <= 0 {
		return nil
	}
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to read log file").WithDetail("path", path)
	}
	if len(ring) > 0 {
		fmt.Fprintln(w, strings.Join(ring, "\n"))
	}
	return nil
}

func followLog(cmd *cobra.Command, w io.Writer, path string) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to follow log file").WithDetail("path", path)
	}
	defer t.Cleanup()

	ctx, stop := signal.NotifyContext(withContext(cmd), os.Interrupt)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(w, line.Text)
		}
	}
}
