package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/lightrunner/launcher"
	"github.com/ZacxDev/lightrunner/profile"
	"github.com/ZacxDev/lightrunner/schedule"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func (a *app) newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List launch profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			t := newTable("NAME", "DIR", "COMMAND", "UNATTENDED", "LOG", "SCHEDULE")
			for _, name := range cfg.Names() {
				p := cfg.Profiles[name]
				t.Row(name, p.Dir, strings.Join(p.Cmd, " "), describeSignal(p), p.Log, p.Schedule)
			}
			fmt.Fprintln(a.stdout, t.Render())
			return nil
		},
	}
}

func describeSignal(p *profile.LaunchProfile) string {
	if p.Unattended == profile.SignalArg {
		return "arg " + p.Arg
	}
	return "env " + p.EnvVar + "=1"
}

func (a *app) newLogsCmd() *cobra.Command {
	var prune int

	cmd := &cobra.Command{
		Use:   "logs [profile]",
		Short: "List a profile's log files, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			name := profile.DefaultName
			if len(args) == 1 {
				name = args[0]
			}
			p, err := cfg.Lookup(name)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("prune") {
				if prune < 1 {
					return errors.New("--prune must keep at least one log")
				}
				removed, err := launcher.PruneLogs(a.fs, p, prune)
				for _, path := range removed {
					fmt.Fprintf(a.stdout, "removed %s\n", path)
				}
				if err != nil {
					return err
				}
			}

			logs, err := launcher.ListLogs(a.fs, p)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				fmt.Fprintf(a.stdout, "no logs for %s\n", p.Name)
				return nil
			}

			t := newTable("MODIFIED", "SIZE", "PATH")
			for _, lf := range logs {
				t.Row(lf.ModTime.Format(time.DateTime), strconv.FormatInt(lf.Size, 10), lf.Path)
			}
			fmt.Fprintln(a.stdout, t.Render())
			return nil
		},
	}

	cmd.Flags().IntVar(&prune, "prune", 0, "remove all but the newest N log files")
	return cmd
}

func (a *app) newHistoryCmd() *cobra.Command {
	var (
		limit       int
		profileName string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded launches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history := launcher.NewHistoryManager(a.fs, a.historyFile())
			if err := history.Load(); err != nil {
				return err
			}

			records := history.Records()
			t := newTable("ID", "PROFILE", "STARTED", "PID", "EXIT", "LOG")
			shown := 0
			for i := len(records) - 1; i >= 0 && (limit <= 0 || shown < limit); i-- {
				r := records[i]
				if profileName != "" && r.Profile != profileName {
					continue
				}
				t.Row(r.ID, r.Profile, r.StartTime.Local().Format(time.DateTime), strconv.Itoa(r.PID), describeExit(r), r.LogPath)
				shown++
			}

			if shown == 0 {
				fmt.Fprintln(a.stdout, "no recorded launches")
				return nil
			}
			fmt.Fprintln(a.stdout, t.Render())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of launches to show (0 for all)")
	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "only show launches of this profile")
	return cmd
}

func describeExit(r launcher.RunRecord) string {
	switch {
	case r.ExitCode != nil:
		return strconv.Itoa(*r.ExitCode)
	case r.Detached:
		return "detached"
	default:
		return "-"
	}
}

func (a *app) newCrontabCmd() *cobra.Command {
	var binary string

	cmd := &cobra.Command{
		Use:   "crontab",
		Short: "Print crontab entries for profiles with a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			if binary == "" {
				exe, err := os.Executable()
				if err != nil {
					return errors.Wrap(err, "failed to locate lightrunner binary, pass --binary")
				}
				binary = exe
			}

			lines, err := schedule.Crontab(cfg.Profiles, binary, cfg.Path)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				fmt.Fprintln(a.stderr, "no profile declares a schedule")
				return nil
			}
			for _, line := range lines {
				fmt.Fprintln(a.stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&binary, "binary", "", "lightrunner path to use in the entries (default: this binary)")
	return cmd
}
