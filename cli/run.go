package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ZacxDev/lightrunner/launcher"
	"github.com/ZacxDev/lightrunner/log"
	"github.com/ZacxDev/lightrunner/profile"
	"github.com/ZacxDev/lightrunner/ui"
	"github.com/spf13/cobra"
)

type runFlags struct {
	unattended bool
	detach     bool
	tee        bool
	watch      bool
	dryRun     bool
}

func (a *app) newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [profile]",
		Short: "Launch a profile with stdout and stderr redirected to its log file",
		Long: `Launch a profile from its install directory. Both output streams of the
program go to one log file. The program's exit code becomes lightrunner's.

SIGTERM is passed on to the program. SIGINT is passed on too unless
lightrunner runs in the terminal's foreground, where ctrl+c already reaches
the program.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := profile.DefaultName
			if len(args) == 1 {
				name = args[0]
			}
			return a.run(cmd.Context(), name, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.unattended, "unattended", "u", false, "signal unattended mode to the program")
	cmd.Flags().BoolVarP(&flags.detach, "detach", "d", false, "start in the background and return immediately")
	cmd.Flags().BoolVar(&flags.tee, "tee", false, "also copy the program's output to stdout")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "follow the program's status and log in a terminal view")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "print what would run without starting anything")
	cmd.MarkFlagsMutuallyExclusive("detach", "watch")
	cmd.MarkFlagsMutuallyExclusive("detach", "tee")

	return cmd
}

func (a *app) run(ctx context.Context, name string, flags runFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	p, err := cfg.Lookup(name)
	if err != nil {
		return err
	}

	var history launcher.HistoryManager
	if !flags.dryRun {
		history = a.loadHistory()
	}
	l := launcher.NewLauncher(a.fs, a.runner, history, nil)

	opts := launcher.Options{
		Unattended: flags.unattended,
		Detach:     flags.detach,
		DryRun:     flags.dryRun,
	}
	if flags.tee {
		opts.Tee = a.stdout
	}

	var res *launcher.Result
	if flags.watch && !flags.dryRun {
		res, err = a.launchWatched(ctx, l, p, opts)
	} else {
		res, err = l.Launch(ctx, p, opts)
	}
	if res != nil {
		a.exitCode = res.ExitCode
	}
	if err != nil {
		return err
	}

	switch {
	case flags.dryRun:
		a.printPlan(p, res.Plan)
	case res.Detached:
		fmt.Fprintf(a.stdout, "%s started in background (pid %d), logging to %s\n", p.Name, res.PID, res.Plan.LogPath)
	}

	if !flags.dryRun && p.Keep > 0 {
		removed, err := launcher.PruneLogs(a.fs, p, p.Keep)
		if err != nil {
			log.WarningLog.Printf("[%s] log pruning failed: %v", p.Name, err)
		}
		for _, path := range removed {
			log.DebugLog.Printf("[%s] pruned %s", p.Name, path)
		}
	}

	return nil
}

type started struct {
	plan launcher.Plan
	pid  int
}

type outcome struct {
	res *launcher.Result
	err error
}

// launchWatched runs the launch in the background and shows the terminal
// view until the child exits. Closing the view early leaves the launcher
// waiting on the child as usual. While the view owns the terminal, launcher
// logs go to the watch log file.
func (a *app) launchWatched(ctx context.Context, l *launcher.Launcher, p *profile.LaunchProfile, opts launcher.Options) (*launcher.Result, error) {
	restore := a.redirectLogs()
	defer restore()

	startedCh := make(chan started, 1)
	opts.OnStart = func(plan launcher.Plan, pid int) {
		startedCh <- started{plan: plan, pid: pid}
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := l.Launch(ctx, p, opts)
		done <- outcome{res: res, err: err}
	}()

	select {
	case s := <-startedCh:
		m := ui.NewModel(s.plan, s.pid, l.Status(), a.fs)
		if err := ui.Run(m, a.programOpts...); err != nil {
			restore()
			log.WarningLog.Printf("[%s] terminal view failed: %v", p.Name, err)
		}
		if !m.Finished() {
			restore()
			fmt.Fprintf(a.stderr, "view closed, waiting for %s (pid %d) to exit\n", p.Name, s.pid)
		}
		out := <-done
		return out.res, out.err
	case out := <-done:
		return out.res, out.err
	}
}

func (a *app) redirectLogs() (restore func()) {
	path := a.watchLogFile()
	f, err := a.fs.OpenAppend(path)
	if err != nil {
		log.WarningLog.Printf("cannot open %s, launcher logs are discarded while watching: %v", path, err)
		return log.Redirect(io.Discard)
	}

	restoreLogs := log.Redirect(f)
	return func() {
		restoreLogs()
		_ = f.Close()
	}
}

func (a *app) printPlan(p *profile.LaunchProfile, plan launcher.Plan) {
	fmt.Fprintf(a.stdout, "profile:  %s\n", plan.Profile)
	fmt.Fprintf(a.stdout, "dir:      %s\n", plan.Dir)
	fmt.Fprintf(a.stdout, "command:  %s\n", strings.Join(plan.Argv, " "))
	for _, kv := range plan.Env {
		key, _, _ := strings.Cut(kv, "=")
		if _, extra := p.Env[key]; extra || key == p.EnvVar {
			fmt.Fprintf(a.stdout, "env:      %s\n", kv)
		}
	}
	fmt.Fprintf(a.stdout, "log:      %s\n", plan.LogPath)
	if plan.TTY {
		fmt.Fprintln(a.stdout, "tty:      true")
	}
}
