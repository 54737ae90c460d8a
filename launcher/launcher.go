package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ZacxDev/lightrunner/fs"
	"github.com/ZacxDev/lightrunner/log"
	"github.com/ZacxDev/lightrunner/profile"
	"github.com/pkg/errors"
)

var ErrInstallDir = errors.New("install directory unavailable")

type Options struct {
	Unattended bool
	Detach     bool
	DryRun     bool
	// Tee, when set, also receives the child's output. Ignored for detached
	// runs, which must not hold on to the launcher's terminal.
	Tee io.Writer
	// OnStart is called once the child is running.
	OnStart func(plan Plan, pid int)
}

// Plan is a fully resolved launch: what would run, where, and where its
// output goes.
type Plan struct {
	Profile    string
	Dir        string
	Argv       []string
	Env        []string
	LogPath    string
	Unattended bool
	Signal     profile.Signal
	TTY        bool
}

type Result struct {
	RunID     string
	Plan      Plan
	PID       int
	ExitCode  int
	Detached  bool
	StartTime time.Time
	EndTime   time.Time
}

type Launcher struct {
	fs        fs.FileSystem
	runner    ProcessRunner
	history   HistoryManager
	statusMgr StatusManager

	getpid     func() int
	now        func() time.Time
	environ    func() []string
	foreground func() bool
}

// NewLauncher wires a launcher. history may be nil to skip run records.
func NewLauncher(fs fs.FileSystem, runner ProcessRunner, history HistoryManager, statusMgr StatusManager) *Launcher {
	if statusMgr == nil {
		statusMgr = NewStatusManager()
	}
	return &Launcher{
		fs:        fs,
		runner:    runner,
		history:   history,
		statusMgr: statusMgr,
		getpid:     os.Getpid,
		now:        time.Now,
		environ:    os.Environ,
		foreground: terminalForeground,
	}
}

func (l *Launcher) Status() StatusManager {
	return l.statusMgr
}

// Plan validates the profile, checks the install directory and resolves the
// child's argv, environment and log path without side effects.
func (l *Launcher) Plan(p *profile.LaunchProfile, opts Options) (Plan, error) {
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}

	info, err := l.fs.Stat(p.Dir)
	if err != nil {
		return Plan{}, errors.Wrapf(ErrInstallDir, "%s: %v", p.Dir, err)
	}
	if !info.IsDir() {
		return Plan{}, errors.Wrapf(ErrInstallDir, "%s is not a directory", p.Dir)
	}

	return Plan{
		Profile:    p.Name,
		Dir:        p.Dir,
		Argv:       BuildArgv(p, opts.Unattended),
		Env:        BuildEnv(l.environ(), p, opts.Unattended),
		LogPath:    ResolveLogPath(p.Dir, p.Log, p.Name, l.getpid(), l.now()),
		Unattended: opts.Unattended,
		Signal:     p.Unattended,
		TTY:        p.TTY,
	}, nil
}

// Launch runs the profile's program with its output redirected to the log
// file. The returned ExitCode is the child's own; Launch never retries and
// never interprets a non-zero exit. The error is non-nil only when the
// launcher could not start the child, in which case ExitCode follows the
// shell (1, 126 or 127).
func (l *Launcher) Launch(ctx context.Context, p *profile.LaunchProfile, opts Options) (*Result, error) {
	plan, err := l.Plan(p, opts)
	if err != nil {
		return &Result{ExitCode: ExitLauncherError}, err
	}

	result := &Result{Plan: plan}
	if opts.DryRun {
		return result, nil
	}

	if err := l.fs.MkdirAll(filepath.Dir(plan.LogPath), 0755); err != nil {
		result.ExitCode = ExitLauncherError
		return result, errors.Wrap(err, "failed to create log directory")
	}

	logFile, err := l.fs.Create(plan.LogPath)
	if err != nil {
		result.ExitCode = ExitLauncherError
		return result, errors.Wrap(err, "failed to create log file")
	}
	defer logFile.Close()

	var output io.Writer = logFile
	if opts.Tee != nil && !opts.Detach {
		output = io.MultiWriter(logFile, opts.Tee)
	}

	result.RunID = NewRunID()
	result.Detached = opts.Detach
	result.StartTime = l.now()
	l.statusMgr.SetStatus(p.Name, StatusQueued)

	log.InfoLog.Printf("[%s] starting %v in %s (unattended=%t, log=%s)", p.Name, plan.Argv, plan.Dir, opts.Unattended, plan.LogPath)

	proc, err := l.runner.Start(ctx, ProcessSpec{
		Dir:    plan.Dir,
		Argv:   plan.Argv,
		Env:    plan.Env,
		Output: output,
		TTY:    plan.TTY,
		Detach: opts.Detach,
	})
	if err != nil {
		// The shell would have written this into the redirected log.
		fmt.Fprintf(output, "lightrunner: %v\n", err)
		result.ExitCode = StartExitCode(err)
		result.EndTime = l.now()
		l.statusMgr.MarkFinished(p.Name, result.ExitCode, result.EndTime)
		l.record(result, true)
		return result, err
	}
	result.PID = proc.Pid()

	if opts.Detach {
		l.statusMgr.MarkDetached(p.Name, result.PID, result.StartTime)
		if opts.OnStart != nil {
			opts.OnStart(plan, result.PID)
		}
		if err := proc.Release(); err != nil {
			log.WarningLog.Printf("[%s] failed to release pid %d: %v", p.Name, result.PID, err)
		}
		log.InfoLog.Printf("[%s] detached pid %d", p.Name, result.PID)
		l.record(result, false)
		return result, nil
	}

	l.statusMgr.MarkRunning(p.Name, result.PID, result.StartTime)
	if opts.OnStart != nil {
		opts.OnStart(plan, result.PID)
	}

	stop := forwardSignals(proc, plan.TTY || !l.foreground())
	code, waitErr := proc.Wait()
	stop()

	result.ExitCode = code
	result.EndTime = l.now()
	l.statusMgr.MarkFinished(p.Name, code, result.EndTime)
	if waitErr != nil {
		log.ErrorLog.Printf("[%s] %v", p.Name, waitErr)
	}
	log.InfoLog.Printf("[%s] exited with code %d after %s", p.Name, code, result.EndTime.Sub(result.StartTime).Round(time.Millisecond))

	l.record(result, true)
	return result, waitErr
}

func (l *Launcher) record(result *Result, exited bool) {
	if l.history == nil {
		return
	}

	rec := RunRecord{
		ID:          result.RunID,
		Profile:     result.Plan.Profile,
		PID:         result.PID,
		LauncherPID: l.getpid(),
		LogPath:     result.Plan.LogPath,
		Unattended:  result.Plan.Unattended,
		Detached:    result.Detached,
		StartTime:   result.StartTime,
		EndTime:     result.EndTime,
	}
	if exited {
		code := result.ExitCode
		rec.ExitCode = &code
	}

	// Other launches may have recorded runs while this child was running.
	if err := l.history.Load(); err != nil {
		log.WarningLog.Printf("failed to reload history %s, run %s not recorded: %v", l.history.Path(), rec.ID, err)
		return
	}
	l.history.Append(rec)
	if err := l.history.Save(); err != nil {
		log.WarningLog.Printf("failed to save history %s: %v", l.history.Path(), err)
	}
}

// forwardSignals relays termination requests to the child. SIGTERM always
// is. SIGINT is relayed only when forwardInterrupt is set: a child sharing
// the terminal's foreground process group already receives ctrl+c itself,
// while interrupts sent by cron, a supervisor or kill(1) reach only the
// launcher.
func forwardSignals(proc Process, forwardInterrupt bool) (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				if sig == os.Interrupt && !forwardInterrupt {
					continue
				}
				if err := proc.Signal(sig); err != nil {
					log.DebugLog.Printf("failed to forward %v to pid %d: %v", sig, proc.Pid(), err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
