package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ZacxDev/lightrunner/config"
	"github.com/ZacxDev/lightrunner/fs"
	"github.com/ZacxDev/lightrunner/launcher"
	"github.com/ZacxDev/lightrunner/log"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"
)

const WatchLogFile = "lightrunner.log"

type app struct {
	configPath  string
	historyPath string
	debug       bool

	stdout io.Writer
	stderr io.Writer
	fs     fs.FileSystem
	runner launcher.ProcessRunner

	// programOpts configure the --watch view.
	programOpts []tea.ProgramOption
	exitCode    int
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		fs:     fs.RealFileSystem{},
		runner: launcher.RealProcessRunner{},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes args and returns the exit code: the launched program's own
// code for "run", 1 for launcher errors.
func Run(args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).execute(args)
}

func (a *app) execute(args []string) int {
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		if a.exitCode == 0 {
			a.exitCode = launcher.ExitLauncherError
		}
	}
	return a.exitCode
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lightrunner",
		Short:         "Launch the Living Light program with its output captured in a log file",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Initialize(a.stderr, a.debug)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultFileName, "Starlark file defining launch profiles")
	root.PersistentFlags().StringVar(&a.historyPath, "history", "", "run history file (default: next to the config file)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.newRunCmd(),
		a.newProfilesCmd(),
		a.newLogsCmd(),
		a.newHistoryCmd(),
		a.newCrontabCmd(),
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

func (a *app) historyFile() string {
	if a.historyPath != "" {
		return a.historyPath
	}
	abs, err := filepath.Abs(a.configPath)
	if err != nil {
		return launcher.DefaultHistoryFile
	}
	return filepath.Join(filepath.Dir(abs), launcher.DefaultHistoryFile)
}

// watchLogFile receives launcher logs while the watch view owns the terminal.
func (a *app) watchLogFile() string {
	return filepath.Join(filepath.Dir(a.historyFile()), WatchLogFile)
}

// loadHistory returns nil when the history file is unreadable so a damaged
// file never blocks a launch or gets overwritten.
func (a *app) loadHistory() launcher.HistoryManager {
	history := launcher.NewHistoryManager(a.fs, a.historyFile())
	if err := history.Load(); err != nil {
		log.WarningLog.Printf("run history disabled: %v", err)
		return nil
	}
	return history
}
