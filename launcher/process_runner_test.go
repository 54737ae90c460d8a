//go:build !windows

package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZacxDev/lightrunner/fs"
	"github.com/ZacxDev/lightrunner/profile"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportScript reports what the child observed about its launch.
const reportScript = `echo "env=${LIVING_LIGHT_UNATTENDED-unset}"; echo "argc=$#"; echo "args=$*"; echo "pwd=$(pwd -P)"`

func newRealLauncher(t *testing.T) *Launcher {
	t.Helper()
	l := NewLauncher(fs.RealFileSystem{}, RealProcessRunner{}, nil, nil)
	// Simulate a launcher started from an environment that already carries
	// the unattended variable.
	l.environ = func() []string { return append(os.Environ(), "LIVING_LIGHT_UNATTENDED=inherited") }
	return l
}

func shProfile(t *testing.T, script string) *profile.LaunchProfile {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	p := &profile.LaunchProfile{
		Name: "living_light",
		Dir:  dir,
		Cmd:  []string{"/bin/sh", "-c", script, "sh"},
		Log:  "logs/{name}.log",
	}
	p.ApplyDefaults()
	return p
}

func readLog(t *testing.T, res *Result) string {
	t.Helper()
	data, err := os.ReadFile(res.Plan.LogPath)
	require.NoError(t, err)
	return string(data)
}

func TestRealLaunchInteractiveHasNoUnattendedSignal(t *testing.T) {
	for _, signal := range []profile.Signal{profile.SignalEnv, profile.SignalArg} {
		t.Run(string(signal), func(t *testing.T) {
			p := shProfile(t, reportScript)
			p.Unattended = signal

			res, err := newRealLauncher(t).Launch(context.Background(), p, Options{})
			require.NoError(t, err)
			require.Equal(t, 0, res.ExitCode)

			out := readLog(t, res)
			assert.Contains(t, out, "env=unset\n")
			assert.Contains(t, out, "argc=0\n")
			assert.Contains(t, out, "pwd="+p.Dir+"\n")
		})
	}
}

func TestRealLaunchUnattendedViaEnv(t *testing.T) {
	p := shProfile(t, reportScript)

	res, err := newRealLauncher(t).Launch(context.Background(), p, Options{Unattended: true})
	require.NoError(t, err)

	out := readLog(t, res)
	assert.Contains(t, out, "env=1\n")
	assert.Contains(t, out, "argc=0\n")
}

func TestRealLaunchUnattendedViaArg(t *testing.T) {
	p := shProfile(t, reportScript)
	p.Unattended = profile.SignalArg

	res, err := newRealLauncher(t).Launch(context.Background(), p, Options{Unattended: true})
	require.NoError(t, err)

	out := readLog(t, res)
	assert.Contains(t, out, "env=unset\n")
	assert.Contains(t, out, "argc=1\n")
	assert.Contains(t, out, "args=unattended\n")
}

func TestRealLaunchInterleavesStdoutAndStderr(t *testing.T) {
	p := shProfile(t, `echo out1; echo err1 >&2; echo out2; echo err2 >&2`)

	res, err := newRealLauncher(t).Launch(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "out1\nerr1\nout2\nerr2\n", readLog(t, res))
}

func TestRealLaunchTeeKeepsOrder(t *testing.T) {
	p := shProfile(t, `echo out1; echo err1 >&2; echo out2`)

	var console bytes.Buffer
	res, err := newRealLauncher(t).Launch(context.Background(), p, Options{Tee: &console})
	require.NoError(t, err)
	assert.Equal(t, "out1\nerr1\nout2\n", readLog(t, res))
	assert.Equal(t, "out1\nerr1\nout2\n", console.String())
}

func TestRealLaunchStaticLogIsOverwritten(t *testing.T) {
	p := shProfile(t, `echo first run with a long line`)
	l := newRealLauncher(t)

	res, err := l.Launch(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "first run with a long line\n", readLog(t, res))

	p.Cmd = []string{"/bin/sh", "-c", "echo second"}
	res, err = l.Launch(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "second\n", readLog(t, res))
}

func TestRealLaunchExitCodes(t *testing.T) {
	tests := []struct {
		script string
		want   int
	}{
		{"exit 0", 0},
		{"exit 7", 7},
		{"kill -TERM $$", 143},
	}

	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			res, err := newRealLauncher(t).Launch(context.Background(), shProfile(t, tt.script), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ExitCode)
		})
	}
}

func TestRealLaunchCommandNotFound(t *testing.T) {
	p := shProfile(t, "")
	p.Cmd = []string{"lightrunner-definitely-missing-program"}

	res, err := newRealLauncher(t).Launch(context.Background(), p, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandNotFound))
	assert.Equal(t, ExitNotFound, res.ExitCode)
	assert.Contains(t, readLog(t, res), "command not found")
}

func TestRealLaunchContextCancelKillsChild(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := newRealLauncher(t).Launch(ctx, shProfile(t, "sleep 10"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 128+9, res.ExitCode)
	assert.Less(t, res.EndTime.Sub(res.StartTime), 5*time.Second)
}

func TestRealLaunchDetached(t *testing.T) {
	p := shProfile(t, "sleep 1; echo detached")

	res, err := newRealLauncher(t).Launch(context.Background(), p, Options{Detach: true})
	require.NoError(t, err)
	assert.True(t, res.Detached)
	assert.Positive(t, res.PID)

	// Launch returned before the child produced its output.
	assert.NotContains(t, readLog(t, res), "detached")

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(res.Plan.LogPath)
		return err == nil && strings.Contains(string(data), "detached")
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRealLaunchTTY(t *testing.T) {
	p := shProfile(t, "echo from-tty; test -t 1 && echo is-a-tty")
	p.TTY = true

	res, err := newRealLauncher(t).Launch(context.Background(), p, Options{})
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	assert.Equal(t, 0, res.ExitCode)

	out := readLog(t, res)
	assert.Contains(t, out, "from-tty")
	assert.Contains(t, out, "is-a-tty")
}
