package profile

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Signal selects how unattended mode reaches the launched program.
type Signal string

const (
	SignalEnv Signal = "env"
	SignalArg Signal = "arg"
)

const (
	DefaultName   = "living_light"
	DefaultEnvVar = "LIVING_LIGHT_UNATTENDED"
	DefaultArg    = "unattended"
	DefaultLog    = "logs/{name}_{timestamp}.log"
)

var (
	ErrEmptyCommand  = errors.New("profile command is empty")
	ErrInvalidSignal = errors.New("unattended signal must be \"env\" or \"arg\"")
)

type LaunchProfile struct {
	Name       string
	Dir        string
	Cmd        []string
	Unattended Signal
	EnvVar     string
	Arg        string
	Log        string
	Env        map[string]string
	TTY        bool // run behind a pseudo-terminal
	Schedule   string
	Keep       int
}

// Default returns the built-in profile that starts living_light.py from the
// current directory.
func Default() *LaunchProfile {
	p := &LaunchProfile{
		Name: DefaultName,
		Dir:  ".",
		Cmd:  []string{"python3", "living_light.py"},
	}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills every unset optional field.
func (p *LaunchProfile) ApplyDefaults() {
	if p.Dir == "" {
		p.Dir = "."
	}
	if p.Unattended == "" {
		p.Unattended = SignalEnv
	}
	if p.EnvVar == "" {
		p.EnvVar = DefaultEnvVar
	}
	if p.Arg == "" {
		p.Arg = DefaultArg
	}
	if p.Log == "" {
		p.Log = DefaultLog
	}
}

func (p *LaunchProfile) Validate() error {
	if len(p.Cmd) == 0 || strings.TrimSpace(p.Cmd[0]) == "" {
		return errors.Wrapf(ErrEmptyCommand, "profile %s", p.Name)
	}
	switch p.Unattended {
	case SignalEnv, SignalArg:
	default:
		return errors.Wrapf(ErrInvalidSignal, "profile %s: got %q", p.Name, p.Unattended)
	}
	if p.Keep < 0 {
		return errors.Errorf("profile %s: keep must not be negative", p.Name)
	}
	return nil
}

// ResolveDir makes a relative Dir absolute against base.
func (p *LaunchProfile) ResolveDir(base string) {
	if !filepath.IsAbs(p.Dir) {
		p.Dir = filepath.Clean(filepath.Join(base, p.Dir))
	}
}
