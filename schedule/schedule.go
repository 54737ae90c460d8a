package schedule

import (
	"fmt"
	"strings"

	"github.com/ZacxDev/lightrunner/profile"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slices"
)

// Reboot is the crontab descriptor for "once at boot". The cron parser has no
// notion of it, so it is accepted verbatim.
const Reboot = "@reboot"

func Validate(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == Reboot {
		return nil
	}
	if strings.HasPrefix(expr, "@every") {
		return errors.Errorf("schedule %q: @every has no crontab equivalent", expr)
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return errors.Wrapf(err, "invalid schedule %q", expr)
	}
	return nil
}

// Crontab renders one crontab line per scheduled profile, sorted by name.
// Every line launches its profile unattended.
func Crontab(profiles map[string]*profile.LaunchProfile, binary, configPath string) ([]string, error) {
	names := make([]string, 0, len(profiles))
	for name, p := range profiles {
		if strings.TrimSpace(p.Schedule) != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		p := profiles[name]
		if err := Validate(p.Schedule); err != nil {
			return nil, errors.Wrapf(err, "profile %s", name)
		}
		cmd := fmt.Sprintf("cd %s && %s", shellQuote(p.Dir), shellQuote(binary))
		if configPath != "" {
			cmd += " --config " + shellQuote(configPath)
		}
		cmd += " run --unattended " + shellQuote(name)
		lines = append(lines, strings.TrimSpace(p.Schedule)+" "+cmd)
	}
	return lines, nil
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`&;|<>()*?[]#~%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
