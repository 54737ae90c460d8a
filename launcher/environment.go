package launcher

import (
	"sort"
	"strings"

	"github.com/ZacxDev/lightrunner/profile"
)

// BuildEnv derives the child environment from base. The profile's unattended
// variable is always stripped from what the launcher inherited, so the child
// sees it only when unattended is requested through the env signal.
func BuildEnv(base []string, p *profile.LaunchProfile, unattended bool) []string {
	overrides := make(map[string]string, len(p.Env)+1)
	for k, v := range p.Env {
		overrides[k] = v
	}
	delete(overrides, p.EnvVar)

	env := make([]string, 0, len(base)+len(overrides)+1)
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if key == p.EnvVar {
			continue
		}
		if _, overridden := overrides[key]; overridden {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}

	if unattended && p.Unattended == profile.SignalEnv {
		env = append(env, p.EnvVar+"=1")
	}
	return env
}

// BuildArgv returns the child's argument vector, with the unattended token
// appended once when requested through the arg signal.
func BuildArgv(p *profile.LaunchProfile, unattended bool) []string {
	argv := append([]string(nil), p.Cmd...)
	if unattended && p.Unattended == profile.SignalArg {
		argv = append(argv, p.Arg)
	}
	return argv
}
