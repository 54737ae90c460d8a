package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZacxDev/lightrunner/log"
	"github.com/ZacxDev/lightrunner/profile"
	"github.com/ZacxDev/lightrunner/schedule"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"golang.org/x/exp/slices"
)

const DefaultFileName = "lightrunner.star"

var ErrUnknownProfile = errors.New("unknown profile")

// Config holds every launch profile known to the launcher.
type Config struct {
	Path     string
	Profiles map[string]*profile.LaunchProfile
}

// Lookup returns the named profile.
func (c *Config) Lookup(name string) (*profile.LaunchProfile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProfile, "%q (known: %v)", name, c.Names())
	}
	return p, nil
}

// Names returns profile names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ModuleCache is used to store loaded Starlark modules
type ModuleCache struct {
	modules map[string]starlark.StringDict
	mutex   sync.RWMutex
}

// NewModuleCache creates a new ModuleCache
func NewModuleCache() *ModuleCache {
	return &ModuleCache{
		modules: make(map[string]starlark.StringDict),
	}
}

// Get retrieves a module from the cache
func (mc *ModuleCache) Get(key string) (starlark.StringDict, bool) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	module, ok := mc.modules[key]
	return module, ok
}

// Set stores a module in the cache
func (mc *ModuleCache) Set(key string, module starlark.StringDict) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.modules[key] = module
}

// LoadModule is a custom load function for Starlark that implements caching.
// Relative module paths resolve against the directory of the root config file.
func LoadModule(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	cache := thread.Local("moduleCache").(*ModuleCache)

	if cachedModule, ok := cache.Get(module); ok {
		return cachedModule, nil
	}

	root := thread.Local("configRoot").(string)
	filename := module
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(filepath.Dir(root), filename)
	}

	child := &starlark.Thread{Name: filename, Load: LoadModule}
	child.SetLocal("moduleCache", cache)
	child.SetLocal("configRoot", root)

	globals, err := starlark.ExecFile(child, filename, nil, predeclared())
	if err != nil {
		return nil, err
	}

	cache.Set(module, globals)

	return globals, nil
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv": starlark.NewBuiltin("getenv", getenv),
	}
}

func getenv(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	def := ""
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return starlark.String(v), nil
	}
	return starlark.String(def), nil
}

// Load reads the Starlark config at filename. A missing file is not an
// error: the result then holds only the built-in profile. The built-in
// profile is also present when the file does not override it.
func Load(filename string) (*Config, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve config path")
	}

	cfg := &Config{Path: abs, Profiles: make(map[string]*profile.LaunchProfile)}

	if _, err := os.Stat(abs); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to stat config file")
		}
		log.DebugLog.Printf("config %s not found, using built-in profile", abs)
		cfg.Path = ""
	} else {
		profiles, err := ParseStarlarkConfig(abs)
		if err != nil {
			return nil, err
		}
		cfg.Profiles = profiles
	}

	if _, ok := cfg.Profiles[profile.DefaultName]; !ok {
		def := profile.Default()
		def.ResolveDir(filepath.Dir(abs))
		cfg.Profiles[def.Name] = def
	}

	return cfg, nil
}

func ParseStarlarkConfig(filename string) (map[string]*profile.LaunchProfile, error) {
	cache := NewModuleCache()
	thread := &starlark.Thread{
		Name: filename,
		Load: LoadModule,
	}
	thread.SetLocal("moduleCache", cache)
	thread.SetLocal("configRoot", filename)

	globals, err := starlark.ExecFile(thread, filename, nil, predeclared())
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Starlark script")
	}

	profilesValue, ok := globals["profiles"]
	if !ok {
		return nil, errors.New("global 'profiles' object not found in Starlark config")
	}

	profilesDict, ok := profilesValue.(*starlark.Dict)
	if !ok {
		return nil, errors.New("global 'profiles' object is not a dictionary")
	}

	baseDir := filepath.Dir(filename)
	profiles := make(map[string]*profile.LaunchProfile)

	for _, item := range profilesDict.Items() {
		key, ok := item.Index(0).(starlark.String)
		if !ok {
			return nil, errors.Errorf("profile names must be strings, got %s", item.Index(0).Type())
		}
		name := key.GoString()
		dict, ok := item.Index(1).(*starlark.Dict)
		if !ok {
			return nil, errors.Errorf("profile %s is not a dictionary", name)
		}

		p, err := parseProfile(name, dict)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse profile %s", name)
		}
		p.ResolveDir(baseDir)

		profiles[name] = p
	}

	return profiles, nil
}

func parseProfile(name string, dict *starlark.Dict) (*profile.LaunchProfile, error) {
	p := &profile.LaunchProfile{Name: name}

	if dir, ok, err := getStringValue(dict, "dir"); err != nil {
		return nil, err
	} else if ok {
		p.Dir = dir
	}

	if cmd, ok, err := getStringList(dict, "cmd"); err != nil {
		return nil, err
	} else if ok {
		p.Cmd = cmd
	}

	if signal, ok, err := getStringValue(dict, "unattended"); err != nil {
		return nil, err
	} else if ok {
		p.Unattended = profile.Signal(signal)
	}

	if envVar, ok, err := getStringValue(dict, "env_var"); err != nil {
		return nil, err
	} else if ok {
		p.EnvVar = envVar
	}

	if arg, ok, err := getStringValue(dict, "arg"); err != nil {
		return nil, err
	} else if ok {
		p.Arg = arg
	}

	if logPath, ok, err := getStringValue(dict, "log"); err != nil {
		return nil, err
	} else if ok {
		p.Log = logPath
	}

	if env, ok, err := getStringDict(dict, "env"); err != nil {
		return nil, err
	} else if ok {
		p.Env = env
	}

	if tty, ok, err := getBooleanValue(dict, "tty"); err != nil {
		return nil, err
	} else if ok {
		p.TTY = tty
	}

	if expr, ok, err := getStringValue(dict, "schedule"); err != nil {
		return nil, err
	} else if ok {
		if err := schedule.Validate(expr); err != nil {
			return nil, err
		}
		p.Schedule = expr
	}

	if keep, ok, err := getIntValue(dict, "keep"); err != nil {
		return nil, err
	} else if ok {
		p.Keep = keep
	}

	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func getBooleanValue(dict *starlark.Dict, key string) (bool, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return false, false, err
	}

	boolValue, ok := value.(starlark.Bool)
	if !ok {
		return false, false, fmt.Errorf("expected bool for key %s, got %s", key, value.Type())
	}

	return bool(boolValue), true, nil
}

func getIntValue(dict *starlark.Dict, key string) (int, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return 0, false, err
	}

	if _, ok := value.(starlark.Int); !ok {
		return 0, false, fmt.Errorf("expected int for key %s, got %s", key, value.Type())
	}

	i, err := starlark.AsInt32(value)
	if err != nil {
		return 0, false, errors.Wrapf(err, "key %s", key)
	}

	return i, true, nil
}

func getStringValue(dict *starlark.Dict, key string) (string, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return "", false, err
	}

	strValue, ok := value.(starlark.String)
	if !ok {
		return "", false, fmt.Errorf("expected string for key %s, got %s", key, value.Type())
	}

	return strValue.GoString(), true, nil
}

func getStringList(dict *starlark.Dict, key string) ([]string, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return nil, false, err
	}

	list, ok := value.(*starlark.List)
	if !ok {
		return nil, false, fmt.Errorf("expected list for key %s, got %s", key, value.Type())
	}

	var result []string
	iter := list.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		str, ok := x.(starlark.String)
		if !ok {
			return nil, false, fmt.Errorf("expected string in list for key %s, got %s", key, x.Type())
		}
		result = append(result, str.GoString())
	}

	return result, true, nil
}

func getStringDict(dict *starlark.Dict, key string) (map[string]string, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return nil, false, err
	}

	inner, ok := value.(*starlark.Dict)
	if !ok {
		return nil, false, fmt.Errorf("expected dict for key %s, got %s", key, value.Type())
	}

	result := make(map[string]string, inner.Len())
	for _, item := range inner.Items() {
		k, kok := item.Index(0).(starlark.String)
		v, vok := item.Index(1).(starlark.String)
		if !kok || !vok {
			return nil, false, fmt.Errorf("expected string keys and values for key %s", key)
		}
		result[k.GoString()] = v.GoString()
	}

	return result, true, nil
}
