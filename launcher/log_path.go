package launcher

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/lightrunner/fs"
	"github.com/ZacxDev/lightrunner/profile"
	"github.com/pkg/errors"
)

const TimestampLayout = "20060102_150405"

// ResolveLogPath expands the {name}, {pid} and {timestamp} placeholders of
// template and anchors a relative result at dir.
func ResolveLogPath(dir, template, name string, pid int, now time.Time) string {
	path := strings.NewReplacer(
		"{name}", name,
		"{pid}", strconv.Itoa(pid),
		"{timestamp}", now.Format(TimestampLayout),
	).Replace(template)

	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return filepath.Clean(path)
}

// logGlob turns a log template into a doublestar pattern matching every file
// the template can produce for the profile.
func logGlob(p *profile.LaunchProfile) string {
	pattern := strings.NewReplacer(
		"{name}", escapeGlob(p.Name),
		"{pid}", "*",
		"{timestamp}", "*",
	).Replace(escapeTemplate(p.Log))

	if !filepath.IsAbs(p.Log) {
		pattern = filepath.Join(escapeGlob(p.Dir), pattern)
	}
	return pattern
}

// logPattern matches exactly the paths the template can produce for the
// profile. The glob alone is too loose: "living_*.log" also matches the logs
// of a profile named "living_light".
func logPattern(p *profile.LaunchProfile) (*regexp.Regexp, error) {
	template := p.Log
	if !filepath.IsAbs(template) {
		template = filepath.Join(p.Dir, template)
	}

	var sb strings.Builder
	sb.WriteString("^")
	for len(template) > 0 {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			sb.WriteString(regexp.QuoteMeta(template))
			break
		}
		sb.WriteString(regexp.QuoteMeta(template[:start]))
		template = template[start:]

		switch {
		case strings.HasPrefix(template, "{name}"):
			sb.WriteString(regexp.QuoteMeta(p.Name))
			template = template[len("{name}"):]
		case strings.HasPrefix(template, "{pid}"):
			sb.WriteString(`\d+`)
			template = template[len("{pid}"):]
		case strings.HasPrefix(template, "{timestamp}"):
			sb.WriteString(`\d{8}_\d{6}`)
			template = template[len("{timestamp}"):]
		default:
			sb.WriteString(regexp.QuoteMeta("{"))
			template = template[1:]
		}
	}
	sb.WriteString("$")

	return regexp.Compile(sb.String())
}

// escapeTemplate escapes glob metacharacters outside of placeholders.
func escapeTemplate(template string) string {
	var sb strings.Builder
	for len(template) > 0 {
		matched := false
		for _, ph := range []string{"{name}", "{pid}", "{timestamp}"} {
			if strings.HasPrefix(template, ph) {
				sb.WriteString(ph)
				template = template[len(ph):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		sb.WriteString(escapeGlob(template[:1]))
		template = template[1:]
	}
	return sb.String()
}

func escapeGlob(s string) string {
	if filepath.Separator == '\\' {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type LogFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListLogs returns the profile's log files, newest first.
func ListLogs(filesystem fs.FileSystem, p *profile.LaunchProfile) ([]LogFile, error) {
	pattern, err := logPattern(p)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log template for profile %s", p.Name)
	}
	matches, err := filesystem.DoublestarGlob(logGlob(p))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list logs for profile %s", p.Name)
	}

	logs := make([]LogFile, 0, len(matches))
	for _, match := range matches {
		if !pattern.MatchString(filepath.Clean(match)) {
			continue
		}
		info, err := filesystem.Stat(match)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat log %s", match)
		}
		if info.IsDir() {
			continue
		}
		logs = append(logs, LogFile{Path: match, Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].ModTime.Equal(logs[j].ModTime) {
			return logs[i].ModTime.After(logs[j].ModTime)
		}
		return logs[i].Path > logs[j].Path
	})

	return logs, nil
}

// PruneLogs removes all but the newest keep log files and returns the
// removed paths. keep <= 0 removes nothing.
func PruneLogs(filesystem fs.FileSystem, p *profile.LaunchProfile, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	logs, err := ListLogs(filesystem, p)
	if err != nil {
		return nil, err
	}
	if len(logs) <= keep {
		return nil, nil
	}

	var removed []string
	for _, lf := range logs[keep:] {
		if err := filesystem.Remove(lf.Path); err != nil {
			return removed, errors.Wrapf(err, "failed to remove log %s", lf.Path)
		}
		removed = append(removed, lf.Path)
	}
	return removed, nil
}
