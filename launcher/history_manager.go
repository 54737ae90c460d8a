package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ZacxDev/lightrunner/fs"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

const (
	DefaultHistoryFile = "lightrunner.history.json"
	MaxHistoryRecords  = 100
)

// RunRecord describes one launch. ExitCode is nil while unknown, which is
// always the case for detached runs.
type RunRecord struct {
	ID          string    `json:"id"`
	Profile     string    `json:"profile"`
	PID         int       `json:"pid"`
	LauncherPID int       `json:"launcher_pid"`
	LogPath     string    `json:"log_path"`
	Unattended  bool      `json:"unattended"`
	Detached    bool      `json:"detached,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time,omitempty"`
	ExitCode    *int      `json:"exit_code,omitempty"`
}

func NewRunID() string {
	return ulid.Make().String()
}

type HistoryManager interface {
	Load() error
	Save() error
	Append(RunRecord)
	Records() []RunRecord
	Path() string
}

type historyManager struct {
	path    string
	records []RunRecord
	fs      fs.FileSystem
	mu      sync.Mutex
}

func NewHistoryManager(fs fs.FileSystem, path string) HistoryManager {
	return &historyManager{
		path: path,
		fs:   fs,
	}
}

func (hm *historyManager) Load() error {
	data, err := hm.fs.ReadFile(hm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no launches recorded yet
		}
		return err
	}

	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrapf(err, "failed to parse history file %s", hm.path)
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.records = records
	return nil
}

func (hm *historyManager) Save() error {
	hm.mu.Lock()
	data, err := json.MarshalIndent(hm.records, "", "  ")
	hm.mu.Unlock()
	if err != nil {
		return err
	}

	// Concurrent launches share the file; readers never see a partial write.
	tmp := fmt.Sprintf("%s.%d.tmp", hm.path, os.Getpid())
	if err := hm.fs.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := hm.fs.Rename(tmp, hm.path); err != nil {
		_ = hm.fs.Remove(tmp)
		return errors.Wrapf(err, "failed to replace history file %s", hm.path)
	}
	return nil
}

// Append adds a record, dropping the oldest ones beyond MaxHistoryRecords.
func (hm *historyManager) Append(record RunRecord) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.records = append(hm.records, record)
	if len(hm.records) > MaxHistoryRecords {
		hm.records = hm.records[len(hm.records)-MaxHistoryRecords:]
	}
}

func (hm *historyManager) Records() []RunRecord {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return append([]RunRecord(nil), hm.records...)
}

func (hm *historyManager) Path() string {
	return hm.path
}
