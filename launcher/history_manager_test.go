package launcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sync"
	"testing"
	"testing/quick"
	"time"

	"github.com/ZacxDev/lightrunner/fs/mock"
)

func intPtr(i int) *int { return &i }

// TestLoadHistory tests the Load method
func TestLoadHistory(t *testing.T) {
	fs := mock.NewMockFileSystem()
	hm := NewHistoryManager(fs, DefaultHistoryFile)

	// Loading a missing history file is not an error
	if err := hm.Load(); err != nil {
		t.Errorf("Load should not return an error for non-existent file: %v", err)
	}
	if len(hm.Records()) != 0 {
		t.Error("Records should be empty without a history file")
	}

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	testData := []RunRecord{
		{ID: "01HX", Profile: "living_light", PID: 10, LogPath: "logs/a.log", StartTime: start, ExitCode: intPtr(0)},
	}
	testDataJSON, _ := json.Marshal(testData)
	fs.WriteFile(DefaultHistoryFile, testDataJSON, 0644)

	if err := hm.Load(); err != nil {
		t.Errorf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(hm.Records(), testData) {
		t.Errorf("Load did not load data correctly: %+v", hm.Records())
	}

	fs.WriteFile(DefaultHistoryFile, []byte("invalid json"), 0644)
	if err := hm.Load(); err == nil {
		t.Error("Load should return an error for invalid JSON")
	}
}

// TestSaveHistory tests the Save method
func TestSaveHistory(t *testing.T) {
	fs := mock.NewMockFileSystem()
	hm := NewHistoryManager(fs, "state/history.json")

	hm.Append(RunRecord{ID: "a", Profile: "living_light", Detached: true})
	if err := hm.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := fs.ReadFile("state/history.json")
	if err != nil {
		t.Fatalf("history file was not written: %v", err)
	}

	for name := range fs.Files {
		if name != "state/history.json" {
			t.Errorf("Save left %s behind", name)
		}
	}

	var saved []RunRecord
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("history file is not valid JSON: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != "a" || !saved[0].Detached || saved[0].ExitCode != nil {
		t.Errorf("Unexpected saved history: %+v", saved)
	}
}

func TestHistoryIsCapped(t *testing.T) {
	hm := NewHistoryManager(mock.NewMockFileSystem(), DefaultHistoryFile)

	for i := 0; i < MaxHistoryRecords+25; i++ {
		hm.Append(RunRecord{ID: fmt.Sprintf("run-%d", i)})
	}

	records := hm.Records()
	if len(records) != MaxHistoryRecords {
		t.Fatalf("Expected %d records, got %d", MaxHistoryRecords, len(records))
	}
	if records[0].ID != "run-25" {
		t.Errorf("Expected oldest kept record run-25, got %s", records[0].ID)
	}
	if records[len(records)-1].ID != fmt.Sprintf("run-%d", MaxHistoryRecords+24) {
		t.Errorf("Unexpected newest record %s", records[len(records)-1].ID)
	}
}

func TestHistoryManagerEdgeCases(t *testing.T) {
	fs := mock.NewMockFileSystem()
	hm := NewHistoryManager(fs, DefaultHistoryFile)

	fs.Files[DefaultHistoryFile] = &mock.MockFile{Buffer: bytes.NewBuffer([]byte("[]")), ReadOnly: true}
	if err := hm.Load(); err != os.ErrPermission {
		t.Errorf("Expected os.ErrPermission, got %v", err)
	}

	hm.Append(RunRecord{ID: "x"})
	if err := hm.Save(); err == nil {
		t.Error("Save should return an error when file cannot be written")
	}
}

func TestHistoryManagerConcurrency(t *testing.T) {
	hm := NewHistoryManager(mock.NewMockFileSystem(), DefaultHistoryFile)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			hm.Append(RunRecord{ID: fmt.Sprintf("%d", i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = hm.Records()
		}
	}()
	wg.Wait()

	if len(hm.Records()) != MaxHistoryRecords {
		t.Errorf("Expected %d records, got %d", MaxHistoryRecords, len(hm.Records()))
	}
}

func TestNewRunIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if len(id) != 26 {
			t.Fatalf("Expected 26 character ULID, got %q", id)
		}
		if seen[id] {
			t.Fatalf("Duplicate run id %s", id)
		}
		seen[id] = true
	}
}

// Property: the newest appended record is always last.
func TestHistoryAppendProperty(t *testing.T) {
	f := func(ids []string, last string) bool {
		hm := NewHistoryManager(mock.NewMockFileSystem(), DefaultHistoryFile)
		for _, id := range ids {
			hm.Append(RunRecord{ID: id})
		}
		hm.Append(RunRecord{ID: last})
		records := hm.Records()
		return len(records) <= MaxHistoryRecords && records[len(records)-1].ID == last
	}

	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
