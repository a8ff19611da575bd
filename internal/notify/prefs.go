package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Preferences are the per-user notification settings. They are the one
// piece of locally persisted state in the portal: read at mount, written on
// every change, process-wide.
type Preferences struct {
	EmailOnPayment   bool   `json:"email_on_payment"`
	EmailOnNewLead   bool   `json:"email_on_new_lead"`
	EmailOnStageMove bool   `json:"email_on_stage_move"`
	DesktopToasts    bool   `json:"desktop_toasts"`
	DigestFrequency  string `json:"digest_frequency"` // daily, weekly, off
}

// DefaultPreferences returns the settings applied before any user change.
func DefaultPreferences() Preferences {
	return Preferences{
		EmailOnPayment:  true,
		EmailOnNewLead:  true,
		DesktopToasts:   true,
		DigestFrequency: "daily",
	}
}

// PrefStore persists Preferences to a local JSON file.
type PrefStore struct {
	mu    sync.Mutex
	path  string
	prefs Preferences
}

// OpenPrefStore loads preferences from path, falling back to defaults when
// the file is missing or unreadable.
func OpenPrefStore(path string) *PrefStore {
	s := &PrefStore{path: path, prefs: DefaultPreferences()}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return s
	}
	s.prefs = prefs
	return s
}

// Get returns the current preferences.
func (s *PrefStore) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Set replaces the preferences and writes them out immediately.
func (s *PrefStore) Set(prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
	return s.writeLocked()
}

// Update applies a mutation and writes the result out immediately.
func (s *PrefStore) Update(fn func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.prefs)
	return s.writeLocked()
}

func (s *PrefStore) writeLocked() error {
	data, err := json.MarshalIndent(s.prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences dir: %w", err)
		}
	}
	// Write-then-rename so a crash mid-write never corrupts the file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}
