package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Preferences are the lightweight persisted knobs. They live outside the
// content store, are best-effort, and deliberately never include the
// current song or position — losing resume position across restarts is a
// scope decision, not a bug.
type Preferences struct {
	Volume    float64
	Muted     bool
	Shuffle   bool
	Repeat    RepeatMode
	Crossfade bool
	Theme     string
}

// settingsFile is the on-disk JSON shape. Volume and repeat are stored as
// strings so a hand-edited or partially written file degrades to defaults
// instead of failing to parse.
type settingsFile struct {
	Volume    string `json:"volume,omitempty"`
	Muted     bool   `json:"muted,omitempty"`
	Shuffle   bool   `json:"shuffle,omitempty"`
	Repeat    string `json:"repeat,omitempty"`
	Crossfade bool   `json:"crossfade,omitempty"`
	Theme     string `json:"theme,omitempty"`
}

func defaultPreferences() Preferences {
	return Preferences{
		Volume: 1,
		Repeat: RepeatOff,
		Theme:  "light",
	}
}

// loadPreferences reads the settings file, returning defaults when the
// file is absent or unreadable. First run has no file; that is not an
// error.
func loadPreferences(path string) Preferences {
	prefs := defaultPreferences()

	data, err := os.ReadFile(path)
	if err != nil {
		return prefs
	}

	var sf settingsFile
	if err := json.Unmarshal(data, &sf); err != nil {
		logMsg(fmt.Sprintf("WARNING: Could not parse settings: %v (using defaults)", err))
		return prefs
	}

	if sf.Volume != "" {
		var v float64
		if _, err := fmt.Sscanf(sf.Volume, "%f", &v); err == nil {
			prefs.Volume = clampUnit(v)
		}
	}
	prefs.Muted = sf.Muted
	prefs.Shuffle = sf.Shuffle
	prefs.Repeat = parseRepeatMode(sf.Repeat)
	prefs.Crossfade = sf.Crossfade
	if sf.Theme == "dark" {
		prefs.Theme = "dark"
	}
	return prefs
}

// savePreferences writes the settings file. Best-effort: a failure is
// logged, never fatal.
func savePreferences(path string, prefs Preferences) {
	sf := settingsFile{
		Volume:    fmt.Sprintf("%g", prefs.Volume),
		Muted:     prefs.Muted,
		Shuffle:   prefs.Shuffle,
		Repeat:    prefs.Repeat.String(),
		Crossfade: prefs.Crossfade,
		Theme:     prefs.Theme,
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		logMsg(fmt.Sprintf("ERROR: Failed to marshal settings: %v", err))
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logMsg(fmt.Sprintf("ERROR: Failed to save settings: %v", err))
	}
}
