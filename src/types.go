package main

import "time"

// App metadata
const (
	APP_VERSION = "0.1.0"
	APP_NAME    = "crossplay"
)

// Storage filenames inside the data directory
const (
	STORE_FILENAME    = "crossplay.db"
	SETTINGS_FILENAME = "settings.json"
)

// Crossfade timing
const (
	CROSSFADE_DURATION = 2 * time.Second
	CROSSFADE_TICK     = 20 * time.Millisecond
)

// Cover art tile size for resized artwork
const ART_TILE_SIZE = 280

// --- Playback state ---

type PlayState int

const (
	StateIdle PlayState = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s PlayState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "idle"
}

type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	}
	return "off"
}

func parseRepeatMode(s string) RepeatMode {
	switch s {
	case "all":
		return RepeatAll
	case "one":
		return RepeatOne
	}
	return RepeatOff
}

type Direction int

const (
	DirNext Direction = iota
	DirPrevious
)

// --- Music library types ---

// Song is the metadata record for one imported audio file. The raw audio
// bytes live in a separate blob record keyed by the same id.
type Song struct {
	ID       string  `json:"id"`
	FileName string  `json:"filename"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	Duration float64 `json:"duration"`

	// Cover art, optional. Bytes are the original embedded picture.
	Art     []byte `json:"-"`
	ArtMIME string `json:"art_mime,omitempty"`
}

// Playlist is an ordered list of song ids. Names are unique. A playlist
// never owns blob lifetime: removing a song from it leaves the song alone.
type Playlist struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	SongIDs []string `json:"song_ids"`
}

// ImportFile is one candidate file handed to the library importer.
type ImportFile struct {
	Name string
	MIME string
	Data []byte
}

// --- Player events ---

// PlayerEvents are the callbacks UI collaborators hook into. Any of them
// may be nil. They are invoked from player goroutines and must not block.
type PlayerEvents struct {
	OnProgress     func(position, duration float64)
	OnTrackChanged func(song *Song)
	OnStateChanged func(isPlaying bool)
	OnError        func(message string)
}

func (e *PlayerEvents) progress(position, duration float64) {
	if e != nil && e.OnProgress != nil {
		e.OnProgress(position, duration)
	}
}

func (e *PlayerEvents) trackChanged(song *Song) {
	if e != nil && e.OnTrackChanged != nil {
		e.OnTrackChanged(song)
	}
}

func (e *PlayerEvents) stateChanged(isPlaying bool) {
	if e != nil && e.OnStateChanged != nil {
		e.OnStateChanged(isPlaying)
	}
}

func (e *PlayerEvents) error(message string) {
	if e != nil && e.OnError != nil {
		e.OnError(message)
	}
}
