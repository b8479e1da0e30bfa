package main

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
)

// Extensions accepted by the importer. A file passes when its declared
// MIME type has an audio prefix OR its extension is in this list — local
// files frequently arrive with an empty or wrong type, so neither check
// alone is trusted to reject.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".aiff": true,
	".alac": true,
	".opus": true,
	".amr":  true,
}

func isAudioFile(name, mimeType string) bool {
	if strings.HasPrefix(mimeType, "audio/") {
		return true
	}
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// Library coordinates the durable store with the in-memory views the UI
// and the playback engine consume: the title-sorted song list, the
// playlists, the queue, and a blob cache.
type Library struct {
	mu    sync.RWMutex
	store *ContentStore

	songs     []*Song
	songsByID map[string]*Song
	playlists []*Playlist
	blobCache map[string][]byte

	queue *PlaybackQueue

	initialized bool
}

func NewLibrary(store *ContentStore) *Library {
	return &Library{
		store:     store,
		songsByID: make(map[string]*Song),
		blobCache: make(map[string][]byte),
		queue:     newPlaybackQueue(time.Now().UnixNano()),
	}
}

// Initialize loads every song and playlist from the store and resolves
// each song's blob, retrying the read once before giving up. Songs whose
// blob stays unresolvable are dropped from the active library with a
// warning — never left present-but-unplayable. Must complete before any
// song selection is serviced.
func (l *Library) Initialize(ctx context.Context) error {
	start := time.Now()

	songs, err := l.store.ListSongs(ctx)
	if err != nil {
		return fmt.Errorf("load songs: %w", err)
	}
	playlists, err := l.store.ListPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("load playlists: %w", err)
	}

	playable := make([]*Song, 0, len(songs))
	dropped := 0
	for _, song := range songs {
		blob, err := l.loadBlobWithRetry(ctx, song.ID)
		if err != nil {
			logMsg(fmt.Sprintf("WARNING: Dropping %q (%s): %v", song.Title, song.ID, err))
			dropped++
			continue
		}
		playable = append(playable, song)
		l.blobCache[song.ID] = blob
	}

	l.mu.Lock()
	l.songs = playable
	l.songsByID = make(map[string]*Song, len(playable))
	for _, song := range playable {
		l.songsByID[song.ID] = song
	}
	l.playlists = playlists
	l.initialized = true
	l.mu.Unlock()

	l.queue.SetIDs(lo.Map(playable, func(s *Song, _ int) string { return s.ID }))

	logMsg(fmt.Sprintf("INFO: Library loaded: %d songs (%d dropped), %d playlists in %v",
		len(playable), dropped, len(playlists), time.Since(start)))
	return nil
}

// loadBlobWithRetry resolves a song's blob from the store, allowing one
// reload attempt for transient read failures. A missing blob is final —
// retrying cannot make it appear.
func (l *Library) loadBlobWithRetry(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	backoff := retry.WithMaxRetries(1, retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		blob, err = l.store.GetBlob(ctx, id)
		if err == nil || err == ErrBlobNotFound {
			return err
		}
		return retry.RetryableError(err)
	})
	return blob, err
}

// Ready reports whether Initialize has completed.
func (l *Library) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized
}

// --- Import ---

// ImportFiles extracts metadata and persists a Song plus its Blob for
// each accepted input, then appends them to the song list and the queue.
// Non-audio inputs are skipped with a warning. Per-file storage failures
// are logged and skipped; the remaining files still import.
func (l *Library) ImportFiles(ctx context.Context, files []ImportFile) []*Song {
	accepted := lo.Filter(files, func(f ImportFile, _ int) bool {
		if isAudioFile(f.Name, f.MIME) {
			return true
		}
		logMsg(fmt.Sprintf("WARNING: Skipping non-audio file: %s (%s)", f.Name, f.MIME))
		return false
	})

	imported := make([]*Song, 0, len(accepted))
	for _, f := range accepted {
		song := extractSongMetadata(f.Data, f.Name)

		if err := l.store.PutSong(ctx, song); err != nil {
			logMsg(fmt.Sprintf("ERROR: Failed to store song %s: %v", f.Name, err))
			continue
		}
		if err := l.store.PutBlob(ctx, song.ID, f.Data); err != nil {
			// Keep song and blob together: a song without a blob is the
			// orphaned state Initialize would evict anyway.
			logMsg(fmt.Sprintf("ERROR: Failed to store blob for %s: %v", f.Name, err))
			if derr := l.store.DeleteSong(ctx, song.ID); derr != nil {
				logMsg(fmt.Sprintf("ERROR: Failed to roll back song %s: %v", song.ID, derr))
			}
			continue
		}

		l.mu.Lock()
		l.songs = insertSorted(l.songs, song)
		l.songsByID[song.ID] = song
		l.blobCache[song.ID] = f.Data
		l.mu.Unlock()

		l.queue.Append(song.ID)
		imported = append(imported, song)
		logMsg(fmt.Sprintf("INFO: Imported %s - %s (%s)", song.Artist, song.Title, song.ID))
	}
	return imported
}

// insertSorted keeps the song list title-sorted with id tiebreak.
func insertSorted(songs []*Song, song *Song) []*Song {
	i := sort.Search(len(songs), func(i int) bool {
		ti, tj := strings.ToLower(songs[i].Title), strings.ToLower(song.Title)
		if ti != tj {
			return ti > tj
		}
		return songs[i].ID > song.ID
	})
	songs = append(songs, nil)
	copy(songs[i+1:], songs[i:])
	songs[i] = song
	return songs
}

// --- Resolution ---

// ResolveSong is the single authoritative path by which playback acquires
// audio bytes for an id: memory cache first, then the store, populating
// the cache on a storage hit.
func (l *Library) ResolveSong(ctx context.Context, id string) ([]byte, error) {
	l.mu.RLock()
	if !l.initialized {
		l.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	if blob, ok := l.blobCache[id]; ok {
		l.mu.RUnlock()
		return blob, nil
	}
	l.mu.RUnlock()

	blob, err := l.store.GetBlob(ctx, id)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.blobCache[id] = blob
	l.mu.Unlock()
	return blob, nil
}

// Song returns the in-memory record for an id.
func (l *Library) Song(id string) (*Song, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	song, ok := l.songsByID[id]
	return song, ok
}

// Songs returns the title-sorted song list.
func (l *Library) Songs() []*Song {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Song(nil), l.songs...)
}

// Queue returns the playback queue view.
func (l *Library) Queue() *PlaybackQueue {
	return l.queue
}

// SortedIDs returns song ids in library (title-sorted) order, the
// deterministic order restored when shuffle is toggled off.
func (l *Library) SortedIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Map(l.songs, func(s *Song, _ int) string { return s.ID })
}

// CoverArt returns the song's cover resized to a square tile, or the
// placeholder tile when the song has no art or the art fails to decode.
func (l *Library) CoverArt(id string, size int) image.Image {
	song, ok := l.Song(id)
	if ok && len(song.Art) > 0 {
		if img, err := resizeCoverArt(song.Art, size); err == nil {
			return img
		} else {
			logMsg(fmt.Sprintf("WARNING: Failed to decode art for %s: %v", song.Title, err))
		}
	}
	return placeholderArt(size)
}

// --- Playlists ---

// CreatePlaylist makes an empty playlist with a unique name.
func (l *Library) CreatePlaylist(ctx context.Context, name string) (*Playlist, error) {
	pl := &Playlist{ID: uuid.New().String(), Name: name, SongIDs: []string{}}
	if err := l.store.PutPlaylist(ctx, pl); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.playlists = append(l.playlists, pl)
	sort.Slice(l.playlists, func(i, j int) bool {
		return strings.ToLower(l.playlists[i].Name) < strings.ToLower(l.playlists[j].Name)
	})
	l.mu.Unlock()
	return pl, nil
}

// AddToPlaylist appends a song id to a playlist. Adding an id that is
// already a member is a no-op, so songIds never holds duplicates.
func (l *Library) AddToPlaylist(ctx context.Context, playlistID, songID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pl := l.playlistLocked(playlistID)
	if pl == nil {
		return ErrPlaylistNotFound
	}
	if lo.Contains(pl.SongIDs, songID) {
		return nil
	}

	updated := *pl
	updated.SongIDs = append(append([]string(nil), pl.SongIDs...), songID)
	if err := l.store.UpdatePlaylist(ctx, &updated); err != nil {
		return err
	}
	pl.SongIDs = updated.SongIDs
	return nil
}

// RemoveFromPlaylist drops a song id from a playlist. The underlying song
// and blob are untouched.
func (l *Library) RemoveFromPlaylist(ctx context.Context, playlistID, songID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pl := l.playlistLocked(playlistID)
	if pl == nil {
		return ErrPlaylistNotFound
	}

	kept := lo.Filter(pl.SongIDs, func(id string, _ int) bool { return id != songID })
	if len(kept) == len(pl.SongIDs) {
		return nil
	}

	updated := *pl
	updated.SongIDs = kept
	if err := l.store.UpdatePlaylist(ctx, &updated); err != nil {
		return err
	}
	pl.SongIDs = kept
	return nil
}

// DeletePlaylist removes a playlist entirely.
func (l *Library) DeletePlaylist(ctx context.Context, playlistID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.DeletePlaylist(ctx, playlistID); err != nil {
		return err
	}
	l.playlists = lo.Filter(l.playlists, func(pl *Playlist, _ int) bool { return pl.ID != playlistID })
	return nil
}

// Playlists returns the name-sorted playlist list.
func (l *Library) Playlists() []*Playlist {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Playlist(nil), l.playlists...)
}

// Playlist returns a playlist by id.
func (l *Library) Playlist(id string) (*Playlist, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pl := l.playlistLocked(id)
	return pl, pl != nil
}

func (l *Library) playlistLocked(id string) *Playlist {
	for _, pl := range l.playlists {
		if pl.ID == id {
			return pl
		}
	}
	return nil
}

// --- Deletion ---

// DeleteSong removes a song everywhere: store (song, blob, playlist
// membership, in one transaction), in-memory mirror, and queue.
func (l *Library) DeleteSong(ctx context.Context, id string) error {
	if err := l.store.DeleteSong(ctx, id); err != nil {
		return err
	}

	l.mu.Lock()
	delete(l.songsByID, id)
	delete(l.blobCache, id)
	l.songs = lo.Filter(l.songs, func(s *Song, _ int) bool { return s.ID != id })
	for _, pl := range l.playlists {
		pl.SongIDs = lo.Filter(pl.SongIDs, func(sid string, _ int) bool { return sid != id })
	}
	l.mu.Unlock()

	l.queue.Remove(id)
	return nil
}

// ClearLibrary deletes every song and blob and empties every playlist.
// Destructive and irreversible; callers are expected to confirm with the
// user first.
func (l *Library) ClearLibrary(ctx context.Context) error {
	if err := l.store.ClearAll(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.songs = nil
	l.songsByID = make(map[string]*Song)
	l.blobCache = make(map[string][]byte)
	for _, pl := range l.playlists {
		pl.SongIDs = []string{}
	}
	l.mu.Unlock()

	l.queue.SetIDs(nil)
	logMsg("INFO: Library cleared")
	return nil
}
