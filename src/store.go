package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ContentStore is the durable store for songs, audio blobs, and playlists.
// Schema versions are managed by goose; opening an older database runs the
// additive migrations in migrations/.
type ContentStore struct {
	db *sql.DB
}

// OpenContentStore opens (or creates) the database at path and brings the
// schema up to date. An open or migration failure here is fatal to the
// session; callers surface it and offer clear-and-reinitialize.
func OpenContentStore(path string) (*ContentStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate content store: %w", err)
	}

	return &ContentStore{db: db}, nil
}

func (s *ContentStore) Close() error {
	return s.db.Close()
}

// --- Songs ---

func (s *ContentStore) PutSong(ctx context.Context, song *Song) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO songs (id, filename, title, artist, album, duration, art, art_mime)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     filename = excluded.filename,
		     title = excluded.title,
		     artist = excluded.artist,
		     album = excluded.album,
		     duration = excluded.duration,
		     art = excluded.art,
		     art_mime = excluded.art_mime`,
		song.ID, song.FileName, song.Title, song.Artist, song.Album, song.Duration, song.Art, song.ArtMIME)
	if err != nil {
		return fmt.Errorf("put song %s: %w", song.ID, err)
	}
	return nil
}

func (s *ContentStore) GetSong(ctx context.Context, id string) (*Song, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, title, artist, album, duration, art, art_mime FROM songs WHERE id = ?`, id)
	return scanSong(row)
}

// ListSongs returns every song sorted by title, with id as a stable
// tiebreak for identical titles.
func (s *ContentStore) ListSongs(ctx context.Context) ([]*Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, title, artist, album, duration, art, art_mime FROM songs
		 ORDER BY title COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*Song, error) {
	song := &Song{}
	err := row.Scan(&song.ID, &song.FileName, &song.Title, &song.Artist, &song.Album, &song.Duration, &song.Art, &song.ArtMIME)
	if err == sql.ErrNoRows {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan song: %w", err)
	}
	return song, nil
}

// DeleteSong removes a song, its blob, and its membership in every
// playlist as a single transaction. A partially applied delete (song gone
// but blob orphaned) must never be observable.
func (s *ContentStore) DeleteSong(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete song %s: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete song %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSongNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}

	if err := scrubPlaylistMembership(ctx, tx, id); err != nil {
		return err
	}

	return tx.Commit()
}

// scrubPlaylistMembership removes id from every playlist's song_ids list.
func scrubPlaylistMembership(ctx context.Context, tx *sql.Tx, id string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, song_ids FROM playlists`)
	if err != nil {
		return fmt.Errorf("scan playlists: %w", err)
	}

	type update struct {
		playlistID string
		songIDs    string
	}
	var updates []update

	for rows.Next() {
		var playlistID, rawIDs string
		if err := rows.Scan(&playlistID, &rawIDs); err != nil {
			rows.Close()
			return fmt.Errorf("scan playlist: %w", err)
		}
		ids := decodeSongIDs(rawIDs)
		kept := make([]string, 0, len(ids))
		for _, sid := range ids {
			if sid != id {
				kept = append(kept, sid)
			}
		}
		if len(kept) != len(ids) {
			updates = append(updates, update{playlistID, encodeSongIDs(kept)})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `UPDATE playlists SET song_ids = ? WHERE id = ?`, u.songIDs, u.playlistID); err != nil {
			return fmt.Errorf("scrub playlist %s: %w", u.playlistID, err)
		}
	}
	return nil
}

// --- Blobs ---

// PutBlob stores the raw audio bytes for a song id. Blobs are create-once:
// writing a second blob for the same id is an error, never an overwrite.
func (s *ContentStore) PutBlob(ctx context.Context, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO blobs (id, data) VALUES (?, ?)`, id, data)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("blob %s: %w", id, ErrBlobExists)
		}
		return fmt.Errorf("put blob %s: %w", id, err)
	}
	return nil
}

func (s *ContentStore) GetBlob(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id, err)
	}
	return data, nil
}

// --- Playlists ---

func (s *ContentStore) PutPlaylist(ctx context.Context, pl *Playlist) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (id, name, song_ids) VALUES (?, ?, ?)`,
		pl.ID, pl.Name, encodeSongIDs(pl.SongIDs))
	if err != nil {
		// Only a name collision means "already exists"; an id collision is
		// a caller bug and surfaces as-is.
		if strings.Contains(err.Error(), "UNIQUE constraint failed: playlists.name") {
			return fmt.Errorf("playlist %q: %w", pl.Name, ErrPlaylistExists)
		}
		return fmt.Errorf("put playlist %s: %w", pl.ID, err)
	}
	return nil
}

func (s *ContentStore) UpdatePlaylist(ctx context.Context, pl *Playlist) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, song_ids = ? WHERE id = ?`,
		pl.Name, encodeSongIDs(pl.SongIDs), pl.ID)
	if err != nil {
		return fmt.Errorf("update playlist %s: %w", pl.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

func (s *ContentStore) DeletePlaylist(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete playlist %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

// ListPlaylists returns every playlist sorted by name.
func (s *ContentStore) ListPlaylists(ctx context.Context) ([]*Playlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, song_ids FROM playlists ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*Playlist
	for rows.Next() {
		pl := &Playlist{}
		var rawIDs string
		if err := rows.Scan(&pl.ID, &pl.Name, &rawIDs); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		pl.SongIDs = decodeSongIDs(rawIDs)
		playlists = append(playlists, pl)
	}
	return playlists, rows.Err()
}

// ClearAll deletes every song and blob and empties every playlist's song
// list. The playlists themselves survive.
func (s *ContentStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM blobs`,
		`DELETE FROM songs`,
		`UPDATE playlists SET song_ids = '[]'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear store: %w", err)
		}
	}
	return tx.Commit()
}

func encodeSongIDs(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func decodeSongIDs(raw string) []string {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		logMsg(fmt.Sprintf("WARNING: Corrupt playlist song list %q: %v", raw, err))
		return nil
	}
	return ids
}
