package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ContentStore {
	t.Helper()
	store, err := OpenContentStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSong(id, title string) *Song {
	return &Song{
		ID:       id,
		FileName: title + ".mp3",
		Title:    title,
		Artist:   "Artist",
		Album:    "Album",
		Duration: 180,
	}
}

func TestSongRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	song := testSong("s1", "First")
	song.Art = []byte{0x1, 0x2}
	song.ArtMIME = "image/jpeg"
	require.NoError(t, store.PutSong(ctx, song))

	got, err := store.GetSong(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, song, got)
}

func TestGetSongMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetSong(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestPutSongUpdatesInPlace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	song := testSong("s1", "First")
	require.NoError(t, store.PutSong(ctx, song))

	song.Title = "Renamed"
	require.NoError(t, store.PutSong(ctx, song))

	got, err := store.GetSong(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	songs, err := store.ListSongs(ctx)
	require.NoError(t, err)
	assert.Len(t, songs, 1)
}

func TestListSongsSortedByTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, s := range []*Song{
		testSong("s1", "zebra"),
		testSong("s2", "Apple"),
		testSong("s3", "mango"),
	} {
		require.NoError(t, store.PutSong(ctx, s))
	}

	songs, err := store.ListSongs(ctx)
	require.NoError(t, err)

	titles := make([]string, len(songs))
	for i, s := range songs {
		titles[i] = s.Title
	}
	assert.Equal(t, []string{"Apple", "mango", "zebra"}, titles)
}

func TestBlobCreateOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutBlob(ctx, "s1", []byte("audio")))

	err := store.PutBlob(ctx, "s1", []byte("other"))
	assert.ErrorIs(t, err, ErrBlobExists)

	data, err := store.GetBlob(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), data, "a second write never overwrites the original blob")
}

func TestGetBlobMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetBlob(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestDeleteSongCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSong(ctx, testSong("s1", "First")))
	require.NoError(t, store.PutSong(ctx, testSong("s2", "Second")))
	require.NoError(t, store.PutBlob(ctx, "s1", []byte("one")))
	require.NoError(t, store.PutBlob(ctx, "s2", []byte("two")))
	require.NoError(t, store.PutPlaylist(ctx, &Playlist{ID: "p1", Name: "Mix", SongIDs: []string{"s1", "s2"}}))

	require.NoError(t, store.DeleteSong(ctx, "s1"))

	_, err := store.GetSong(ctx, "s1")
	assert.ErrorIs(t, err, ErrSongNotFound)
	_, err = store.GetBlob(ctx, "s1")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	playlists, err := store.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Equal(t, []string{"s2"}, playlists[0].SongIDs, "deletion scrubs playlist membership")

	_, err = store.GetSong(ctx, "s2")
	assert.NoError(t, err, "unrelated songs survive")
}

func TestDeleteSongMissing(t *testing.T) {
	store := newTestStore(t)
	err := store.DeleteSong(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestPlaylistNameUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutPlaylist(ctx, &Playlist{ID: "p1", Name: "Mix"}))

	err := store.PutPlaylist(ctx, &Playlist{ID: "p2", Name: "Mix"})
	assert.ErrorIs(t, err, ErrPlaylistExists)
}

func TestPutPlaylistDuplicateIDIsNotNameCollision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutPlaylist(ctx, &Playlist{ID: "p1", Name: "Mix"}))

	err := store.PutPlaylist(ctx, &Playlist{ID: "p1", Name: "Other"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPlaylistExists, "an id collision is not a taken name")
}

func TestUpdatePlaylistMissing(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdatePlaylist(context.Background(), &Playlist{ID: "ghost", Name: "x"})
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestDeletePlaylistMissing(t *testing.T) {
	store := newTestStore(t)
	err := store.DeletePlaylist(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestListPlaylistsSortedByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutPlaylist(ctx, &Playlist{ID: "p1", Name: "workout"}))
	require.NoError(t, store.PutPlaylist(ctx, &Playlist{ID: "p2", Name: "Chill"}))

	playlists, err := store.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, "Chill", playlists[0].Name)
	assert.Equal(t, "workout", playlists[1].Name)
}

func TestClearAllKeepsEmptyPlaylists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSong(ctx, testSong("s1", "First")))
	require.NoError(t, store.PutBlob(ctx, "s1", []byte("one")))
	require.NoError(t, store.PutPlaylist(ctx, &Playlist{ID: "p1", Name: "Mix", SongIDs: []string{"s1"}}))

	require.NoError(t, store.ClearAll(ctx))

	songs, err := store.ListSongs(ctx)
	require.NoError(t, err)
	assert.Empty(t, songs)

	_, err = store.GetBlob(ctx, "s1")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	playlists, err := store.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Empty(t, playlists[0].SongIDs)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	ctx := context.Background()

	store, err := OpenContentStore(path)
	require.NoError(t, err)
	require.NoError(t, store.PutSong(ctx, testSong("s1", "First")))
	require.NoError(t, store.Close())

	// Reopening runs the migration set again; it must be a no-op.
	store, err = OpenContentStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetSong(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
}
