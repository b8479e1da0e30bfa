package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
)

// Files above this size skip full tag parsing and duration probing. Lite
// extraction trades accuracy for reliability on constrained devices. A
// variable so tests can lower it without allocating huge buffers.
var LITE_PARSE_THRESHOLD = 128 << 20

// extractSongMetadata turns raw file bytes into a Song record. It never
// fails: when parsing breaks down it falls back to a filename-derived
// title with Unknown artist/album, no art, and zero duration. The id is
// generated here, once, and never reused — identical filenames imported
// twice yield distinct songs.
func extractSongMetadata(data []byte, filename string) *Song {
	song := &Song{
		ID:       uuid.New().String(),
		FileName: filepath.Base(filename),
		Title:    titleFromFilename(filename),
		Artist:   "Unknown",
		Album:    "Unknown",
	}

	if len(data) > LITE_PARSE_THRESHOLD {
		logMsg(fmt.Sprintf("[META] Lite extraction for %s (%d bytes over threshold)", filename, len(data)))
		return song
	}

	fillFromTags(song, data, filename)
	song.Duration = probeDuration(data, filename)
	return song
}

// fillFromTags reads embedded tags into song. Tag parsing of hostile input
// must never take the importer down, so panics are absorbed here too.
func fillFromTags(song *Song, data []byte, filename string) {
	defer func() {
		if r := recover(); r != nil {
			logMsg(fmt.Sprintf("[META] Tag parser panic on %s: %v", filename, r))
		}
	}()

	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		logMsg(fmt.Sprintf("[META] Tag read error: %s | %v", filename, err))
		return
	}

	if t := strings.TrimSpace(m.Title()); t != "" {
		song.Title = t
	}
	if a := strings.TrimSpace(m.Artist()); a != "" {
		song.Artist = a
	}
	if a := strings.TrimSpace(m.Album()); a != "" {
		song.Album = a
	}

	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		song.Art = pic.Data
		song.ArtMIME = pic.MIMEType
	}
}

// probeDuration decodes just enough of the stream to compute its length.
// Returns 0 when the codec is unsupported or the stream is corrupt; the
// playback engine fills the real duration in once the track is decoded.
func probeDuration(data []byte, filename string) float64 {
	streamer, format, err := decodeAudio(data, filename)
	if err != nil {
		logMsg(fmt.Sprintf("[META] Duration probe failed for %s: %v", filename, err))
		return 0
	}
	defer streamer.Close()

	n := streamer.Len()
	if n <= 0 || format.SampleRate <= 0 {
		return 0
	}
	return format.SampleRate.D(n).Seconds()
}

// titleFromFilename strips the directory and extension from a filename.
func titleFromFilename(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" {
		return base
	}
	return title
}
