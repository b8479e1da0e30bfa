package main

import "errors"

var (
	ErrSongNotFound     = errors.New("song not found")
	ErrBlobNotFound     = errors.New("audio blob not found")
	ErrBlobExists       = errors.New("audio blob already exists")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrPlaylistExists   = errors.New("playlist name already in use")
	ErrNotInitialized   = errors.New("library not initialized")
	ErrNoTrackLoaded    = errors.New("no track loaded")
)
