package stream

import "errors"

var (
	// ErrNoDestination means neither the request nor the configuration
	// carries an RTMP destination. Operator correction required, not retried.
	ErrNoDestination = errors.New("stream: no destination configured")

	// ErrAlreadyRunning is returned in single-session-per-owner mode when the
	// owner already has a live session.
	ErrAlreadyRunning = errors.New("stream: owner already has a live session")

	// ErrNotFound means no live session exists for the given id.
	ErrNotFound = errors.New("stream: session not found")

	// ErrNotRunning rejects an operation that is only valid on a running session.
	ErrNotRunning = errors.New("stream: session is not running")

	// ErrNotPaused rejects resume on a session that is not paused.
	ErrNotPaused = errors.New("stream: session is not paused")

	// ErrNotPlaylist rejects playlist operations on non-playlist sessions.
	ErrNotPlaylist = errors.New("stream: session has no playlist")

	// ErrEmptyQueue means the playlist has no unplayed items left.
	ErrEmptyQueue = errors.New("stream: playlist has no unplayed items")

	// ErrItemNotFound means the playlist has no item with the given id.
	ErrItemNotFound = errors.New("stream: playlist item not found")

	// ErrItemPlayed rejects removal of an item that has already been played.
	ErrItemPlayed = errors.New("stream: playlist item already played")
)
