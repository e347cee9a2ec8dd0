package domain

import "errors"

// ErrSnapshotNotFound is returned when a session ID cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrUnsupportedVersion is returned when a snapshot uses an unknown format version.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// ErrEmptySessionID is returned by stores when the session ID is empty.
var ErrEmptySessionID = errors.New("session ID cannot be empty")
