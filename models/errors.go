package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotInVoiceChannel = errors.New("not in a voice channel")
	ErrEmptyQuery        = errors.New("empty query")
	ErrNotFound          = errors.New("no track found")
	ErrProviderError     = errors.New("provider error")
	ErrNoBackendNode     = errors.New("no playback node available")
	ErrInvalidPosition   = errors.New("invalid queue position")
	ErrInvalidVolume     = errors.New("volume must be between 0 and 100")
	ErrNothingPlaying    = errors.New("nothing is playing")
	ErrPlaybackException = errors.New("playback exception")
)

// ProviderError is an error payload returned by an upstream provider.
type ProviderError struct {
	Provider Provider
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderError
}

// PlaybackError is a runtime failure reported by the playback node for a track.
type PlaybackError struct {
	Encoded  string
	Message  string
	Severity string
	Cause    string
}

func (e *PlaybackError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("playback failed (%s): %s: %s", e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("playback failed (%s): %s", e.Severity, e.Message)
}

func (e *PlaybackError) Is(target error) bool {
	return target == ErrPlaybackException
}
