package models

// EndReason is why the playback node ended a track.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// ShouldAdvance reports whether the queue moves on after this end reason.
// A load failure is followed by an exception event, which owns the recovery.
func (r EndReason) ShouldAdvance() bool {
	return r == EndFinished || r == EndStopped
}
