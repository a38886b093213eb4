package protocol

import (
	"fmt"
	"time"
)

// PhraseAttribution is one recognized phrase broadcast on the bus after
// speaker identification.
type PhraseAttribution struct {
	SessionID string    `json:"session_id"`
	Segment   string    `json:"segment"`
	Speaker   string    `json:"speaker"`
	Score     float64   `json:"score"`
	Text      string    `json:"text"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Timestamp time.Time `json:"timestamp"`
}

// PlaybackEvent announces play/pause transitions for a session.
type PlaybackEvent struct {
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Media     string    `json:"media"`
	Offset    float64   `json:"offset"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectPhrasePrefix   = "transcript.phrase"
	SubjectPlaybackPrefix = "playback.control"
)

// SubjectPhrase returns the per-session phrase attribution subject.
func SubjectPhrase(sessionID string) string {
	return fmt.Sprintf("%s.%s", SubjectPhrasePrefix, sessionID)
}

// SubjectPlayback returns the per-session playback control subject.
func SubjectPlayback(sessionID string) string {
	return fmt.Sprintf("%s.%s", SubjectPlaybackPrefix, sessionID)
}
