package models

import (
	"time"
)

// RecordingSession is the durable mirror of an in-progress recording.
// It lives only until the recording is saved, discarded or purged.
type RecordingSession struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StartTime          time.Time `gorm:"not null;index" json:"start_time"`
	ElapsedSeconds     int       `gorm:"not null;default:0" json:"elapsed_seconds"`
	CaptureSystemAudio bool      `gorm:"default:false" json:"capture_system_audio"`
	Paused             bool      `gorm:"default:false" json:"paused"`
	LastCheckpoint     time.Time `gorm:"not null" json:"last_checkpoint"`

	// Recorded format, needed to turn raw chunks back into a playable file
	Language   string `json:"language"`
	SampleRate int    `gorm:"not null" json:"sample_rate"`
	Channels   int    `gorm:"not null" json:"channels"`
	MIMEType   string `json:"mime_type"`
}

// AudioChunk is one durably appended slice of encoded audio.
type AudioChunk struct {
	SessionID  string    `gorm:"primaryKey;autoIncrement:false" json:"session_id"`
	Seq        int       `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	Payload    []byte    `gorm:"not null" json:"-"`
	CapturedAt time.Time `gorm:"not null" json:"captured_at"`
}
