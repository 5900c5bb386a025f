package models

import (
	"time"

	"gorm.io/gorm"
)

// Note is a saved, transcribed recording
type Note struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title           string  `gorm:"not null" json:"title"`
	Transcript      string  `json:"transcript"`
	Language        string  `json:"language"`
	DurationSeconds float64 `json:"duration_seconds"`
	AudioURL        string  `json:"audio_url"`
	MIMEType        string  `json:"mime_type"`

	// Relationships
	Transformations []Transformation `gorm:"foreignKey:NoteID" json:"transformations"`
}

// Transformation is an LLM rewrite of a note's transcript
type Transformation struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	NoteID       uint   `gorm:"not null;index" json:"note_id"`
	TypeName     string `gorm:"not null" json:"type_name"` // summary, quick-note, list, blog, email
	Text         string `json:"text"`
	IsGenerating bool   `gorm:"default:true" json:"is_generating"`

	// Relationships
	Note Note `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
