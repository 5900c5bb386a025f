package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/balkashynov/whisp/internal/models"
)

// CreateNoteRequest holds the data needed to create a new note
type CreateNoteRequest struct {
	Title           string
	Transcript      string
	Language        string
	DurationSeconds float64
	AudioURL        string
	MIMEType        string
}

// CreateNote stores a transcribed recording
func CreateNote(req CreateNoteRequest) (*models.Note, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle(req.Transcript, time.Now())
	}

	note := models.Note{
		Title:           title,
		Transcript:      req.Transcript,
		Language:        req.Language,
		DurationSeconds: req.DurationSeconds,
		AudioURL:        req.AudioURL,
		MIMEType:        req.MIMEType,
	}

	if err := DB.Create(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

// DefaultTitle derives a title from the first words of a transcript
func DefaultTitle(transcript string, at time.Time) string {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return "Recording " + at.Format("Jan 02 15:04")
	}
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}

// NoteQueryOptions filters note listings
type NoteQueryOptions struct {
	Since   *time.Time
	OrderBy string
	Limit   int
}

// GetNotes retrieves notes, newest first unless ordered otherwise
func GetNotes(opts NoteQueryOptions) ([]models.Note, error) {
	var notes []models.Note

	query := DB.Model(&models.Note{})
	if opts.Since != nil {
		query = query.Where("created_at >= ?", *opts.Since)
	}
	if opts.OrderBy != "" {
		query = query.Order(opts.OrderBy)
	} else {
		query = query.Order("created_at DESC")
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	if err := query.Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// SearchNotes returns notes whose title or transcript contains query (case insensitive)
func SearchNotes(query string, opts NoteQueryOptions) ([]models.Note, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var notes []models.Note
	q := DB.Where("LOWER(title) LIKE ? OR LOWER(transcript) LIKE ?", like, like)
	if opts.OrderBy != "" {
		q = q.Order(opts.OrderBy)
	} else {
		q = q.Order("created_at DESC")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if err := q.Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// GetNoteByID retrieves a note with its transformations
func GetNoteByID(id uint) (*models.Note, error) {
	var note models.Note

	err := DB.Preload("Transformations").First(&note, id).Error
	if err != nil {
		return nil, fmt.Errorf("note #%d not found", id)
	}
	return &note, nil
}

// UpdateNoteRequest holds optional edits; nil fields are left untouched
type UpdateNoteRequest struct {
	Title      *string
	Transcript *string
}

// UpdateNote applies edits to a note
func UpdateNote(id uint, req UpdateNoteRequest) (*models.Note, error) {
	note, err := GetNoteByID(id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("title cannot be empty")
		}
		note.Title = title
	}
	if req.Transcript != nil {
		note.Transcript = *req.Transcript
	}

	if err := DB.Save(note).Error; err != nil {
		return nil, err
	}
	return note, nil
}

// DeleteNote removes a note and its transformations
func DeleteNote(id uint) error {
	if _, err := GetNoteByID(id); err != nil {
		return err
	}
	if err := DB.Where("note_id = ?", id).Delete(&models.Transformation{}).Error; err != nil {
		return err
	}
	return DB.Delete(&models.Note{}, id).Error
}

// CreateTransformation records a transformation that is still being generated
func CreateTransformation(noteID uint, typeName string) (*models.Transformation, error) {
	t := models.Transformation{
		NoteID:       noteID,
		TypeName:     typeName,
		IsGenerating: true,
	}
	if err := DB.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FinishTransformation stores the generated text
func FinishTransformation(id uint, text string) error {
	return DB.Model(&models.Transformation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"text": text, "is_generating": false}).Error
}

// RecordedMinutesSince sums the duration of notes created after since
func RecordedMinutesSince(since time.Time) (float64, error) {
	var seconds float64
	err := DB.Model(&models.Note{}).
		Where("created_at >= ?", since).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Scan(&seconds).Error
	if err != nil {
		return 0, err
	}
	return seconds / 60, nil
}

// TransformationsSince counts transformations created after since
func TransformationsSince(since time.Time) (int, error) {
	var count int64
	err := DB.Model(&models.Transformation{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return int(count), err
}
