package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
)

func (s *Server) registerNoteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotes",
		Method:      http.MethodGet,
		Path:        "/api/notes",
		Summary:     "List notes",
		Description: "Returns every note of the current user, most recently updated first",
		Tags:        []string{"Notes"},
		Security:    bearer,
	}, s.handleListNotes)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createNote",
		Method:        http.MethodPost,
		Path:          "/api/notes",
		Summary:       "Create note",
		Description:   "Creates a note. The first of bucketIds is the primary bucket; the rest are shared buckets",
		Tags:          []string{"Notes"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "getNote",
		Method:      http.MethodGet,
		Path:        "/api/notes/{id}",
		Summary:     "Get note",
		Description: "Returns a note with its shared buckets",
		Tags:        []string{"Notes"},
		Security:    bearer,
	}, s.handleGetNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateNote",
		Method:      http.MethodPut,
		Path:        "/api/notes/{id}",
		Summary:     "Update note",
		Description: "Updates the supplied fields of a note. A bucketIds list replaces the note's membership",
		Tags:        []string{"Notes"},
		Security:    bearer,
	}, s.handleUpdateNote)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteNote",
		Method:        http.MethodDelete,
		Path:          "/api/notes/{id}",
		Summary:       "Delete note",
		Description:   "Deletes a note",
		Tags:          []string{"Notes"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteNote)
}

// === DTOs ===

// NoteIDInput identifies a note by path.
type NoteIDInput struct {
	ID string `path:"id" doc:"Note ID"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title           string   `json:"title" doc:"Note title"`
	Content         string   `json:"content" doc:"Note body"`
	Color           string   `json:"color,omitempty" doc:"Palette color, defaults to accent"`
	FontFamily      string   `json:"fontFamily,omitempty" doc:"Font family, defaults to Inter"`
	Pinned          bool     `json:"pinned,omitempty" doc:"Show the note before unpinned notes"`
	Tags            []string `json:"tags,omitempty" doc:"Tag ids from GET /api/tags"`
	PrimaryBucketID string   `json:"primaryBucketId,omitempty" doc:"Primary bucket, used when bucketIds is empty"`
	BucketIDs       []string `json:"bucketIds,omitempty" doc:"Ordered membership: primary bucket first, then shared buckets"`
}

// CreateNoteInput wraps the create note request for Huma.
type CreateNoteInput struct {
	Body CreateNoteRequest
}

// UpdateNoteRequest is the request body for updating a note. Omitted fields
// are left unchanged; an empty tags list clears the tags.
type UpdateNoteRequest struct {
	Title      *string  `json:"title,omitempty" doc:"Note title"`
	Content    *string  `json:"content,omitempty" doc:"Note body"`
	Color      *string  `json:"color,omitempty" doc:"Palette color"`
	FontFamily *string  `json:"fontFamily,omitempty" doc:"Font family"`
	Pinned     *bool    `json:"pinned,omitempty" doc:"Pinned flag"`
	Tags       []string `json:"tags,omitempty" doc:"Replacement tag set"`
	BucketIDs  []string `json:"bucketIds,omitempty" doc:"Replacement membership, primary bucket first"`
}

// UpdateNoteInput wraps the update note request for Huma.
type UpdateNoteInput struct {
	ID   string `path:"id" doc:"Note ID"`
	Body UpdateNoteRequest
}

// NoteOutput wraps a note for Huma.
type NoteOutput struct {
	Body *domain.Note
}

// NoteWithBucketsOutput wraps a hydrated note for Huma.
type NoteWithBucketsOutput struct {
	Body *domain.NoteWithBuckets
}

// === Handlers ===

func (s *Server) handleListNotes(ctx context.Context, _ *struct{}) (*NoteListOutput, error) {
	notes, err := s.services.Storage.GetAllUserNotes(ctx)
	if err != nil {
		return nil, err
	}
	return noteList(notes), nil
}

func (s *Server) handleCreateNote(ctx context.Context, input *CreateNoteInput) (*NoteOutput, error) {
	body := input.Body
	n, err := s.services.Storage.CreateNote(ctx, domain.NoteInput{
		Title:           body.Title,
		Content:         body.Content,
		Color:           body.Color,
		FontFamily:      body.FontFamily,
		Pinned:          body.Pinned,
		Tags:            body.Tags,
		PrimaryBucketID: body.PrimaryBucketID,
	}, body.BucketIDs)
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: n}, nil
}

func (s *Server) handleGetNote(ctx context.Context, input *NoteIDInput) (*NoteWithBucketsOutput, error) {
	n, err := s.services.Storage.GetNote(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, noteNotFound(input.ID)
	}
	return &NoteWithBucketsOutput{Body: n}, nil
}

func (s *Server) handleUpdateNote(ctx context.Context, input *UpdateNoteInput) (*NoteOutput, error) {
	body := input.Body
	n, err := s.services.Storage.UpdateNote(ctx, input.ID, domain.NotePatch{
		Title:      body.Title,
		Content:    body.Content,
		Color:      body.Color,
		FontFamily: body.FontFamily,
		Pinned:     body.Pinned,
		Tags:       body.Tags,
	}, body.BucketIDs)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, noteNotFound(input.ID)
	}
	return &NoteOutput{Body: n}, nil
}

func (s *Server) handleDeleteNote(ctx context.Context, input *NoteIDInput) (*struct{}, error) {
	ok, err := s.services.Storage.DeleteNote(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, noteNotFound(input.ID)
	}
	return nil, nil
}

func noteNotFound(id string) error {
	return domainerrors.NotFoundf("note %s not found", id)
}
