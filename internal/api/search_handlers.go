package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchNotes",
		Method:      http.MethodGet,
		Path:        "/api/search",
		Summary:     "Search notes",
		Description: "Case-insensitive substring match over note titles and content, optionally within one bucket",
		Tags:        []string{"Notes"},
		Security:    bearer,
	}, s.handleSearchNotes)
}

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/tags",
		Summary:     "List tags",
		Description: "Returns the tag registry in display order",
		Tags:        []string{"Tags"},
		Security:    bearer,
	}, s.handleListTags)
}

// SearchNotesInput contains parameters for searching notes.
type SearchNotesInput struct {
	Query    string `query:"q" maxLength:"255" doc:"Text to look for"`
	BucketID string `query:"bucketId" doc:"Restrict results to notes in this bucket"`
}

// ListTagsResponse contains the tag registry.
type ListTagsResponse struct {
	Tags []domain.TagDefinition `json:"tags" doc:"Every tag a note may carry"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

func (s *Server) handleSearchNotes(ctx context.Context, input *SearchNotesInput) (*NoteListOutput, error) {
	notes, err := s.services.Storage.SearchNotes(ctx, input.Query, input.BucketID)
	if err != nil {
		return nil, err
	}
	return noteList(notes), nil
}

func (s *Server) handleListTags(ctx context.Context, _ *struct{}) (*ListTagsOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	return &ListTagsOutput{Body: ListTagsResponse{Tags: domain.Tags()}}, nil
}
