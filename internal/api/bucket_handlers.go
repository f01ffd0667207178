package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
)

func (s *Server) registerBucketRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBuckets",
		Method:      http.MethodGet,
		Path:        "/api/buckets",
		Summary:     "List buckets",
		Description: "Returns the current user's buckets with note counts, oldest first",
		Tags:        []string{"Buckets"},
		Security:    bearer,
	}, s.handleListBuckets)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBucket",
		Method:        http.MethodPost,
		Path:          "/api/buckets",
		Summary:       "Create bucket",
		Description:   "Creates a bucket for the current user",
		Tags:          []string{"Buckets"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBucket)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBucket",
		Method:      http.MethodGet,
		Path:        "/api/buckets/{id}",
		Summary:     "Get bucket",
		Description: "Returns a bucket by ID",
		Tags:        []string{"Buckets"},
		Security:    bearer,
	}, s.handleGetBucket)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBucket",
		Method:      http.MethodPut,
		Path:        "/api/buckets/{id}",
		Summary:     "Update bucket",
		Description: "Updates the supplied fields of a bucket",
		Tags:        []string{"Buckets"},
		Security:    bearer,
	}, s.handleUpdateBucket)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBucket",
		Method:        http.MethodDelete,
		Path:          "/api/buckets/{id}",
		Summary:       "Delete bucket",
		Description:   "Deletes a bucket and the notes filed under it; shared notes only lose the bucket",
		Tags:          []string{"Buckets"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteBucket)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBucketNotes",
		Method:      http.MethodGet,
		Path:        "/api/buckets/{id}/notes",
		Summary:     "List bucket notes",
		Description: "Returns every note filed under or shared with a bucket, pinned first",
		Tags:        []string{"Buckets", "Notes"},
		Security:    bearer,
	}, s.handleGetBucketNotes)
}

// === DTOs ===

// BucketIDInput identifies a bucket by path.
type BucketIDInput struct {
	ID string `path:"id" doc:"Bucket ID"`
}

// ListBucketsResponse contains the user's buckets.
type ListBucketsResponse struct {
	Buckets []domain.BucketWithCount `json:"buckets" doc:"Buckets with note counts"`
}

// ListBucketsOutput wraps the list buckets response for Huma.
type ListBucketsOutput struct {
	Body ListBucketsResponse
}

// CreateBucketRequest is the request body for creating a bucket.
type CreateBucketRequest struct {
	Name        string `json:"name" doc:"Bucket name"`
	Description string `json:"description,omitempty" doc:"Optional description"`
	Color       string `json:"color,omitempty" doc:"Palette color, defaults to primary"`
	Icon        string `json:"icon,omitempty" doc:"Icon name, defaults to sticky-note"`
}

// CreateBucketInput wraps the create bucket request for Huma.
type CreateBucketInput struct {
	Body CreateBucketRequest
}

// UpdateBucketRequest is the request body for updating a bucket. Omitted
// fields are left unchanged.
type UpdateBucketRequest struct {
	Name        *string `json:"name,omitempty" doc:"Bucket name"`
	Description *string `json:"description,omitempty" doc:"Description"`
	Color       *string `json:"color,omitempty" doc:"Palette color"`
	Icon        *string `json:"icon,omitempty" doc:"Icon name"`
}

// UpdateBucketInput wraps the update bucket request for Huma.
type UpdateBucketInput struct {
	ID   string `path:"id" doc:"Bucket ID"`
	Body UpdateBucketRequest
}

// BucketOutput wraps a bucket for Huma.
type BucketOutput struct {
	Body *domain.Bucket
}

// NoteListResponse contains a list of notes.
type NoteListResponse struct {
	Notes []domain.NoteWithBuckets `json:"notes" doc:"Notes with their shared buckets"`
}

// NoteListOutput wraps a note list for Huma.
type NoteListOutput struct {
	Body NoteListResponse
}

// === Handlers ===

func (s *Server) handleListBuckets(ctx context.Context, _ *struct{}) (*ListBucketsOutput, error) {
	buckets, err := s.services.Storage.GetUserBuckets(ctx)
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []domain.BucketWithCount{}
	}
	return &ListBucketsOutput{Body: ListBucketsResponse{Buckets: buckets}}, nil
}

func (s *Server) handleCreateBucket(ctx context.Context, input *CreateBucketInput) (*BucketOutput, error) {
	b, err := s.services.Storage.CreateBucket(ctx, domain.BucketInput{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Color:       input.Body.Color,
		Icon:        input.Body.Icon,
	})
	if err != nil {
		return nil, err
	}
	return &BucketOutput{Body: b}, nil
}

func (s *Server) handleGetBucket(ctx context.Context, input *BucketIDInput) (*BucketOutput, error) {
	b, err := s.services.Storage.GetBucket(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, bucketNotFound(input.ID)
	}
	return &BucketOutput{Body: b}, nil
}

func (s *Server) handleUpdateBucket(ctx context.Context, input *UpdateBucketInput) (*BucketOutput, error) {
	b, err := s.services.Storage.UpdateBucket(ctx, input.ID, domain.BucketPatch{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Color:       input.Body.Color,
		Icon:        input.Body.Icon,
	})
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, bucketNotFound(input.ID)
	}
	return &BucketOutput{Body: b}, nil
}

func (s *Server) handleDeleteBucket(ctx context.Context, input *BucketIDInput) (*struct{}, error) {
	ok, err := s.services.Storage.DeleteBucket(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bucketNotFound(input.ID)
	}
	return nil, nil
}

func (s *Server) handleGetBucketNotes(ctx context.Context, input *BucketIDInput) (*NoteListOutput, error) {
	notes, err := s.services.Storage.GetBucketNotes(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return noteList(notes), nil
}

func bucketNotFound(id string) error {
	return domainerrors.NotFoundf("bucket %s not found", id)
}

func noteList(notes []domain.NoteWithBuckets) *NoteListOutput {
	if notes == nil {
		notes = []domain.NoteWithBuckets{}
	}
	return &NoteListOutput{Body: NoteListResponse{Notes: notes}}
}
