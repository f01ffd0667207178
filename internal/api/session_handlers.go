package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stickynotes/stickynotes-server/internal/authstate"
	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// Session routes let a client announce sign-in and sign-out. Identity itself
// comes from the bearer token; these only publish auth-state events so that
// server-side reactions (such as dropping a user's cached reads on sign-out)
// run.
func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "startSession",
		Method:      http.MethodPost,
		Path:        "/api/session",
		Summary:     "Start session",
		Description: "Records that the token's user signed in and returns that user",
		Tags:        []string{"Session"},
		Security:    bearer,
	}, s.handleStartSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "endSession",
		Method:        http.MethodDelete,
		Path:          "/api/session",
		Summary:       "End session",
		Description:   "Records that the token's user signed out and drops their cached reads",
		Tags:          []string{"Session"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleEndSession)
}

// StartSessionRequest is the request body for starting a session.
type StartSessionRequest struct {
	AuthType authstate.AuthType `json:"authType,omitempty" enum:"google,email" doc:"How the user signed in"`
}

// StartSessionInput wraps the start session request for Huma.
type StartSessionInput struct {
	Body StartSessionRequest `required:"false"`
}

// SessionResponse describes the signed-in user.
type SessionResponse struct {
	User     *domain.User       `json:"user" doc:"Signed-in user"`
	AuthType authstate.AuthType `json:"authType,omitempty" doc:"How the user signed in"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

func (s *Server) handleStartSession(ctx context.Context, input *StartSessionInput) (*SessionOutput, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(authstate.SignedIn(user, input.Body.AuthType))
	return &SessionOutput{Body: SessionResponse{User: user, AuthType: input.Body.AuthType}}, nil
}

func (s *Server) handleEndSession(ctx context.Context, _ *struct{}) (*struct{}, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(authstate.SignedOut(user))
	return nil, nil
}

func (s *Server) publish(e authstate.Event) {
	if s.services.Bus == nil {
		s.logger.Debug("no auth bus configured, dropping event", slog.String("type", string(e.Type)))
		return
	}
	s.services.Bus.Publish(e)
}
