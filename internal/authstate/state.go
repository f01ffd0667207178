// Package authstate carries the signed-in user through the application.
//
// The external authentication collaborator publishes SignedIn and SignedOut
// events on a Bus. A Store subscribes to the bus and folds those events into
// the single app-wide State with Reduce. Other reactions, such as clearing the
// local cache on sign-out, subscribe to the same bus explicitly.
package authstate

import "github.com/stickynotes/stickynotes-server/internal/domain"

// AuthType is how the user signed in.
type AuthType string

const (
	AuthTypeGoogle AuthType = "google"
	AuthTypeEmail  AuthType = "email"
)

// State is the app-wide authentication state.
type State struct {
	User            *domain.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	AuthType        AuthType     `json:"authType,omitempty"`
}

// ActionType names a state transition.
type ActionType string

const (
	ActionSetUser ActionType = "SET_USER"
	ActionLogout  ActionType = "LOGOUT"
)

// Action is a state transition request.
type Action struct {
	Type     ActionType
	User     *domain.User
	AuthType AuthType
}

// SetUser returns the action that signs user in.
func SetUser(user *domain.User, authType AuthType) Action {
	return Action{Type: ActionSetUser, User: user, AuthType: authType}
}

// Logout returns the action that signs the current user out.
func Logout() Action {
	return Action{Type: ActionLogout}
}

// Reduce returns the state that results from applying a to s.
// Unknown actions leave the state unchanged.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActionSetUser:
		if a.User == nil {
			return State{}
		}
		return State{User: a.User, IsAuthenticated: true, AuthType: a.AuthType}
	case ActionLogout:
		return State{}
	default:
		return s
	}
}
