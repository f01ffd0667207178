package domain

// User is the identity supplied by the external authentication collaborator.
// This service never stores users; it only scopes data by User.ID.
type User struct {
	ID          string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}
