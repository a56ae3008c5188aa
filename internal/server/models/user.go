package models

type User struct {
	ID           string
	Email        string
	Name         string
	Image        string
	PasswordHash string
}

// UserRef is the projection of a user embedded in list payloads
// (owner and sharedWith). It never carries credentials.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}
