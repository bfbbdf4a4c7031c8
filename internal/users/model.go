package users

import "time"

// Provider names how a user signed in.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderPhone  Provider = "phone"
	ProviderGoogle Provider = "google"
)

type User struct {
	ID          string    `json:"userId"`
	Contact     string    `json:"contact,omitempty"`
	Provider    Provider  `json:"provider,omitempty"`
	Name        string    `json:"name,omitempty"`
	PictureURL  string    `json:"pictureUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// Login describes a successful sign-in to be recorded on the profile.
type Login struct {
	Contact    string
	Provider   Provider
	Name       string
	PictureURL string
}
