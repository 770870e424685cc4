package models

import "strings"

type IdentityKind string

const (
	IdentityRegistered IdentityKind = "registered"
	IdentityGuest      IdentityKind = "guest"
)

// Identity is resolved once at join time: either a registered user or a guest
// carrying its chosen display name and a reconnect token.
type Identity struct {
	Kind        IdentityKind `json:"kind"`
	UserID      uint         `json:"user_id,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	Token       string       `json:"token,omitempty"`
}

func Registered(userID uint) Identity {
	return Identity{Kind: IdentityRegistered, UserID: userID}
}

func Guest(displayName, token string) Identity {
	return Identity{Kind: IdentityGuest, DisplayName: strings.TrimSpace(displayName), Token: token}
}

func (i Identity) IsGuest() bool {
	return i.Kind == IdentityGuest
}
