// Package domain contains core concepts of the relay.
// This file defines Participant identity as consumed from the external
// auth collaborator. No runtime, network, or UI logic should be added here.
package domain

// Participant is the principal bound to one connected session.
// Guest participants get a generated id when no token was presented.
type Participant struct {
	ID          string
	DisplayName string
	Guest       bool
}
