package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Document is an analyzed upload. ObjectKey points at the original bytes in
// object storage, kept exactly as uploaded.
type Document struct {
	ID                  string
	OwnerID             string
	FileName            string
	FileType            string
	FileSize            int64
	ObjectKey           string
	Summary             string
	Pros                []string
	Cons                []string
	PotentialLoopholes  []string
	PotentialChallenges []string
	IsLegal             *bool
	Authenticity        *string
	Language            string
	Provider            string
	Model               string
	IsProtected         bool
	PageCount           int
	ContentText         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type ChatSession struct {
	ID         string
	OwnerID    string
	DocumentID string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ChatMessage struct {
	ID        string
	SessionID string
	OwnerID   string
	Role      string
	Content   string
	CreatedAt time.Time
}
