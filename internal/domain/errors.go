package domain

import "errors"

var (
	ErrNoteNotFound     = errors.New("note not found")
	ErrNoteExists       = errors.New("note already exists")
	ErrNotAuthenticated = errors.New("session not authenticated")
	ErrNotAuthorized    = errors.New("not the note author")
	ErrInvalidNote      = errors.New("invalid note data")
	ErrStaleUpdate      = errors.New("update older than stored note")
)
