package core

import "github.com/google/uuid"

// NewID returns a random UUID string used for invocation ids.
func NewID() string { return uuid.NewString() }
