package domain

import "errors"

// ErrNotFound is returned by stores when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrAlreadyExists is returned by stores when a create would overwrite an
// existing document.
var ErrAlreadyExists = errors.New("document already exists")
