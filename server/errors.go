package server

import "errors"

var (
	// ErrNotebookRequired indicates that a notebook is required.
	ErrNotebookRequired = errors.New("notebook is required")
)
