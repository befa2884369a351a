package repository

import "errors"

// ErrInvalidID is returned for ids that are empty or contain path separators.
var ErrInvalidID = errors.New("repository: invalid unit of work id")
