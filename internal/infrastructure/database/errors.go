package database

import "errors"

// ErrPathRequired is returned by Open when no file path is configured.
var ErrPathRequired = errors.New("database: path is required")
