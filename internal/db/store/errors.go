package store

import "errors"

var errDuplicateSession = errors.New("store: duplicate session id or refresh token hash")
