package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a malformed or incomplete client request.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the referenced message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrStore indicates the durable store failed.
	ErrStore = errors.New("store failure")
)

// ErrEmptyMessage is returned for a message body that is blank after trimming.
var ErrEmptyMessage = fmt.Errorf("%w: message text is empty", ErrValidation)
