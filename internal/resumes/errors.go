package resumes

import "errors"

var (
	ErrNotFound         = errors.New("resume not found")
	ErrForbidden        = errors.New("resume belongs to another user")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrStore            = errors.New("resume store unavailable")
	ErrPartialWrite     = errors.New("resume write partially applied")
	ErrCorruptedRecord  = errors.New("resume record corrupted")
	ErrMissingRenderKey = errors.New("render job missing resume id")
)
