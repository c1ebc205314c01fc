package wxproto

import "fmt"

// Classify with errors.Cause(err).
var (
	ErrMissingHeader    = fmt.Errorf("missing header")
	ErrShortRead        = fmt.Errorf("short read")
	ErrUnknownCategory  = fmt.Errorf("unknown category")
	ErrFrameLenOverflow = fmt.Errorf("frame is too large")
	ErrUnknownSchema    = fmt.Errorf("unknown schema")
	ErrMissingValue     = fmt.Errorf("missing section value")
)
