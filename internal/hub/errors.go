package hub

import "fmt"

var (
	ErrMissingType     = fmt.Errorf("missing message type")
	ErrUnsupportedType = fmt.Errorf("unsupported message type")
	ErrClosing         = fmt.Errorf("server is closing")
)
