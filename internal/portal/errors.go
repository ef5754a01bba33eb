package portal

import (
	"fmt"
)

// NetworkError reports a failed portal request: transport failure, timeout,
// non-2xx status or a block page. A run cannot continue past one.
type NetworkError struct {
	Op         string // "session" or "listing"
	URL        string
	StatusCode int
	Block      BlockType
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Block != BlockNone:
		return fmt.Sprintf("portal %s %s: blocked (%s)", e.Op, e.URL, e.Block)
	case e.StatusCode != 0:
		return fmt.Sprintf("portal %s %s: status %d", e.Op, e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("portal %s %s: %v", e.Op, e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
