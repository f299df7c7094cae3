package feed

import (
	"errors"
	"fmt"
)

// ErrUnknownFeed marks a feed id absent from the configuration. The handler
// maps it to a client error; it is raised before any network activity.
var ErrUnknownFeed = errors.New("unknown feed")

// ErrMalformedFeed marks upstream bytes that failed to parse as a feed.
var ErrMalformedFeed = errors.New("malformed feed")

// UpstreamStatusError reports a completed upstream fetch that answered with
// a non-success status.
type UpstreamStatusError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream %s responded with status %d", e.URL, e.StatusCode)
}
