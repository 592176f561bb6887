package release

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrThrottled marks an upstream rate-limit rejection.
	ErrThrottled = errors.New("upstream throttled")
	// ErrPageLimitExceeded is returned when a scan reads past its page ceiling.
	ErrPageLimitExceeded = errors.New("scan page limit exceeded")
	// ErrNoBatch is returned when no collected batch is available to persist.
	ErrNoBatch = errors.New("no collected batch")
	// ErrStoreNotConfigured is returned by stores missing their backend.
	ErrStoreNotConfigured = errors.New("store is not configured")
)

// StatusError reports a non-success HTTP status from an upstream fetch.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Is lets errors.Is(err, ErrThrottled) match throttling statuses.
func (e *StatusError) Is(target error) bool {
	return target == ErrThrottled && throttlingStatus(e.StatusCode)
}

// IsThrottling reports whether err is a rate-limit-class failure that should
// be waited out instead of aborting.
func IsThrottling(err error) bool {
	return errors.Is(err, ErrThrottled)
}

func throttlingStatus(code int) bool {
	return code == http.StatusBadGateway || code == http.StatusTooManyRequests
}
