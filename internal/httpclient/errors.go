package httpclient

import "fmt"

// UpstreamError represents a non-2xx answer from a backend
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("upstream error: status %d from %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}
