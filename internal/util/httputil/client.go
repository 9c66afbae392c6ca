package httputil

import (
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// headers of the caller's request must stay untouched
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

func UserAgent() string {
	return "EOSConnect/" + versioninfo.Short()
}

// HTTPClient returns a client with the EOSConnect user agent set.
// A zero timeout means no client side timeout.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &userAgentTransport{
			transport: http.DefaultTransport,
			userAgent: UserAgent(),
		},
		Timeout: timeout,
	}
}
