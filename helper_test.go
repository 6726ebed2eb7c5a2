package bili_test

import (
	"io"
	"net/http"
	"strings"
)

// roundTripperFunc lets a test stub http.Client.Transport without spinning up
// a real listener; several of this package's endpoint URLs are fixed
// constants, so interception has to happen at the Transport level rather
// than via httptest.Server.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}
