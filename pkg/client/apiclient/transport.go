package apiclient

import (
	"net/http"
)

// authTransport attaches the stored bearer token to outgoing requests and
// runs the unauthorized hooks when the server answers 401.
type authTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := t.client.tokens.Get(ctx)
	if err != nil {
		t.client.logger.Warn("failed to read token", "error", err)
	}
	if token != "" {
		req = req.Clone(ctx)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.client.handleUnauthorized(req)
	}
	return resp, nil
}
