package providerhttp

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// maxErrorBody caps how much of an error response is quoted in messages.
const maxErrorBody = 512

// StatusError classifies a non-2xx response. 401 and 403 mean the token was
// refused; anything else is treated as the provider being unreachable.
func StatusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(body))

	sentinel := model.ErrProviderUnreachable
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		sentinel = model.ErrProviderRejected
	}
	if detail == "" {
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, sentinel)
	}
	return fmt.Errorf("%s: status %d: %s: %w", op, resp.StatusCode, detail, sentinel)
}

// TransportError wraps a failed round trip or undecodable body.
func TransportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrProviderUnreachable, err)
}
