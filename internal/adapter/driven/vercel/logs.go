package vercel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ericfisherdev/deploybar/internal/adapter/driven/providerhttp"
	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// maxLogLine bounds a single SSE line.
const maxLogLine = 1 << 20

// StreamLogs reads the build events of a deployment and calls fn for each
// line of text. Without follow the current events are read once; with follow
// the call blocks until Vercel closes the stream or ctx is done.
func (c *Client) StreamLogs(ctx context.Context, cred model.Credential, deploymentID string, follow bool, fn func(model.LogLine)) error {
	path := "/v3/deployments/" + url.PathEscape(deploymentID) + "/events"
	op := "GET " + path
	query := url.Values{"build": {"1"}}
	httpClient := c.pool.Client(cred.Token)
	if follow {
		query.Set("follow", "1")
		httpClient = c.pool.Streaming()
	}

	req, err := c.newRequest(ctx, cred, path, query)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return providerhttp.TransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerhttp.StatusError(op, resp)
	}
	if err := parseEvents(resp.Body, fn); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return providerhttp.TransportError("read "+op, err)
	}
	return nil
}

// parseEvents accepts either a JSON array of events or a server-sent event
// stream of "data: {...}" lines. Lines that do not decode are skipped.
func parseEvents(r io.Reader, fn func(model.LogLine)) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	if first == '[' {
		var events []logEvent
		if err := json.NewDecoder(br).Decode(&events); err != nil {
			return fmt.Errorf("decode event array: %w", err)
		}
		for _, ev := range events {
			if line, ok := ev.line(); ok {
				fn(line)
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		data, ok := bytes.CutPrefix(raw, []byte("data:"))
		if !ok {
			continue
		}
		var ev logEvent
		if err := json.Unmarshal(bytes.TrimSpace(data), &ev); err != nil {
			continue
		}
		if line, ok := ev.line(); ok {
			fn(line)
		}
	}
	return scanner.Err()
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		return b, br.UnreadByte()
	}
}

func isErrorText(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "error") || strings.Contains(lower, "failed")
}
