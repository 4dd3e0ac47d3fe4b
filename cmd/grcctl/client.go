package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jacksonlee411/grc-console/pkg/httpapi"
)

type consoleClient struct {
	base string
	opts *globalOptions
	http *http.Client
}

func newConsoleClient(opts *globalOptions) (*consoleClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --base-url %q", opts.BaseURL))
	}
	return &consoleClient{
		base: base,
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// do sends the request and decodes a 2xx body into out. Non-2xx answers are
// reported through the API error envelope when the body carries one.
func (c *consoleClient) do(ctx context.Context, method, path string, query url.Values, out any) (int, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, withCode(exitUsage, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Lang != "" {
		req.Header.Set("Accept-Language", c.opts.Lang)
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if c.opts.OpsToken != "" {
		req.Header.Set("X-Ops-Token", c.opts.OpsToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, withCode(exitTransport, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, withCode(exitTransport, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, withCode(exitAPI, apiError(resp.StatusCode, raw))
	}
	if out == nil || len(raw) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, withCode(exitAPI, fmt.Errorf("decode response: %w", err))
	}
	return resp.StatusCode, nil
}

func apiError(status int, raw []byte) error {
	var env httpapi.ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Code != "" {
		if id := env.Meta["request_id"]; id != "" {
			return fmt.Errorf("%s: %s (status=%d request_id=%s)", env.Code, env.Message, status, id)
		}
		return fmt.Errorf("%s: %s (status=%d)", env.Code, env.Message, status)
	}
	return fmt.Errorf("status=%d: %s", status, strings.TrimSpace(string(raw)))
}
