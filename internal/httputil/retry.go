// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// DoWithRetry executes an HTTP request, reads the whole response body, and
// repeats the exchange up to maxRetries times when it fails transiently: a
// transport error (connection reset, timeout), a body cut off mid-read, or a
// 5xx response. Retries are immediate; spacing between requests is the
// caller's rate limiter's job.
//
// The returned response's Body is an in-memory copy, so callers decode it
// without touching the network again. With maxRetries 0 the request is sent
// once. After the last attempt the final response or error is returned so
// the caller can inspect it. A cancelled context stops further attempts.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		resp, err := do(ctx, client, req)
		if !retryable(resp, err) || attempt >= maxRetries {
			return resp, err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
}

// do sends one attempt and buffers its body. A failed body read is
// reported as an error like any other transport failure.
func do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

// retryable reports whether an attempt failed in a way worth repeating.
func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}
