// Package api talks to the hub REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
)

// Identity is the caller context attached to every request. The client
// forwards it untouched; checking it is the backend's job.
type Identity struct {
	UserID   string
	InitData string
}

// Client sends JSON requests to the hub. The zero value of every field except
// BaseURL is usable.
type Client struct {
	BaseURL  string
	Identity Identity
	HTTP     *http.Client
	// Timeout bounds each call whose context carries no deadline.
	Timeout time.Duration
	Logger  *zap.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// Do sends body (when non-nil) as JSON and decodes a 2xx response into out
// (when non-nil). Failures are ErrNoConnection, ErrTimeout or *HTTPError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-Id", c.Identity.UserID)
	req.Header.Set("X-Request-Id", requestID)
	if c.Identity.InitData != "" {
		req.Header.Set("X-Telegram-Init-Data", c.Identity.InitData)
	}

	log := c.logger().With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		err = classify(ctx, err)
		log.Warn("request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		err = classify(ctx, err)
		log.Warn("read response failed", zap.Error(err))
		return err
	}
	log.Debug("request done",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNoConnection, err)
}
