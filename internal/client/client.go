// Package client is the Go consumer of the drop API: it encrypts and
// decrypts on the caller's machine and only ever sends ciphertext over
// the wire. Key material belongs in the share URL fragment, which this
// package never transmits.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ghost.drop/internal/crypto"
)

var (
	ErrNotFound    = errors.New("drop not found or expired")
	ErrGone        = errors.New("drop permanently deleted due to security policy")
	ErrRateLimited = errors.New("rate limited, try again later")
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type uploadRequest struct {
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
	Salt          string `json:"salt"`
	Version       string `json:"version"`
	BurnTimer     int    `json:"burnTimer,omitempty"`
}

type UploadResult struct {
	ID        string `json:"id"`
	ExpiresIn int    `json:"expiresIn"`
	MaxViews  int    `json:"maxViews"`
}

// Upload stores an already-encrypted envelope and returns the drop id.
func (c *Client) Upload(ctx context.Context, env *crypto.Envelope, burnTimer int) (*UploadResult, error) {
	req := uploadRequest{
		EncryptedData: env.EncryptedData,
		IV:            env.IV,
		Salt:          env.Salt,
		Version:       env.Version,
		BurnTimer:     burnTimer,
	}

	var res UploadResult
	if err := c.post(ctx, "/api/upload", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type retrieveResponse struct {
	Success bool `json:"success"`
	Data    struct {
		EncryptedData string `json:"encryptedData"`
		IV            string `json:"iv"`
		Salt          string `json:"salt"`
		Version       string `json:"version"`
		BurnTimer     int    `json:"burnTimer"`
	} `json:"data"`
}

// Retrieve fetches the ciphertext envelope for a drop. This is the
// destructive read: the server deletes a single-view drop during this
// call whether or not decryption later succeeds.
func (c *Client) Retrieve(ctx context.Context, id string) (*crypto.Envelope, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/retrieve/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, 0, err
	}

	var out retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}

	return &crypto.Envelope{
		EncryptedData: out.Data.EncryptedData,
		IV:            out.Data.IV,
		Salt:          out.Data.Salt,
		Version:       out.Data.Version,
	}, out.Data.BurnTimer, nil
}

type ReportResult struct {
	Deleted        bool `json:"deleted"`
	FailedAttempts int  `json:"failedAttempts"`
	MaxAttempts    int  `json:"maxAttempts"`
}

// ReportFailedDecrypt tells the server a local decryption failed so it
// can count the attempt against the destruction threshold.
func (c *Client) ReportFailedDecrypt(ctx context.Context, id string) (*ReportResult, error) {
	var res ReportResult
	if err := c.post(ctx, "/api/report-failed-decrypt", map[string]string{"id": id}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Destroy deletes a drop unconditionally.
func (c *Client) Destroy(ctx context.Context, id string) error {
	return c.post(ctx, "/api/destroy", map[string]string{"id": id}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusGone:
		return ErrGone
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// ShareURL builds the link a sender hands to the recipient. The key
// material rides in the fragment, which browsers and HTTP clients do
// not send to the server.
func ShareURL(baseURL, id, keyMaterial string) string {
	return strings.TrimRight(baseURL, "/") + "/view/" + id + "#" + keyMaterial
}

// ParseShareURL splits a share link back into drop id and key material.
// A bare 32-character id is accepted too, with the key supplied
// separately.
func ParseShareURL(raw string) (id, keyMaterial string, err error) {
	if !strings.Contains(raw, "/") && !strings.Contains(raw, "#") {
		return raw, "", nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid share URL: %w", err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return "", "", errors.New("share URL has no drop id")
	}

	return segments[len(segments)-1], u.Fragment, nil
}
