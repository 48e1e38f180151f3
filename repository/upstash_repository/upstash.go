package upstash_repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// upstashKV implements the session key-value contract over the Upstash
// Redis REST API. Values travel in the request body so large session
// records do not hit URL length limits.
type upstashKV struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewKV(baseURL, token string, timeout time.Duration) *upstashKV {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &upstashKV{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// result is the envelope every Upstash REST response uses.
type result struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (u *upstashKV) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := u.do(ctx, http.MethodGet, "/get/"+url.PathEscape(key), "")
	if err != nil {
		return "", false, err
	}
	if string(res) == "null" {
		return "", false, nil
	}
	var val string
	if err := json.Unmarshal(res, &val); err != nil {
		return "", false, fmt.Errorf("upstash get decode: %w", err)
	}
	return val, true, nil
}

func (u *upstashKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	path := "/set/" + url.PathEscape(key)
	if ttl > 0 {
		path += fmt.Sprintf("?EX=%d", int(ttl.Seconds()))
	}
	_, err := u.do(ctx, http.MethodPost, path, value)
	return err
}

func (u *upstashKV) Del(ctx context.Context, key string) error {
	_, err := u.do(ctx, http.MethodPost, "/del/"+url.PathEscape(key), "")
	return err
}

func (u *upstashKV) Ping(ctx context.Context) error {
	res, err := u.do(ctx, http.MethodGet, "/ping", "")
	if err != nil {
		return err
	}
	var pong string
	if err := json.Unmarshal(res, &pong); err != nil || pong != "PONG" {
		return fmt.Errorf("expected PONG, got %s", res)
	}
	return nil
}

func (u *upstashKV) do(ctx context.Context, method, path, body string) (json.RawMessage, error) {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var out result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("upstash response decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("upstash error: %s", out.Error)
		}
		return nil, fmt.Errorf("upstash returned status: %d", resp.StatusCode)
	}
	return out.Result, nil
}
