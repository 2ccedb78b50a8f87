// Package userdir answers whether a user id is registered, either from the
// shared user store or by asking the users service over HTTP.
package userdir

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"costmanager/internal/store"
)

// Store checks the local user store.
type Store struct {
	users store.UserStore
}

func NewStore(users store.UserStore) *Store {
	return &Store{users: users}
}

func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// Client asks the users service: 200 means the user exists, 404 that it
// does not. Anything else is an error.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Exists(ctx context.Context, id int64) (bool, error) {
	endpoint := c.baseURL + "/api/users/" + url.PathEscape(strconv.FormatInt(id, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build users request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("query users service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("users service returned %s", resp.Status)
	}
}
