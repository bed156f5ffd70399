// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package identity talks to an Identity Toolkit compatible provider over REST.
// It obtains bearer credentials (ID tokens) with their validity window and
// changes account passwords. It never stores anything; callers hand the
// resulting token to the session manager.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public Identity Toolkit endpoint.
const DefaultBaseURL = "https://identitytoolkit.googleapis.com"

// MinPasswordLength mirrors the provider's own rule so weak passwords fail
// before a round trip.
const MinPasswordLength = 7

const (
	pathSignIn = "/v1/accounts:signInWithPassword"
	pathSignUp = "/v1/accounts:signUp"
	pathUpdate = "/v1/accounts:update"
)

// ErrPasswordTooShort is returned for passwords under MinPasswordLength.
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// Token is a credential issued by the provider.
type Token struct {
	IDToken   string
	Email     string
	LocalID   string
	ExpiresIn time.Duration
}

// ExpiresAt converts the relative validity into an absolute instant.
func (t Token) ExpiresAt(now time.Time) time.Time {
	return now.Add(t.ExpiresIn)
}

// ProviderError is a rejection reported by the provider, such as
// EMAIL_NOT_FOUND or INVALID_PASSWORD.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Client implements the provider calls over HTTP.
type Client struct {
	// baseURL is the scheme and host of the provider, without trailing slash
	baseURL string
	// apiKey is sent as the key query parameter on every call
	apiKey string
	// client is the underlying HTTP client with configured timeout
	client *http.Client
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
// It configures a 10-second timeout for all requests.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the provider address used for requests.
func (c *Client) BaseURL() string { return c.baseURL }

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type tokenResponse struct {
	IDToken   string `json:"idToken"`
	Email     string `json:"email"`
	LocalID   string `json:"localId"`
	ExpiresIn string `json:"expiresIn"`
}

// SignIn exchanges email and password for a token.
func (c *Client) SignIn(ctx context.Context, email, password string) (Token, error) {
	return c.credentials(ctx, pathSignIn, email, password)
}

// SignUp creates an account and returns a token for it.
func (c *Client) SignUp(ctx context.Context, email, password string) (Token, error) {
	if len(password) < MinPasswordLength {
		return Token{}, ErrPasswordTooShort
	}
	return c.credentials(ctx, pathSignUp, email, password)
}

func (c *Client) credentials(ctx context.Context, path, email, password string) (Token, error) {
	var out tokenResponse
	req := credentialsRequest{Email: email, Password: password, ReturnSecureToken: true}
	if err := c.post(ctx, path, req, &out); err != nil {
		return Token{}, err
	}
	if out.IDToken == "" {
		return Token{}, errors.New("provider returned no idToken")
	}
	secs, err := strconv.Atoi(strings.TrimSpace(out.ExpiresIn))
	if err != nil {
		return Token{}, fmt.Errorf("invalid expiresIn %q: %w", out.ExpiresIn, err)
	}
	return Token{
		IDToken:   out.IDToken,
		Email:     out.Email,
		LocalID:   out.LocalID,
		ExpiresIn: time.Duration(secs) * time.Second,
	}, nil
}

type updateRequest struct {
	IDToken           string `json:"idToken"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// ChangePassword sets a new password for the account behind idToken.
// The provider revokes existing tokens, so callers should log out afterwards.
func (c *Client) ChangePassword(ctx context.Context, idToken, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return c.post(ctx, pathUpdate, updateRequest{IDToken: idToken, Password: newPassword}, nil)
}

// post sends body as JSON and decodes a 200 response into out when non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if c.apiKey != "" {
		u += "?key=" + url.QueryEscape(c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeProviderError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeProviderError reads {"error":{"message":...}}; anything else maps to
// a generic authentication failure.
func decodeProviderError(resp *http.Response) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := "Authentication Failed"
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error.Message != "" {
		msg = payload.Error.Message
	}
	return &ProviderError{Status: resp.StatusCode, Message: msg}
}
