package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrLoginRejected means the server refused the email/password pair
var ErrLoginRejected = errors.New("login failed: check your email and password")

// Login posts the login form and keeps the session cookie on success.
// The server redirects to /dashboard when the credentials are accepted.
func (c *Client) Login(ctx context.Context, email, password string) error {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	location, err := c.postForm(ctx, c.endpoint("login"), form)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(location, "/dashboard") {
		return ErrLoginRejected
	}
	return nil
}

// Signup posts the signup form. The server answers every outcome with a
// redirect home, so only transport and HTTP failures are reported.
func (c *Client) Signup(ctx context.Context, fullname, email, password string) error {
	if fullname == "" || email == "" || password == "" {
		return fmt.Errorf("all fields are required for signup")
	}

	form := url.Values{}
	form.Set("fullname", fullname)
	form.Set("email", email)
	form.Set("password", password)

	_, err := c.postForm(ctx, c.endpoint("signup"), form)
	return err
}

// Logout ends the server session and drops local cookies
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("logout"), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.sendWith(c.noRedirect(), req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	jar, err := newJar()
	if err != nil {
		return err
	}
	c.http.Jar = jar
	return nil
}

// postForm submits a form without following the redirect and returns
// the redirect target path
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.sendWith(c.noRedirect(), req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", newServerError(resp)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", nil
	}
	target, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing redirect location: %w", err)
	}
	return target.Path, nil
}

// noRedirect returns a client sharing the jar and transport that stops at 3xx
func (c *Client) noRedirect() *http.Client {
	return &http.Client{
		Jar:       c.http.Jar,
		Transport: c.http.Transport,
		Timeout:   c.http.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
