// Package browser drives a real Chrome window against the dashboard, for
// logins that need a human at the keyboard.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jgoulah/ecobuddy/internal/config"
)

// pollInterval is how often the login page is checked for the redirect
const pollInterval = time.Second

// NewContext starts Chrome and returns a browser context and its cancel func
func NewContext(ctx context.Context, visible bool) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !visible),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// Login opens the dashboard's login page, waits until the user has signed
// in and the page lands on /dashboard, then returns the session cookies
func Login(ctx context.Context, serverURL string) ([]config.Cookie, error) {
	loginURL, err := url.JoinPath(serverURL, "/")
	if err != nil {
		return nil, fmt.Errorf("building login URL: %w", err)
	}

	if err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(loginURL),
	); err != nil {
		return nil, fmt.Errorf("navigating to login page: %w", err)
	}

	if err := WaitForPath(ctx, "/dashboard"); err != nil {
		return nil, err
	}

	cookies, err := ExtractCookies(ctx)
	if err != nil {
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found - make sure you're logged in")
	}
	return cookies, nil
}

// WaitForPath polls the current location until its path ends with suffix
func WaitForPath(ctx context.Context, suffix string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var location string
		if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
			return fmt.Errorf("reading page location: %w", err)
		}
		if u, err := url.Parse(location); err == nil && strings.HasSuffix(u.Path, suffix) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", suffix, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ExtractCookies extracts all cookies from the current browser context
func ExtractCookies(ctx context.Context) ([]config.Cookie, error) {
	var cookies []*network.Cookie

	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("getting cookies: %w", err)
	}

	result := make([]config.Cookie, 0, len(cookies))
	for _, c := range cookies {
		result = append(result, config.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}

	return result, nil
}

// Open loads saved session cookies into the browser and shows the dashboard
func Open(ctx context.Context, serverURL string, cookies []config.Cookie) error {
	dashboardURL, err := url.JoinPath(serverURL, "dashboard")
	if err != nil {
		return fmt.Errorf("building dashboard URL: %w", err)
	}

	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		return fmt.Errorf("enabling network: %w", err)
	}
	if err := SetCookies(ctx, cookies); err != nil {
		return err
	}
	if err := chromedp.Run(ctx, chromedp.Navigate(dashboardURL)); err != nil {
		return fmt.Errorf("navigating to dashboard: %w", err)
	}
	return nil
}

// SetCookies sets cookies in the browser context
func SetCookies(ctx context.Context, cookies []config.Cookie) error {
	for _, c := range cookies {
		expr := network.SetCookie(c.Name, c.Value).
			WithDomain(c.Domain).
			WithPath(c.Path).
			WithHTTPOnly(c.HTTPOnly).
			WithSecure(c.Secure)

		if err := chromedp.Run(ctx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				return expr.Do(ctx)
			}),
		); err != nil {
			return fmt.Errorf("setting cookie %s: %w", c.Name, err)
		}
	}

	return nil
}
