package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

const (
	idleTimeout = 10 * time.Second
	settleDelay = 2 * time.Second
)

// RodRenderer loads pages in headless Chrome and returns the DOM after
// scripts have run, so crawlers get a useful snapshot of SPAs.
type RodRenderer struct {
	binPath string // Optional, if not in default PATH
	timeout time.Duration
	log     zerolog.Logger
}

func NewRodRenderer(binPath string, timeout time.Duration, log zerolog.Logger) *RodRenderer {
	return &RodRenderer{binPath: binPath, timeout: timeout, log: log}
}

// Render fetches url and returns the full HTML, giving up after the
// configured timeout or when ctx is done.
func (r *RodRenderer) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		html string
		err  error
	}
	resultChan := make(chan result, 1)

	// Run the rendering in a goroutine to enable timeout
	go func() {
		html, err := r.renderWithRod(ctx, url)
		resultChan <- result{html, err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			r.log.Warn().Err(res.err).Str("url", url).Msg("rod render failed")
		}
		return res.html, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("rendering timeout after %v for URL: %s", r.timeout, url)
	}
}

func (r *RodRenderer) renderWithRod(ctx context.Context, url string) (string, error) {
	var browser *rod.Browser

	if r.binPath != "" {
		l := launcher.New().Bin(r.binPath)
		//nolint:errcheck
		defer l.Cleanup()

		u, err := l.Launch()
		if err != nil {
			return "", fmt.Errorf("failed to launch rod with custom path %s: %w", r.binPath, err)
		}
		browser = rod.New().ControlURL(u)
	} else {
		// Use default launcher (will download browser if not found)
		browser = rod.New()
	}

	browser = browser.Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect to rod browser: %w", err)
	}
	//nolint:errcheck
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("failed to create page for %s: %w", url, err)
	}
	//nolint:errcheck
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		r.log.Debug().Err(err).Str("url", url).Msg("page load wait failed, continuing")
	}

	// An idle main thread is a good signal that an SPA has fetched its data.
	if err := page.WaitIdle(idleTimeout); err != nil {
		r.log.Debug().Err(err).Str("url", url).Msg("page idle wait failed, continuing")
	}

	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML content for %s: %w", url, err)
	}
	r.log.Debug().Str("url", url).Int("bytes", len(html)).Msg("rod render completed")
	return html, nil
}
