// Package browser wraps the rod automation driver: it launches the capture
// browser and exposes the primitives the recorder/archiver/replay engines
// orchestrate (screenshots, DOM snapshots, storage state, event hooks).
// Capture and replay policy lives in the engines, not here.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/josancamon19/web-environments/internal/entity"
)

// Config shapes the launched browser.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserDataDir    string
	// Stealth pages dodge naive bot detection on live sites; replay
	// contexts don't need it.
	Stealth bool
}

// Service owns one browser and its single interactive page.
type Service struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     Config
}

// New launches a browser and prepares its page.
func New(ctx context.Context, cfg Config) (*Service, error) {
	launch := launcher.New().
		Leakless(true).
		Headless(cfg.Headless)
	if cfg.UserDataDir != "" {
		launch = launch.UserDataDir(cfg.UserDataDir)
	}

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		scale := 1.0
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
			Scale:  &scale,
			Mobile: false,
		}); err != nil {
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}

	return &Service{browser: browser, page: page, cfg: cfg}, nil
}

// Page exposes the active page for engines that wire their own listeners.
func (s *Service) Page() *rod.Page { return s.page }

// Navigate loads a URL and waits for the load event, bounded.
func (s *Service) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	s.safeWaitLoad(5 * time.Second)
	return nil
}

// BrowserConfig reports the live browser shape for the session manifest.
func (s *Service) BrowserConfig(channel string) entity.BrowserConfig {
	cfg := entity.BrowserConfig{
		ViewportWidth:  s.cfg.ViewportWidth,
		ViewportHeight: s.cfg.ViewportHeight,
		Channel:        channel,
		Headless:       s.cfg.Headless,
	}
	if version, err := (proto.BrowserGetVersion{}).Call(s.browser); err == nil {
		cfg.UserAgent = version.UserAgent
	}
	return cfg
}

// CurrentURL returns the page URL, empty when the page is unreachable.
func (s *Service) CurrentURL() string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// safeWaitLoad waits for page load without ever wedging the caller; a page
// that re-navigates mid-wait can panic inside the driver.
func (s *Service) safeWaitLoad(timeout time.Duration) {
	done := make(chan struct{}, 1)
	go func() {
		defer func() {
			recover()
			done <- struct{}{}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.page.Context(ctx).WaitLoad()
	}()

	select {
	case <-done:
	case <-time.After(timeout + time.Second):
	}
}

// Close shuts the browser down.
func (s *Service) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}
