package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/browser"
	"github.com/josancamon19/web-environments/internal/bundle"
)

// Sandbox launches a live interactive context seeded from a bundle's
// storage snapshot: cookies and origin storage are restored, but no request
// router is installed, so traffic goes to the real network. The context stays
// open until ctx is cancelled.
func Sandbox(ctx context.Context, b *bundle.Bundle, headless bool, log *zap.SugaredLogger) error {
	svc, err := browser.New(ctx, browser.Config{
		Headless:       headless,
		ViewportWidth:  b.Manifest.Browser.ViewportWidth,
		ViewportHeight: b.Manifest.Browser.ViewportHeight,
		Stealth:        true,
	})
	if err != nil {
		return fmt.Errorf("sandbox browser: %w", err)
	}
	defer svc.Close()

	if b.Storage != nil {
		if err := svc.RestoreCookies(*b.Storage); err != nil {
			log.Warnw("cookie restore failed", "err", err)
		}
		if err := svc.SeedStorage(*b.Storage); err != nil {
			log.Warnw("storage seed failed", "err", err)
		}
	}

	start := ""
	for _, s := range b.Steps {
		if s.URL != "" && s.URL != "about:blank" {
			start = s.URL
			break
		}
	}
	if start == "" {
		start = GuessStartURL(b.Exchanges)
	}
	if start != "" {
		if err := svc.Navigate(start); err != nil {
			return err
		}
	}

	log.Infow("sandbox ready", "url", start)
	<-ctx.Done()
	return nil
}
