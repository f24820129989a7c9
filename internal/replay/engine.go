package replay

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/browser"
	"github.com/josancamon19/web-environments/internal/bundle"
	"github.com/josancamon19/web-environments/internal/entity"
)

// Options configure one replay run.
type Options struct {
	Headless bool
	// AllowFallback forwards unmatched requests to the live network,
	// tagged as fallbacks. Off means strict: unmatched requests fail
	// visibly, per request, without touching the rest of the replay.
	AllowFallback bool
	// ReplaySteps re-plays the bundle's steps as synthetic input.
	ReplaySteps bool
	// HumanPaced keeps the recorded inter-step wall-clock spacing.
	HumanPaced bool
	// LogDir, when set, receives cached.log / not-found.log after the run.
	LogDir string
}

// Engine drives one offline replay of one bundle. Engines for different
// bundles are independent; each owns its router, so archived-exchange
// consumption is never shared. The source bundle is never mutated.
type Engine struct {
	bundle *bundle.Bundle
	router *Router
	opts   Options
	log    *zap.SugaredLogger

	fallback *http.Client
}

// NewEngine indexes the bundle's exchanges for matching.
func NewEngine(b *bundle.Bundle, opts Options, log *zap.SugaredLogger) *Engine {
	return &Engine{
		bundle:   b,
		router:   NewRouter(b.Exchanges, log),
		opts:     opts,
		log:      log,
		fallback: &http.Client{},
	}
}

// Run restores state, installs the request router before any navigation,
// then either replays steps or holds the context open until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	svc, err := browser.New(ctx, browser.Config{
		Headless:       e.opts.Headless,
		ViewportWidth:  e.bundle.Manifest.Browser.ViewportWidth,
		ViewportHeight: e.bundle.Manifest.Browser.ViewportHeight,
	})
	if err != nil {
		return fmt.Errorf("replay browser: %w", err)
	}
	defer svc.Close()

	// State must be in place before the first document loads: cookies in
	// the jar, and the storage seed registered so it runs ahead of the
	// start page's own scripts.
	if e.bundle.Storage != nil {
		if err := svc.RestoreCookies(*e.bundle.Storage); err != nil {
			e.log.Warnw("cookie restore failed", "err", err)
		}
		if err := svc.SeedStorage(*e.bundle.Storage); err != nil {
			e.log.Warnw("storage seed failed", "err", err)
		}
	}

	hij := svc.Page().HijackRequests()
	if err := hij.Add("", "", e.handle); err != nil {
		return fmt.Errorf("install request router: %w", err)
	}
	go hij.Run()
	defer func() { _ = hij.Stop() }()

	start := e.startURL()
	if start == "" {
		return fmt.Errorf("bundle records no navigable start URL")
	}
	if err := svc.Navigate(start); err != nil {
		return err
	}

	if e.opts.ReplaySteps {
		player := NewPlayer(svc.Page(), e.opts.HumanPaced, e.log)
		results := player.Run(ctx, e.bundle.Steps)
		failed := 0
		for _, r := range results {
			if !r.OK {
				failed++
			}
		}
		e.log.Infow("step replay finished", "steps", len(results), "failed", failed)
	} else {
		<-ctx.Done()
	}

	if err := e.router.WriteLogs(e.opts.LogDir); err != nil {
		e.log.Warnw("replay log flush failed", "err", err)
	}
	return nil
}

// handle answers one intercepted request from the archive.
func (e *Engine) handle(h *rod.Hijack) {
	method := h.Request.Method()
	url := h.Request.URL().String()
	body := []byte(h.Request.Body())

	ex, outcome := e.router.Match(method, url, body)
	if outcome != MatchMiss {
		e.serve(h, ex, outcome)
		return
	}

	if e.opts.AllowFallback {
		// Escalate to the live network and tag the result so downstream
		// analysis can tell archived traffic from leaked traffic.
		if err := h.LoadResponse(e.fallback, true); err != nil {
			e.log.Warnw("fallback request failed", "method", method, "url", url, "err", err)
			h.Response.Fail(proto.NetworkErrorReasonConnectionFailed)
			return
		}
		h.Response.SetHeader("X-Webenv-Fallback", "live")
		return
	}

	e.log.Warnw("no archived exchange for request", "method", method, "url", url)
	h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
}

func (e *Engine) serve(h *rod.Hijack, ex *entity.NetworkExchange, outcome MatchOutcome) {
	payload := h.Response.Payload()
	payload.ResponseCode = ex.Response.Status
	for k, v := range ex.Response.Headers {
		// Bodies were stored decoded; framing headers would corrupt them.
		switch strings.ToLower(k) {
		case "content-encoding", "content-length", "transfer-encoding":
			continue
		}
		h.Response.SetHeader(k, v)
	}
	if outcome == MatchReplayedExtra {
		h.Response.SetHeader("X-Webenv-Replayed-Beyond-Count", "1")
	}
	h.Response.SetBody(ex.Response.Body)
}

// startURL prefers the recorded initial navigation, falling back to the
// first successful archived document load.
func (e *Engine) startURL() string {
	for _, s := range e.bundle.Steps {
		if s.Kind == entity.StepNavigate && s.URL != "" && s.URL != "about:blank" {
			return s.URL
		}
	}
	return GuessStartURL(e.bundle.Exchanges)
}
