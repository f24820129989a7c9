package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/entity"
)

// maxHumanPause caps recorded inter-step gaps in human-paced mode so a
// coffee break in the recording doesn't stall evaluation.
const maxHumanPause = 5 * time.Second

// fastPause is the minimal settling delay between steps in fast mode.
const fastPause = 100 * time.Millisecond

// Player replays a bundle's steps as synthetic input. Per-step failures are
// absorbed and reported; one bad selector must not sink the run.
type Player struct {
	page       *rod.Page
	humanPaced bool
	log        *zap.SugaredLogger
}

// NewPlayer builds a player over an already-routed page.
func NewPlayer(page *rod.Page, humanPaced bool, log *zap.SugaredLogger) *Player {
	return &Player{page: page, humanPaced: humanPaced, log: log}
}

// Run executes the steps in sequence order and returns one result each.
func (p *Player) Run(ctx context.Context, steps []entity.Step) []entity.StepResult {
	results := make([]entity.StepResult, 0, len(steps))
	for i, step := range steps {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		res := entity.StepResult{Sequence: step.Sequence, Kind: string(step.Kind), OK: true}
		if err := p.runStep(step); err != nil {
			res.OK = false
			res.Error = err.Error()
			p.log.Warnw("step replay failed", "seq", step.Sequence, "kind", step.Kind, "err", err)
		}
		results = append(results, res)

		p.pause(ctx, steps, i)
	}
	return results
}

func (p *Player) pause(ctx context.Context, steps []entity.Step, i int) {
	delay := fastPause
	if p.humanPaced && i+1 < len(steps) {
		if gap := steps[i+1].Timestamp.Sub(steps[i].Timestamp); gap > delay {
			delay = gap
		}
		if delay > maxHumanPause {
			delay = maxHumanPause
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (p *Player) runStep(step entity.Step) error {
	switch step.Kind {
	case entity.StepNavigate:
		return p.navigate(step.URL)
	case entity.StepClick, entity.StepContextMenu:
		return p.click(step)
	case entity.StepInput:
		return p.typeValue(step)
	case entity.StepKeydown:
		return p.pressKey(step.Key)
	case entity.StepScroll:
		return p.scroll(step.X, step.Y)
	}
	return fmt.Errorf("unsupported step kind %q", step.Kind)
}

func (p *Player) navigate(url string) error {
	if url == "" || url == "about:blank" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	_ = p.page.Context(waitCtx).WaitLoad()
	return nil
}

func (p *Player) click(step entity.Step) error {
	if step.Target.Selector != "" {
		el, err := p.element(step.Target.Selector)
		if err == nil {
			clickCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return el.Context(clickCtx).Click(proto.InputMouseButtonLeft, 1)
		}
		// Selector rot happens; recorded coordinates are the fallback.
	}
	if step.X == 0 && step.Y == 0 {
		return fmt.Errorf("click target %q not found and no coordinates recorded", step.Target.Selector)
	}
	if err := p.page.Mouse.MoveTo(proto.Point{X: step.X, Y: step.Y}); err != nil {
		return err
	}
	return p.page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (p *Player) typeValue(step entity.Step) error {
	el, err := p.element(step.Target.Selector)
	if err != nil {
		return err
	}
	// Replace, don't append: the recorded value is the field's final state.
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(step.Value); err != nil {
		return fmt.Errorf("input into %q: %w", step.Target.Selector, err)
	}
	return nil
}

func (p *Player) pressKey(key string) error {
	var k input.Key
	switch key {
	case "Enter":
		k = input.Enter
	case "Escape":
		k = input.Escape
	case "Tab":
		k = input.Tab
	case "Backspace":
		k = input.Backspace
	case "ArrowDown":
		k = input.ArrowDown
	case "ArrowUp":
		k = input.ArrowUp
	case " ":
		k = input.Space
	default:
		// Character keys are covered by the input steps' final values.
		return nil
	}
	return p.page.Keyboard.Press(k)
}

func (p *Player) scroll(x, y float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := p.page.Context(ctx).Eval(`(x, y) => {
		window.scrollTo({ left: x, top: y, behavior: 'instant' });
		if (document.documentElement) {
			document.documentElement.scrollLeft = x;
			document.documentElement.scrollTop = y;
		}
	}`, x, y)
	return err
}

func (p *Player) element(selector string) (*rod.Element, error) {
	if selector == "" {
		return nil, fmt.Errorf("no selector recorded")
	}
	el, err := p.page.Timeout(2 * time.Second).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %q not found: %w", selector, err)
	}
	return el, nil
}
