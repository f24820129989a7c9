package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/josancamon19/web-environments/internal/entity"
)

// eventPollInterval is how often the injected event buffer is drained.
const eventPollInterval = 200 * time.Millisecond

// StartEventStream installs the UI event hooks and begins forwarding raw
// events to onEvent. Navigation comes from CDP frame events; clicks, input,
// keydown, scroll and contextmenu come from the injected buffer, drained on
// a ticker so the page never waits on us. Runs until ctx is cancelled.
func (s *Service) StartEventStream(ctx context.Context, onEvent func(entity.RawEvent)) error {
	// Hook the current document and every future one.
	if _, err := s.page.Eval(EventHookScript); err != nil {
		return err
	}
	if _, err := (proto.PageAddScriptToEvaluateOnNewDocument{
		Source: "(" + EventHookScript + ")();",
	}.Call(s.page)); err != nil {
		return err
	}

	waitNav := s.page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		// Subframe navigations are network traffic, not user steps.
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		if ev.Frame.URL == "" || ev.Frame.URL == "about:blank" {
			return
		}
		onEvent(entity.RawEvent{
			Kind:      entity.StepNavigate,
			URL:       ev.Frame.URL,
			Timestamp: time.Now().UTC(),
		})
	})
	go waitNav()

	go s.pollEvents(ctx, onEvent)
	return nil
}

type bufferedEvent struct {
	Kind   string `json:"kind"`
	Target struct {
		Selector string `json:"selector"`
		Tag      string `json:"tag"`
		ID       string `json:"id"`
		Name     string `json:"name"`
		Class    string `json:"cls"`
		Text     string `json:"text"`
	} `json:"target"`
	Value string  `json:"value"`
	Key   string  `json:"key"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	TS    float64 `json:"ts"`
}

func (s *Service) pollEvents(ctx context.Context, onEvent func(entity.RawEvent)) {
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.page.Context(ctx).Eval(DrainEventsScript)
			if err != nil || res == nil || res.Value.Nil() {
				continue
			}
			raw, err := res.Value.MarshalJSON()
			if err != nil {
				continue
			}
			var events []bufferedEvent
			if err := json.Unmarshal(raw, &events); err != nil {
				continue
			}
			for _, ev := range events {
				onEvent(toRawEvent(ev))
			}
		}
	}
}

func toRawEvent(ev bufferedEvent) entity.RawEvent {
	return entity.RawEvent{
		Kind:      entity.StepKind(ev.Kind),
		Timestamp: time.UnixMilli(int64(ev.TS)).UTC(),
		Target: entity.TargetRef{
			Selector: ev.Target.Selector,
			Tag:      ev.Target.Tag,
			ID:       ev.Target.ID,
			Name:     ev.Target.Name,
			Class:    ev.Target.Class,
			Text:     ev.Target.Text,
		},
		Value: ev.Value,
		Key:   ev.Key,
		X:     ev.X,
		Y:     ev.Y,
	}
}
