package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"gopkg.in/yaml.v3"
)

// domSnapshot is what CaptureDOMSnapshot serializes to YAML.
type domSnapshot struct {
	URL      string `yaml:"url"`
	Title    string `yaml:"title"`
	Viewport struct {
		Width  int `yaml:"width" json:"width"`
		Height int `yaml:"height" json:"height"`
	} `yaml:"viewport"`
	Truncated bool      `yaml:"truncated,omitempty"`
	Nodes     []domNode `yaml:"elements"`
}

type domNode struct {
	Tag         string `yaml:"tag" json:"tag"`
	ID          string `yaml:"id,omitempty" json:"id"`
	Role        string `yaml:"role,omitempty" json:"role"`
	Text        string `yaml:"text,omitempty" json:"text"`
	Value       string `yaml:"value,omitempty" json:"value"`
	Interactive bool   `yaml:"interactive,omitempty" json:"interactive"`
	Visible     bool   `yaml:"visible" json:"visible"`
}

// maxSnapshotNodes caps DOM dumps; larger pages get a truncated marker.
const maxSnapshotNodes = 400

// CaptureScreenshot writes a PNG of the current viewport. The CDP call is
// preferred because the driver's own method flickers the page; it falls
// back to the driver method when the CDP session is stale.
func (s *Service) CaptureScreenshot(path string) error {
	res, err := proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	}.Call(s.page)
	if err == nil && res != nil {
		return os.WriteFile(path, res.Data, 0o644)
	}

	data, err := s.page.Screenshot(false, nil)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// CaptureDOMSnapshot dumps a capped, flattened view of the DOM as YAML.
func (s *Service) CaptureDOMSnapshot(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.page.Context(ctx).Eval(DOMSnapshotScript, maxSnapshotNodes)
	if err != nil {
		return fmt.Errorf("dom snapshot eval: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("dom snapshot decode: %w", err)
	}

	var snap struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Viewport struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"viewport"`
		Truncated bool      `json:"truncated"`
		Nodes     []domNode `json:"nodes"`
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("dom snapshot parse: %w", err)
	}

	out := domSnapshot{
		URL:       snap.URL,
		Title:     snap.Title,
		Truncated: snap.Truncated,
		Nodes:     snap.Nodes,
	}
	out.Viewport.Width = snap.Viewport.Width
	out.Viewport.Height = snap.Viewport.Height

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("dom snapshot marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
