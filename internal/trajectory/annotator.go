package trajectory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/josancamon19/web-environments/internal/entity"
)

// Annotator produces scoring checkpoints for a compiled trajectory.
type Annotator interface {
	Annotate(ctx context.Context, traj entity.Trajectory) ([]entity.Checkpoint, error)
}

// OpenAIAnnotator asks a chat model to mark the milestones of a trajectory.
// The output feeds partial-credit scoring, so indices must point at real
// tool calls; out-of-range indices from the model are dropped.
type OpenAIAnnotator struct {
	client *openai.Client
	model  string
}

func NewOpenAIAnnotator(apiKey, model, baseURL string) *OpenAIAnnotator {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &OpenAIAnnotator{
		client: &client,
		model:  model,
	}
}

const annotatorSystemPrompt = `You segment a web interaction trace into scoring checkpoints.
You are given a task description and an ordered list of tool calls.
Return a JSON array of objects {"index": <int>, "description": <string>}
where index is the position (0-based) of the tool call that completes a
meaningful milestone toward the task. Return only the JSON array.`

func (a *OpenAIAnnotator) Annotate(ctx context.Context, traj entity.Trajectory) ([]entity.Checkpoint, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n\nTool calls:\n", traj.TaskDescription)
	for i, call := range traj.ToolCalls {
		fmt.Fprintf(&sb, "%d. %s", i, call.Type)
		if call.URL != "" {
			fmt.Fprintf(&sb, " url=%s", call.URL)
		}
		if call.Selector != "" {
			fmt.Fprintf(&sb, " selector=%s", call.Selector)
		}
		if call.Value != "" {
			fmt.Fprintf(&sb, " value=%q", call.Value)
		}
		sb.WriteString("\n")
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(annotatorSystemPrompt),
			openai.UserMessage(sb.String()),
		},
		Temperature: openai.Opt[float64](0.0),
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("checkpoint request returned no choices")
	}

	return parseCheckpoints(resp.Choices[0].Message.Content, len(traj.ToolCalls))
}

// parseCheckpoints tolerates the model wrapping the array in a markdown
// fence, which chat models do even when told not to.
func parseCheckpoints(content string, numCalls int) ([]entity.Checkpoint, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "["); i >= 0 {
		if j := strings.LastIndex(content, "]"); j > i {
			content = content[i : j+1]
		}
	}

	var raw []entity.Checkpoint
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoints: %w", err)
	}

	checkpoints := make([]entity.Checkpoint, 0, len(raw))
	for _, cp := range raw {
		if cp.Index < 0 || cp.Index >= numCalls {
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}
