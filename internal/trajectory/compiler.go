package trajectory

import (
	"github.com/josancamon19/web-environments/internal/entity"
)

// Compile turns a recorded step sequence into a tool-call trajectory.
//
// Runs of consecutive keydown/input steps on the same element, with no
// click or navigate in between, collapse into a single "type" call that
// carries the field's final value and the timestamp of the last
// contributing step. Clicks, navigations and scrolls map one to one.
// The result is deterministic: the same steps always compile to the
// same trajectory.
func Compile(taskID int64, taskDescription string, steps []entity.Step) entity.Trajectory {
	traj := entity.Trajectory{
		TaskID:          taskID,
		TaskDescription: taskDescription,
		ToolCalls:       []entity.ToolCall{},
	}

	var pending *entity.ToolCall

	flush := func() {
		if pending != nil {
			traj.ToolCalls = append(traj.ToolCalls, *pending)
			pending = nil
		}
	}

	for _, s := range steps {
		switch s.Kind {
		case entity.StepNavigate:
			flush()
			traj.ToolCalls = append(traj.ToolCalls, entity.ToolCall{
				Type:      entity.ToolGoTo,
				URL:       s.URL,
				Timestamp: s.Timestamp,
				StepIDs:   []int64{s.Sequence},
			})

		case entity.StepClick, entity.StepContextMenu:
			flush()
			traj.ToolCalls = append(traj.ToolCalls, entity.ToolCall{
				Type:      entity.ToolClick,
				Selector:  s.Target.Selector,
				Timestamp: s.Timestamp,
				StepIDs:   []int64{s.Sequence},
			})

		case entity.StepKeydown, entity.StepInput:
			if pending != nil && pending.Selector == s.Target.Selector {
				pending.Timestamp = s.Timestamp
				pending.StepIDs = append(pending.StepIDs, s.Sequence)
				if s.Kind == entity.StepInput {
					pending.Value = s.Value
				}
				continue
			}
			flush()
			call := entity.ToolCall{
				Type:      entity.ToolType,
				Selector:  s.Target.Selector,
				Timestamp: s.Timestamp,
				StepIDs:   []int64{s.Sequence},
			}
			if s.Kind == entity.StepInput {
				call.Value = s.Value
			}
			pending = &call

		case entity.StepScroll:
			flush()
			traj.ToolCalls = append(traj.ToolCalls, entity.ToolCall{
				Type:      entity.ToolScroll,
				X:         s.X,
				Y:         s.Y,
				Timestamp: s.Timestamp,
				StepIDs:   []int64{s.Sequence},
			})
		}
	}
	flush()

	return traj
}
