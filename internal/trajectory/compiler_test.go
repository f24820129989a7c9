package trajectory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josancamon19/web-environments/internal/entity"
)

func ts(sec int) time.Time {
	return time.Date(2025, 3, 1, 12, 0, sec, 0, time.UTC)
}

func TestCompile_TypingRunCollapses(t *testing.T) {
	// A search flow: navigate, click the box, type "go" key by key, submit.
	steps := []entity.Step{
		{Sequence: 1, Timestamp: ts(0), Kind: entity.StepNavigate, URL: "https://example.com"},
		{Sequence: 2, Timestamp: ts(1), Kind: entity.StepClick, Target: entity.TargetRef{Selector: "#q"}},
		{Sequence: 3, Timestamp: ts(2), Kind: entity.StepKeydown, Target: entity.TargetRef{Selector: "#q"}, Key: "g"},
		{Sequence: 4, Timestamp: ts(2), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#q"}, Value: "g"},
		{Sequence: 5, Timestamp: ts(3), Kind: entity.StepKeydown, Target: entity.TargetRef{Selector: "#q"}, Key: "o"},
		{Sequence: 6, Timestamp: ts(3), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#q"}, Value: "go"},
		{Sequence: 7, Timestamp: ts(4), Kind: entity.StepClick, Target: entity.TargetRef{Selector: "#submit"}},
	}

	traj := Compile(7, "search for go", steps)

	require.Len(t, traj.ToolCalls, 4)
	require.Equal(t, entity.ToolGoTo, traj.ToolCalls[0].Type)
	require.Equal(t, entity.ToolClick, traj.ToolCalls[1].Type)

	typed := traj.ToolCalls[2]
	require.Equal(t, entity.ToolType, typed.Type)
	require.Equal(t, "#q", typed.Selector)
	require.Equal(t, "go", typed.Value, "type call must carry the final field value")
	require.Equal(t, ts(3), typed.Timestamp, "type call must carry the last contributing timestamp")
	require.Equal(t, []int64{3, 4, 5, 6}, typed.StepIDs)

	require.Equal(t, entity.ToolClick, traj.ToolCalls[3].Type)
	require.Equal(t, "#submit", traj.ToolCalls[3].Selector)
}

func TestCompile_ClickSplitsTypingRuns(t *testing.T) {
	steps := []entity.Step{
		{Sequence: 1, Timestamp: ts(0), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#a"}, Value: "x"},
		{Sequence: 2, Timestamp: ts(1), Kind: entity.StepClick, Target: entity.TargetRef{Selector: "#a"}},
		{Sequence: 3, Timestamp: ts(2), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#a"}, Value: "xy"},
	}

	traj := Compile(1, "t", steps)

	require.Len(t, traj.ToolCalls, 3)
	require.Equal(t, entity.ToolType, traj.ToolCalls[0].Type)
	require.Equal(t, "x", traj.ToolCalls[0].Value)
	require.Equal(t, entity.ToolClick, traj.ToolCalls[1].Type)
	require.Equal(t, entity.ToolType, traj.ToolCalls[2].Type)
	require.Equal(t, "xy", traj.ToolCalls[2].Value)
}

func TestCompile_DifferentElementSplitsTypingRuns(t *testing.T) {
	steps := []entity.Step{
		{Sequence: 1, Timestamp: ts(0), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#user"}, Value: "bob"},
		{Sequence: 2, Timestamp: ts(1), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#pass"}, Value: "hunter2"},
	}

	traj := Compile(1, "login", steps)

	require.Len(t, traj.ToolCalls, 2)
	require.Equal(t, "bob", traj.ToolCalls[0].Value)
	require.Equal(t, "hunter2", traj.ToolCalls[1].Value)
}

func TestCompile_ScrollAndTrailingRun(t *testing.T) {
	steps := []entity.Step{
		{Sequence: 1, Timestamp: ts(0), Kind: entity.StepScroll, X: 0, Y: 740},
		{Sequence: 2, Timestamp: ts(1), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#q"}, Value: "tail"},
	}

	traj := Compile(1, "t", steps)

	require.Len(t, traj.ToolCalls, 2)
	require.Equal(t, entity.ToolScroll, traj.ToolCalls[0].Type)
	require.Equal(t, float64(740), traj.ToolCalls[0].Y)
	require.Equal(t, entity.ToolType, traj.ToolCalls[1].Type, "a typing run at the end of the log must be flushed")
	require.Equal(t, "tail", traj.ToolCalls[1].Value)
}

func TestCompile_SessionScenario(t *testing.T) {
	// One navigation, one click, one three-keystroke text entry: five
	// recorded steps, three semantic actions.
	steps := []entity.Step{
		{Sequence: 1, Timestamp: ts(0), Kind: entity.StepNavigate, URL: "https://notes.example.com"},
		{Sequence: 2, Timestamp: ts(1), Kind: entity.StepClick, Target: entity.TargetRef{Selector: "#new-note"}},
		{Sequence: 3, Timestamp: ts(2), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#title"}, Value: "b"},
		{Sequence: 4, Timestamp: ts(3), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#title"}, Value: "bu"},
		{Sequence: 5, Timestamp: ts(4), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#title"}, Value: "buy"},
	}

	traj := Compile(12, "create a note titled buy", steps)

	require.Len(t, traj.ToolCalls, 3)
	require.Equal(t, entity.ToolGoTo, traj.ToolCalls[0].Type)
	require.Equal(t, entity.ToolClick, traj.ToolCalls[1].Type)
	require.Equal(t, entity.ToolType, traj.ToolCalls[2].Type)
	require.Equal(t, "buy", traj.ToolCalls[2].Value)
	require.Equal(t, []int64{3, 4, 5}, traj.ToolCalls[2].StepIDs)
}

func TestCompile_Deterministic(t *testing.T) {
	steps := []entity.Step{
		{Sequence: 1, Timestamp: ts(0), Kind: entity.StepNavigate, URL: "https://example.com"},
		{Sequence: 2, Timestamp: ts(1), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#q"}, Value: "a"},
		{Sequence: 3, Timestamp: ts(2), Kind: entity.StepInput, Target: entity.TargetRef{Selector: "#q"}, Value: "ab"},
	}

	first, err := json.Marshal(Compile(3, "d", steps))
	require.NoError(t, err)
	second, err := json.Marshal(Compile(3, "d", steps))
	require.NoError(t, err)
	require.Equal(t, first, second, "compiling the same steps twice must produce identical bytes")
}

func TestCompile_EmptySteps(t *testing.T) {
	traj := Compile(1, "nothing", nil)
	require.NotNil(t, traj.ToolCalls)
	require.Empty(t, traj.ToolCalls)
}
