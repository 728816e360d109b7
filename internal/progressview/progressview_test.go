package progressview

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nixinstall/nix-installer-go/internal/action"
)

func TestUpdateProgressTickAdvancesFraction(t *testing.T) {
	ch := make(chan action.ProgressMsg)
	m := New(ch, 4)

	updated, _ := m.Update(progressTick{msg: action.ProgressMsg{Synopsis: "creating /nix"}})
	mm := updated.(Model)

	assert.Equal(t, 1, mm.seen)
	assert.Equal(t, "creating /nix", mm.current)
	assert.Equal(t, 0.25, mm.fraction)
}

func TestUpdateProgressTickAccumulatesLogLines(t *testing.T) {
	ch := make(chan action.ProgressMsg)
	m := New(ch, 1)

	updated, _ := m.Update(progressTick{msg: action.ProgressMsg{Detail: "line one"}})
	updated, _ = updated.(Model).Update(progressTick{msg: action.ProgressMsg{Detail: "line two"}})
	mm := updated.(Model)

	assert.Equal(t, []string{"line one", "line two"}, mm.log)
}

func TestUpdateProgressTickCapsLogAtMaxLines(t *testing.T) {
	ch := make(chan action.ProgressMsg)
	m := New(ch, 1)

	model := m
	for i := 0; i < maxLogLines+3; i++ {
		updated, _ := model.Update(progressTick{msg: action.ProgressMsg{Detail: "line"}})
		model = updated.(Model)
	}
	assert.Len(t, model.log, maxLogLines)
}

func TestUpdateProgressTickRecordsErrorInLog(t *testing.T) {
	ch := make(chan action.ProgressMsg)
	m := New(ch, 1)

	updated, _ := m.Update(progressTick{msg: action.ProgressMsg{Err: errors.New("boom")}})
	mm := updated.(Model)
	assert.Len(t, mm.log, 1)
	assert.Contains(t, mm.log[0], "boom")
}

func TestUpdateFinishMsgMarksFinishedAndQuits(t *testing.T) {
	ch := make(chan action.ProgressMsg)
	m := New(ch, 1)

	updated, cmd := m.Update(FinishMsg{Err: errors.New("install failed")})
	mm := updated.(Model)

	assert.True(t, mm.finished)
	assert.EqualError(t, mm.err, "install failed")
	assert.NotNil(t, cmd, "FinishMsg must issue tea.Quit")
}

func TestViewRendersDoneOnSuccessfulFinish(t *testing.T) {
	ch := make(chan action.ProgressMsg)
	m := New(ch, 1)
	updated, _ := m.Update(FinishMsg{Err: nil})
	view := updated.(Model).View()
	assert.Contains(t, view, "done")
}

func TestViewRendersErrorOnFailedFinish(t *testing.T) {
	ch := make(chan action.ProgressMsg)
	m := New(ch, 1)
	updated, _ := m.Update(FinishMsg{Err: errors.New("disk full")})
	view := updated.(Model).View()
	assert.Contains(t, view, "disk full")
}
