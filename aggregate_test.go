package checkmate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionRatio(t *testing.T) {
	empty := (&Template{Version: "empty"}).NewInspection(CreateInspectionParams{}, testNow)
	assert.Equal(t, 1.0, CompletionRatio(empty))

	insp := newTestInspection()
	assert.Equal(t, 0.0, CompletionRatio(insp))

	_, err := insp.SetItemStatus("engine:start", StatusNotApplicable)
	require.NoError(t, err)
	assert.Equal(t, 0.25, CompletionRatio(insp))
}

func TestComputeProgress(t *testing.T) {
	insp := newTestInspection()
	_, _ = insp.SetItemStatus("engine:start", StatusPass)
	_, _ = insp.SetItemStatus("brakes:pads", StatusRecommended)

	p := ComputeProgress(insp)

	assert.Equal(t, insp.ID.String(), p.InspectionID)
	assert.Equal(t, StatusRecommended, p.Status)
	assert.Equal(t, LightYellow, p.Light)
	assert.Equal(t, 4, p.TotalItems)
	assert.Equal(t, 0.5, p.CompletionRatio)
	assert.Equal(t, StatusCounts{Unset: 2, Pass: 1, Recommended: 1}, p.Counts)
	assert.Equal(t, []string{"brakes:pedal"}, p.MissingRequired)

	require.Len(t, p.Sections, 2)
	assert.Equal(t, SectionProgress{ID: "engine", Label: "Engine", Status: StatusPass, Light: LightGreen, Total: 2, Complete: 1}, p.Sections[0])
	assert.Equal(t, SectionProgress{ID: "brakes", Label: "Brakes", Status: StatusRecommended, Light: LightYellow, Total: 2, Complete: 1}, p.Sections[1])
}

func TestInspectionStatus_RollsUpSections(t *testing.T) {
	insp := newTestInspection()
	assert.Equal(t, StatusNotApplicable, InspectionStatus(insp))

	_, _ = insp.SetItemStatus("engine:noise", StatusRequired)
	assert.Equal(t, StatusRequired, insp.Sections[0].Status())
	assert.Equal(t, StatusNotApplicable, insp.Sections[1].Status())
	assert.Equal(t, StatusRequired, InspectionStatus(insp))
}
