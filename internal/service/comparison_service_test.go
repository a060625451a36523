package service

import (
	"context"
	"kmms_simulator/internal/util"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparison_ResearchPrompt(t *testing.T) {
	inv := &recordingInvoker{answer: "Report"}
	svc := NewComparisonService(NewDocumentService(), inv, testEvaluationConfig())

	res, err := svc.Compare(context.Background(), ComparisonRequest{
		TargetUniversity: "Oman - Sultan Qaboos University",
		ComparisonType:   ComparisonResearch,
		LevelFilter:      LevelPostgraduate,
		Disciplines:      []string{"Engineering", "Science"},
		ResearchDepth:    true,
		Files: []UploadedFile{
			{Name: "plan.txt", Data: []byte(strings.Repeat("a", 9000))},
			{Name: "brief.md", Data: []byte("Short brief.")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Report", res.Report)
	assert.Equal(t, 2, res.Files)

	req := inv.requests[0]
	assert.Contains(t, req.Messages[0].Content, "Always compare other universities against Abdullah Al-Salem University (AASU).")

	user := req.UserMessage()
	assert.Contains(t, user, "Target: Oman - Sultan Qaboos University")
	assert.Contains(t, user, "Focus only on postgraduate (masters and doctoral) programmes.")
	assert.Contains(t, user, "Disciplines: Engineering, Science\nFocus in particular on the following disciplines: Engineering, Science.")
	assert.Contains(t, user, "Additional notes:\n[None]")
	assert.Contains(t, user, "For research comparisons:")
	assert.Contains(t, user, "Place particular emphasis on:")
	assert.Contains(t, user, "\n--- File: plan.txt ---\n"+strings.Repeat("a", 8000)+util.TruncationMarker)
	assert.Contains(t, user, "\n--- File: brief.md ---\nShort brief.")
}

func TestComparison_DefaultsWithoutFiles(t *testing.T) {
	inv := &recordingInvoker{answer: "Report"}
	svc := NewComparisonService(NewDocumentService(), inv, testEvaluationConfig())

	_, err := svc.Compare(context.Background(), ComparisonRequest{
		TargetUniversity: UniversityOptions[0],
		ComparisonType:   ComparisonTypes[0],
		ResearchDepth:    true,
		Notes:            "Compare nursing colleges.",
	})
	require.NoError(t, err)

	user := inv.requests[0].UserMessage()
	assert.Contains(t, user, "Level filter: All levels")
	assert.Contains(t, user, "Disciplines: [All disciplines]")
	assert.Contains(t, user, "Additional notes:\nCompare nursing colleges.")
	assert.Contains(t, user, "[No files uploaded]")
	assert.NotContains(t, user, "For research comparisons:")
	assert.NotContains(t, user, "Place particular emphasis on:")
	assert.Equal(t, "gpt-4o-mini", inv.models[0])
}

func TestComparison_Validation(t *testing.T) {
	inv := &recordingInvoker{}
	svc := NewComparisonService(NewDocumentService(), inv, testEvaluationConfig())
	ctx := context.Background()
	valid := ComparisonRequest{TargetUniversity: UniversityOptions[1], ComparisonType: ComparisonTypes[1]}

	bad := valid
	bad.TargetUniversity = "Atlantis University"
	_, err := svc.Compare(ctx, bad)
	assert.ErrorIs(t, err, util.ErrInvalidOption)

	bad = valid
	bad.ComparisonType = "Sports"
	_, err = svc.Compare(ctx, bad)
	assert.ErrorIs(t, err, util.ErrInvalidOption)

	bad = valid
	bad.LevelFilter = "Doctoral only"
	_, err = svc.Compare(ctx, bad)
	assert.ErrorIs(t, err, util.ErrInvalidOption)

	bad = valid
	bad.Disciplines = []string{"Astrology"}
	_, err = svc.Compare(ctx, bad)
	assert.ErrorIs(t, err, util.ErrInvalidOption)

	bad = valid
	bad.Model = "gpt-3"
	_, err = svc.Compare(ctx, bad)
	assert.ErrorIs(t, err, util.ErrInvalidOption)

	assert.Equal(t, 0, inv.Calls())
}
