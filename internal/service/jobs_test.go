package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/testutil"
)

func posting(title string) JobPosting {
	liveIn := false
	return JobPosting{
		EmployerID:   "employer-1",
		EmployerName: "Otieno",
		Title:        title,
		WorkType:     "cleaning",
		Description:  "Weekly house cleaning",
		Location:     "Kisumu",
		IsLiveIn:     &liveIn,
	}
}

func TestJobs_PostAndListNewestFirst(t *testing.T) {
	h := newHarness(t)
	jobs := NewJobs(h.platform, h.anchor, h.index, testutil.MakeNoopLogger())
	ctx := context.Background()

	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	jobs.now = func() time.Time { return clock }
	_, err := jobs.Post(ctx, posting("older"))
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	posted, err := jobs.Post(ctx, posting("newer"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusOpen, posted.Status)
	assert.NotEmpty(t, posted.ID)
	assert.NotEmpty(t, posted.StellarTx)

	list, err := jobs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, posted.ID, list[0].ID)
	assert.Equal(t, "older", list[1].Title)
}

func TestJobs_PostValidation(t *testing.T) {
	h := newHarness(t)
	jobs := NewJobs(h.platform, h.anchor, h.index, testutil.MakeNoopLogger())

	missingTitle := posting("")
	_, err := jobs.Post(context.Background(), missingTitle)
	var validationErr *model.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "title", validationErr.Field)

	noLiveIn := posting("x")
	noLiveIn.IsLiveIn = nil
	_, err = jobs.Post(context.Background(), noLiveIn)
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "isLiveIn", validationErr.Field)

	assert.Empty(t, h.dataKeys(t))
}
