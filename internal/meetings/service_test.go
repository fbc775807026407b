package meetings_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/meetings"
	"github.com/hugh/agentops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndList(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := meetings.NewService(tc.DB, tc.Logger)

	start := time.Now().Add(time.Hour)
	early, err := svc.Create(ctx, tc.Org.ID, tc.User.ID, meetings.CreateInput{Title: " Kickoff ", StartsAt: start})
	require.NoError(t, err)
	assert.Equal(t, "Kickoff", early.Title)
	assert.Equal(t, models.BotStatusNone, early.BotStatus)

	late, err := svc.Create(ctx, tc.Org.ID, tc.User.ID, meetings.CreateInput{Title: "Retro", StartsAt: start.Add(48 * time.Hour)})
	require.NoError(t, err)

	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	testutil.CreateTestMeeting(t, tc.DB, otherOrg.ID, tc.User.ID)

	page, err := svc.List(ctx, tc.Org.ID, database.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, late.ID, page.Data[0].ID)
	assert.Equal(t, early.ID, page.Data[1].ID)
}

func TestCreate_Validation(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := meetings.NewService(tc.DB, tc.Logger)

	start := time.Now()
	before := start.Add(-time.Minute)
	_, err := svc.Create(ctx, tc.Org.ID, tc.User.ID, meetings.CreateInput{Title: "x", StartsAt: start, EndsAt: &before})
	assert.ErrorIs(t, err, meetings.ErrInvalidSchedule)

	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	otherUser := testutil.CreateTestUser(t, tc.DB, otherOrg)
	foreign := testutil.CreateTestProject(t, tc.DB, otherOrg.ID, otherUser)
	_, err = svc.Create(ctx, tc.Org.ID, tc.User.ID, meetings.CreateInput{Title: "x", StartsAt: start, ProjectID: &foreign.ID})
	assert.Error(t, err)
}

func TestGet_ScopedToOrganization(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := meetings.NewService(tc.DB, tc.Logger)

	meeting := testutil.CreateTestMeeting(t, tc.DB, tc.Org.ID, tc.User.ID)

	got, err := svc.Get(ctx, tc.Org.ID, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, meeting.Title, got.Title)

	_, err = svc.Get(ctx, uuid.New(), meeting.ID)
	assert.ErrorIs(t, err, meetings.ErrMeetingNotFound)
}

func TestRescheduleInviteBotDelete(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := meetings.NewService(tc.DB, tc.Logger)

	meeting := testutil.CreateTestMeeting(t, tc.DB, tc.Org.ID, tc.User.ID)

	newStart := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)
	newEnd := newStart.Add(30 * time.Minute)
	updated, err := svc.Reschedule(ctx, tc.Org.ID, meeting.ID, tc.User.ID, newStart, &newEnd)
	require.NoError(t, err)
	assert.True(t, updated.StartsAt.Equal(newStart))
	require.NotNil(t, updated.EndsAt)
	assert.True(t, updated.EndsAt.Equal(newEnd))

	_, err = svc.Reschedule(ctx, tc.Org.ID, meeting.ID, tc.User.ID, newEnd, &newStart)
	assert.ErrorIs(t, err, meetings.ErrInvalidSchedule)

	invited, err := svc.InviteBot(ctx, tc.Org.ID, meeting.ID, tc.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BotStatusInvited, invited.BotStatus)

	require.NoError(t, svc.MarkBotJoined(ctx, meeting.ID))
	joined, err := svc.InviteBot(ctx, tc.Org.ID, meeting.ID, tc.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BotStatusJoined, joined.BotStatus)

	require.NoError(t, svc.Delete(ctx, tc.Org.ID, meeting.ID, tc.User.ID))
	_, err = svc.Get(ctx, tc.Org.ID, meeting.ID)
	assert.ErrorIs(t, err, meetings.ErrMeetingNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, tc.Org.ID, meeting.ID, tc.User.ID), meetings.ErrMeetingNotFound)

	for _, action := range []string{"meeting.rescheduled", "meeting.bot_invited", "meeting.deleted"} {
		var count int64
		tc.DB.Model(&models.AuditLog{}).Where("organization_id = ? AND action = ?", tc.Org.ID, action).Count(&count)
		assert.Equal(t, int64(1), count, action)
	}
}

func TestMarkBotJoined_UnknownMeeting(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	err := meetings.NewService(tc.DB, tc.Logger).MarkBotJoined(testutil.TestContext(t), uuid.New())
	assert.ErrorIs(t, err, meetings.ErrMeetingNotFound)
}
