package orgs_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/orgs"
	"github.com/hugh/agentops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(tc *testutil.TestSetup) *orgs.Service {
	return orgs.NewService(orgs.Config{
		DB:      tc.DB,
		Auth:    tc.NewAuthService(),
		Invites: auth.NewInviteCodec("invite-secret", time.Hour),
		Mailer:  tc.Mailer,
		AppURL:  "http://app.test",
		Logger:  tc.Logger,
	})
}

// inviteTokenFrom pulls the token query parameter out of the last mailed link.
func inviteTokenFrom(t *testing.T, tc *testutil.TestSetup) string {
	t.Helper()
	msg, ok := tc.Mailer.Last()
	require.True(t, ok, "no mail sent")
	idx := strings.Index(msg.Text, "http://app.test/invites/accept?")
	require.GreaterOrEqual(t, idx, 0, msg.Text)
	u, err := url.Parse(strings.TrimSpace(msg.Text[idx:]))
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestRename(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	org, err := svc.Rename(ctx, tc.Org.ID, tc.User.ID, "  Acme  ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", org.Name)

	got, err := svc.Get(ctx, tc.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, orgs.ErrOrgNotFound)
}

func TestUpdateMember(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	member := testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "MEMBER")
	pm := "pm"
	global := "SUPER_ADMIN"

	t.Run("promote", func(t *testing.T) {
		user, err := svc.UpdateMember(ctx, tc.Org.ID, tc.User.ID, member.ID, orgs.UpdateMemberInput{Role: &pm, GlobalRole: &global})
		require.NoError(t, err)
		assert.Equal(t, "PM", user.Role)
		require.NotNil(t, user.GlobalRole)
		assert.Equal(t, "ADMIN", *user.GlobalRole)
	})

	t.Run("clear global role", func(t *testing.T) {
		empty := ""
		user, err := svc.UpdateMember(ctx, tc.Org.ID, tc.User.ID, member.ID, orgs.UpdateMemberInput{GlobalRole: &empty})
		require.NoError(t, err)
		assert.Nil(t, user.GlobalRole)
	})

	t.Run("invalid role", func(t *testing.T) {
		bad := "OWNER"
		_, err := svc.UpdateMember(ctx, tc.Org.ID, tc.User.ID, member.ID, orgs.UpdateMemberInput{Role: &bad})
		assert.ErrorIs(t, err, orgs.ErrInvalidRole)
	})

	t.Run("last admin cannot be demoted", func(t *testing.T) {
		memberRole := "MEMBER"
		_, err := svc.UpdateMember(ctx, tc.Org.ID, tc.User.ID, tc.User.ID, orgs.UpdateMemberInput{Role: &memberRole})
		assert.ErrorIs(t, err, orgs.ErrLastAdmin)
	})

	t.Run("other organization", func(t *testing.T) {
		otherOrg := testutil.CreateTestOrg(t, tc.DB)
		outsider := testutil.CreateTestUser(t, tc.DB, otherOrg)
		_, err := svc.UpdateMember(ctx, tc.Org.ID, tc.User.ID, outsider.ID, orgs.UpdateMemberInput{Role: &pm})
		assert.ErrorIs(t, err, orgs.ErrMemberNotFound)
	})

	members, err := svc.ListMembers(ctx, tc.Org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	var changes int64
	tc.DB.Model(&models.AuditLog{}).Where("action = ?", "org.member_role_changed").Count(&changes)
	assert.Equal(t, int64(2), changes)
}

func TestDashboardAndWorkspace(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	alpha := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	meeting := testutil.CreateTestMeeting(t, tc.DB, tc.Org.ID, tc.User.ID)
	require.NoError(t, tc.DB.Create(&models.ActionItem{MeetingID: meeting.ID, OrganizationID: tc.Org.ID, Title: "x", Status: models.ActionItemOpen}).Error)
	testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "MEMBER")

	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	testutil.CreateTestMeeting(t, tc.DB, otherOrg.ID, tc.User.ID)

	d, err := svc.Dashboard(ctx, tc.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, orgs.Dashboard{Users: 2, Meetings: 1, Projects: 2, ActionItems: 1}, *d)

	require.NoError(t, tc.DB.Delete(alpha).Error)
	ws, err := svc.Workspace(ctx, tc.User.ID)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "OWNER", ws[0].Role)
	assert.NotEqual(t, alpha.ID, ws[0].ID)

	empty, err := svc.Workspace(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
