package orgs_test

import (
	"testing"
	"time"

	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/orgs"
	"github.com/hugh/agentops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvite_NewUserAccepts(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	invite, err := svc.Invite(ctx, tc.Org.ID, tc.User.ID, " Grace@Example.com ", "pm")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", invite.Email)
	assert.Equal(t, "PM", invite.Role)
	assert.Equal(t, models.InviteStatusPending, invite.Status)

	msg, _ := tc.Mailer.Last()
	assert.Equal(t, "grace@example.com", msg.To)
	token := inviteTokenFrom(t, tc)

	session, err := svc.AcceptInvite(ctx, orgs.AcceptInput{Token: token, Name: "Grace Hopper", Password: "cobol-forever"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, tc.Org.ID, session.User.OrganizationID)
	assert.Equal(t, "PM", session.User.Role)
	assert.Equal(t, "Grace Hopper", session.User.Name)
	assert.True(t, auth.CheckPassword("cobol-forever", session.User.PasswordHash))

	_, err = svc.AcceptInvite(ctx, orgs.AcceptInput{Token: token})
	assert.ErrorIs(t, err, auth.ErrInvalidInviteToken)

	pending, err := svc.ListInvites(ctx, tc.Org.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInvite_ExistingUserMoves(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	otherAdmin := testutil.CreateTestUser(t, tc.DB, otherOrg)
	mover := testutil.CreateTestUserWithRole(t, tc.DB, otherOrg, "MEMBER")
	oldProject := testutil.CreateTestProject(t, tc.DB, otherOrg.ID, otherAdmin)
	testutil.AddProjectMember(t, tc.DB, oldProject.ID, mover.ID, "EDITOR")

	_, err := svc.Invite(ctx, tc.Org.ID, tc.User.ID, mover.Email, "")
	require.NoError(t, err)

	session, err := svc.AcceptInvite(ctx, orgs.AcceptInput{Token: inviteTokenFrom(t, tc)})
	require.NoError(t, err)
	assert.Equal(t, mover.ID, session.User.ID)
	assert.Equal(t, tc.Org.ID, session.User.OrganizationID)
	assert.Equal(t, "MEMBER", session.User.Role)

	// password untouched
	var reloaded models.User
	require.NoError(t, tc.DB.First(&reloaded, "id = ?", mover.ID).Error)
	assert.True(t, auth.CheckPassword(testutil.TestPassword, reloaded.PasswordHash))

	// memberships in the old organization do not follow the user
	var memberships int64
	require.NoError(t, tc.DB.Model(&models.ProjectMember{}).Where("user_id = ?", mover.ID).Count(&memberships).Error)
	assert.Equal(t, int64(0), memberships)
}

func TestInvite_LastAdminCannotLeave(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	soleAdmin := testutil.CreateTestUser(t, tc.DB, otherOrg)
	project := testutil.CreateTestProject(t, tc.DB, otherOrg.ID, soleAdmin)

	_, err := svc.Invite(ctx, tc.Org.ID, tc.User.ID, soleAdmin.Email, "MEMBER")
	require.NoError(t, err)
	token := inviteTokenFrom(t, tc)

	_, err = svc.AcceptInvite(ctx, orgs.AcceptInput{Token: token})
	assert.ErrorIs(t, err, orgs.ErrLastAdmin)

	var reloaded models.User
	require.NoError(t, tc.DB.First(&reloaded, "id = ?", soleAdmin.ID).Error)
	assert.Equal(t, otherOrg.ID, reloaded.OrganizationID)
	assert.Equal(t, "ADMIN", reloaded.Role)

	var owners int64
	require.NoError(t, tc.DB.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", project.ID, soleAdmin.ID).Count(&owners).Error)
	assert.Equal(t, int64(1), owners)

	// the invite is still pending, so it works once another admin exists
	testutil.CreateTestUser(t, tc.DB, otherOrg)
	session, err := svc.AcceptInvite(ctx, orgs.AcceptInput{Token: token})
	require.NoError(t, err)
	assert.Equal(t, tc.Org.ID, session.User.OrganizationID)
}

func TestInvite_Rules(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	t.Run("existing member", func(t *testing.T) {
		_, err := svc.Invite(ctx, tc.Org.ID, tc.User.ID, tc.User.Email, "")
		assert.ErrorIs(t, err, orgs.ErrAlreadyMember)
	})

	t.Run("bad role", func(t *testing.T) {
		_, err := svc.Invite(ctx, tc.Org.ID, tc.User.ID, "x@example.com", "OWNER")
		assert.ErrorIs(t, err, orgs.ErrInvalidRole)
	})

	t.Run("reinvite replaces token", func(t *testing.T) {
		_, err := svc.Invite(ctx, tc.Org.ID, tc.User.ID, "again@example.com", "")
		require.NoError(t, err)
		first := inviteTokenFrom(t, tc)
		_, err = svc.Invite(ctx, tc.Org.ID, tc.User.ID, "again@example.com", "PM")
		require.NoError(t, err)
		second := inviteTokenFrom(t, tc)

		var rows int64
		tc.DB.Model(&models.Invite{}).Where("email = ?", "again@example.com").Count(&rows)
		assert.Equal(t, int64(1), rows)

		_, err = svc.AcceptInvite(ctx, orgs.AcceptInput{Token: first})
		assert.ErrorIs(t, err, auth.ErrInvalidInviteToken)
		session, err := svc.AcceptInvite(ctx, orgs.AcceptInput{Token: second})
		require.NoError(t, err)
		assert.Equal(t, "PM", session.User.Role)
		assert.Equal(t, auth.UnusablePassword, session.User.PasswordHash)
		assert.Equal(t, "again", session.User.Name)
	})

	t.Run("revoked", func(t *testing.T) {
		invite, err := svc.Invite(ctx, tc.Org.ID, tc.User.ID, "revoked@example.com", "")
		require.NoError(t, err)
		token := inviteTokenFrom(t, tc)

		require.NoError(t, svc.RevokeInvite(ctx, tc.Org.ID, invite.ID, tc.User.ID))
		assert.ErrorIs(t, svc.RevokeInvite(ctx, tc.Org.ID, invite.ID, tc.User.ID), orgs.ErrInviteNotFound)

		_, err = svc.AcceptInvite(ctx, orgs.AcceptInput{Token: token})
		assert.ErrorIs(t, err, auth.ErrInvalidInviteToken)
	})

	t.Run("project token rejected", func(t *testing.T) {
		codec := auth.NewInviteCodec("invite-secret", time.Hour)
		token, err := codec.Encode(codec.NewPayload(auth.InviteProject, tc.Org.ID, "p@example.com", "EDITOR"))
		require.NoError(t, err)
		_, err = svc.AcceptInvite(ctx, orgs.AcceptInput{Token: token})
		assert.ErrorIs(t, err, auth.ErrInvalidInviteToken)
	})
}

func TestBulkInvite(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	res, err := svc.BulkInvite(ctx, tc.Org.ID, tc.User.ID,
		[]string{"a@example.com", "A@example.com", tc.User.Email, " ", "b@example.com"}, "MEMBER")
	require.NoError(t, err)

	assert.Len(t, res.Invited, 2)
	assert.Equal(t, map[string]string{tc.User.Email: orgs.ErrAlreadyMember.Message}, res.Failed)
	assert.Equal(t, 2, tc.Mailer.Count())

	pending, err := svc.ListInvites(ctx, tc.Org.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
