package projects_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/projects"
	"github.com/hugh/agentops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(tc *testutil.TestSetup) *projects.Service {
	return projects.NewService(projects.Config{
		DB:      tc.DB,
		Invites: auth.NewInviteCodec("invite-secret", time.Hour),
		Mailer:  tc.Mailer,
		AppURL:  "http://app.test",
		Logger:  tc.Logger,
	})
}

func TestCreate_CreatorBecomesOwner(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	project, err := svc.Create(ctx, tc.Org.ID, tc.User.ID, projects.CreateInput{Name: "  Apollo ", BudgetCents: 5000})
	require.NoError(t, err)
	assert.Equal(t, "Apollo", project.Name)
	assert.Equal(t, int64(5000), project.BudgetCents)

	var member models.ProjectMember
	require.NoError(t, tc.DB.Where("project_id = ? AND user_id = ?", project.ID, tc.User.ID).First(&member).Error)
	assert.Equal(t, "OWNER", member.Role)

	var audits int64
	tc.DB.Model(&models.AuditLog{}).Where("action = ?", "project.created").Count(&audits)
	assert.Equal(t, int64(1), audits)
}

func TestListGetUpdateDelete(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)

	for i := 0; i < 3; i++ {
		testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	}
	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	otherUser := testutil.CreateTestUser(t, tc.DB, otherOrg)
	foreign := testutil.CreateTestProject(t, tc.DB, otherOrg.ID, otherUser)

	page, err := svc.List(ctx, tc.Org.ID, database.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.TotalPages)

	_, err = svc.Get(ctx, tc.Org.ID, foreign.ID)
	assert.Equal(t, projects.ErrProjectNotFound, err)

	target := page.Data[0]
	name := "Renamed"
	budget := int64(42)
	updated, err := svc.Update(ctx, tc.Org.ID, target.ID, projects.UpdateInput{Name: &name, BudgetCents: &budget})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, int64(42), updated.BudgetCents)

	require.NoError(t, svc.Delete(ctx, tc.Org.ID, target.ID, tc.User.ID))
	_, err = svc.Get(ctx, tc.Org.ID, target.ID)
	assert.Equal(t, projects.ErrProjectNotFound, err)
	assert.Equal(t, projects.ErrProjectNotFound, svc.Delete(ctx, tc.Org.ID, target.ID, tc.User.ID))

	var unscoped int64
	tc.DB.Unscoped().Model(&models.Project{}).Where("id = ?", target.ID).Count(&unscoped)
	assert.Equal(t, int64(1), unscoped, "delete is soft")
}

func TestTasks(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)
	project := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)

	task, err := svc.CreateTask(ctx, project.ID, tc.User.ID, projects.CreateTaskInput{Title: "Write brief", AssigneeID: &tc.User.ID})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusTodo, task.Status)

	t.Run("assignee from another org", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, tc.DB, testutil.CreateTestOrg(t, tc.DB))
		_, err := svc.CreateTask(ctx, project.ID, tc.User.ID, projects.CreateTaskInput{Title: "x", AssigneeID: &stranger.ID})
		assert.Equal(t, projects.ErrAssigneeNotInOrg, err)
	})

	t.Run("status transitions", func(t *testing.T) {
		done := models.TaskStatusDone
		updated, err := svc.UpdateTask(ctx, project.ID, task.ID, projects.UpdateTaskInput{Status: &done, ClearAssignee: true})
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusDone, updated.Status)
		assert.Nil(t, updated.AssigneeID)

		bogus := models.TaskStatus("blocked")
		_, err = svc.UpdateTask(ctx, project.ID, task.ID, projects.UpdateTaskInput{Status: &bogus})
		assert.Equal(t, projects.ErrInvalidStatus, err)
	})

	t.Run("metrics", func(t *testing.T) {
		_, err := svc.CreateTask(ctx, project.ID, tc.User.ID, projects.CreateTaskInput{Title: "Second"})
		require.NoError(t, err)

		m, err := svc.Metrics(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), m.Total)
		assert.Equal(t, int64(1), m.Done)
	})

	t.Run("filter and delete", func(t *testing.T) {
		done, err := svc.ListTasks(ctx, project.ID, "done")
		require.NoError(t, err)
		assert.Len(t, done, 1)

		require.NoError(t, svc.DeleteTask(ctx, project.ID, task.ID))
		assert.Equal(t, projects.ErrTaskNotFound, svc.DeleteTask(ctx, project.ID, task.ID))
		assert.Equal(t, projects.ErrTaskNotFound, svc.DeleteTask(ctx, project.ID, uuid.New()))
	})
}

func TestBudget(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)
	svc := newService(tc)
	project := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)

	_, err := svc.CreateExpense(ctx, project.ID, tc.User.ID, projects.CreateExpenseInput{Description: "Flights", AmountCents: 30000, Category: "Travel"})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, project.ID, tc.User.ID, projects.CreateExpenseInput{Description: "Hotel", AmountCents: 20000, Category: "travel"})
	require.NoError(t, err)
	gone, err := svc.CreateExpense(ctx, project.ID, tc.User.ID, projects.CreateExpenseInput{Description: "Licenses", AmountCents: 9900})
	require.NoError(t, err)
	assert.Equal(t, "general", gone.Category)
	require.NoError(t, svc.DeleteExpense(ctx, project.ID, gone.ID))

	budget, err := svc.Budget(ctx, tc.Org.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), budget.BudgetCents)
	assert.Equal(t, int64(50000), budget.SpentCents)
	assert.Equal(t, int64(50000), budget.RemainingCents)
	assert.Equal(t, map[string]int64{"travel": 50000}, budget.ByCategory)

	expenses, err := svc.ListExpenses(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, expenses, 2)
}
