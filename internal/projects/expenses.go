package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database/models"
)

var ErrExpenseNotFound = apperr.NotFound("Expense not found")

const defaultCategory = "general"

type CreateExpenseInput struct {
	Description string
	AmountCents int64
	Category    string
	SpentAt     *time.Time
}

func (s *Service) ListExpenses(ctx context.Context, projectID uuid.UUID) ([]models.Expense, error) {
	var expenses []models.Expense
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("spent_at DESC").
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return expenses, nil
}

func (s *Service) CreateExpense(ctx context.Context, projectID, userID uuid.UUID, in CreateExpenseInput) (*models.Expense, error) {
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		category = defaultCategory
	}
	spentAt := time.Now().UTC()
	if in.SpentAt != nil {
		spentAt = in.SpentAt.UTC()
	}

	expense := models.Expense{
		ProjectID:   projectID,
		Description: strings.TrimSpace(in.Description),
		AmountCents: in.AmountCents,
		Category:    category,
		SpentAt:     spentAt,
		CreatedBy:   userID,
	}
	if err := s.db.WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, fmt.Errorf("creating expense: %w", err)
	}
	return &expense, nil
}

func (s *Service) DeleteExpense(ctx context.Context, projectID, expenseID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", expenseID, projectID).
		Delete(&models.Expense{})
	if res.Error != nil {
		return fmt.Errorf("deleting expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

type Budget struct {
	BudgetCents    int64            `json:"budgetCents"`
	SpentCents     int64            `json:"spentCents"`
	RemainingCents int64            `json:"remainingCents"`
	ByCategory     map[string]int64 `json:"byCategory"`
}

// Budget rolls up live expenses against the project budget. RemainingCents
// goes negative when the project is over budget.
func (s *Service) Budget(ctx context.Context, orgID, projectID uuid.UUID) (*Budget, error) {
	project, err := s.Get(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Category string
		Total    int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Expense{}).
		Select("category, SUM(amount_cents) AS total").
		Where("project_id = ?", projectID).
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("summing expenses: %w", err)
	}

	b := &Budget{BudgetCents: project.BudgetCents, ByCategory: make(map[string]int64, len(rows))}
	for _, row := range rows {
		b.ByCategory[row.Category] = row.Total
		b.SpentCents += row.Total
	}
	b.RemainingCents = b.BudgetCents - b.SpentCents
	return b, nil
}
