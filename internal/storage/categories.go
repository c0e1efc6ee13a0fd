package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kwestin/tally/internal/common"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
)

// GetCategories returns all active categories ordered by name.
func (s *SQLiteStore) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, type, is_active, created_at
		FROM categories WHERE is_active = 1 ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *category)
	}
	return categories, rows.Err()
}

// GetCategoryByID returns one category by id.
func (s *SQLiteStore) GetCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, type, is_active, created_at
		FROM categories WHERE id = ?
	`, id)

	category, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// CreateCategory creates a new active category. Names are unique; creating
// a duplicate returns ErrDuplicateEntry.
func (s *SQLiteStore) CreateCategory(ctx context.Context, name, description string, categoryType model.CategoryType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if categoryType != model.CategoryTypeIncome && categoryType != model.CategoryTypeExpense {
		return nil, fmt.Errorf("%w: unknown category type %q", common.ErrInvalidConfig, categoryType)
	}

	category := model.Category{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Type:        categoryType,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, type, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`, category.ID, category.Name, category.Description, string(category.Type), category.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("category %q: %w", category.Name, common.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return &category, nil
}

// SaveClassificationExample records one (description, category) pair of
// classification history. These pairs train the local classifier.
func (s *SQLiteStore) SaveClassificationExample(ctx context.Context, description, categoryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(description, "description"); err != nil {
		return err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_examples (description, category_id) VALUES (?, ?)
	`, description, categoryID)
	if err != nil {
		return fmt.Errorf("failed to save classification example: %w", err)
	}
	return nil
}

// GetClassificationExamples returns the stored classification history,
// oldest first.
func (s *SQLiteStore) GetClassificationExamples(ctx context.Context) ([]service.ClassificationExample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT description, category_id FROM classification_examples ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var examples []service.ClassificationExample
	for rows.Next() {
		var example service.ClassificationExample
		if err := rows.Scan(&example.Description, &example.CategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan classification example: %w", err)
		}
		examples = append(examples, example)
	}
	return examples, rows.Err()
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var category model.Category
	var description sql.NullString
	var categoryType string

	if err := row.Scan(
		&category.ID, &category.Name, &description, &categoryType,
		&category.IsActive, &category.CreatedAt,
	); err != nil {
		return nil, err
	}

	category.Description = description.String
	category.Type = model.CategoryType(categoryType)
	return &category, nil
}
