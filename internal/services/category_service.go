package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// CategoryListing groups the fixed and the user-defined categories. All
// holds every usable name, predefined first.
type CategoryListing struct {
	Predefined []core.PredefinedCategory `json:"predefined"`
	Custom     []core.Category           `json:"custom"`
	All        []string                  `json:"all"`
}

type CategoryInput struct {
	Name string
	Icon string
	Goal *core.Money
}

type CategoryPatch struct {
	Name *string
	Icon *string
	Goal *core.Money
}

type CategoryService struct {
	store storage.CategoryStore
	now   func() time.Time
}

func NewCategoryService(store storage.CategoryStore) *CategoryService {
	return &CategoryService{store: store, now: time.Now}
}

func (s *CategoryService) List(ctx context.Context, userID string) (CategoryListing, error) {
	custom, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return CategoryListing{}, fmt.Errorf("list categories: %w", err)
	}
	predefined := core.PredefinedCategories()

	all := make([]string, 0, len(predefined)+len(custom))
	for _, c := range predefined {
		all = append(all, c.Name)
	}
	for _, c := range custom {
		all = append(all, c.Name)
	}
	return CategoryListing{Predefined: predefined, Custom: custom, All: all}, nil
}

func (s *CategoryService) Create(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	c := core.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Icon:      strings.TrimSpace(in.Icon),
		Goal:      in.Goal,
		CreatedAt: s.now().UTC(),
	}
	if c.Icon == "" {
		c.Icon = core.DefaultCategoryIcon
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.ensureNameAvailable(ctx, userID, c.Name, ""); err != nil {
		return core.Category{}, err
	}

	if err := s.store.InsertCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, userID, id string, patch CategoryPatch) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name != c.Name {
			if err := s.ensureNameAvailable(ctx, userID, name, c.ID); err != nil {
				return core.Category{}, err
			}
		}
		c.Name = name
	}
	if patch.Icon != nil {
		c.Icon = strings.TrimSpace(*patch.Icon)
		if c.Icon == "" {
			c.Icon = core.DefaultCategoryIcon
		}
	}
	if patch.Goal != nil {
		goal := *patch.Goal
		c.Goal = &goal
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// Delete removes a custom category. Transactions keep their category name.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.store.DeleteCategory(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *CategoryService) ensureNameAvailable(ctx context.Context, userID, name, selfID string) error {
	if core.IsPredefinedCategory(name) {
		return fmt.Errorf("%w: %q is a predefined category", core.ErrConflict, name)
	}
	existing, err := s.store.FindCategoryByName(ctx, userID, name)
	switch {
	case err == nil && existing.ID != selfID:
		return fmt.Errorf("%w: category %q already exists", core.ErrConflict, name)
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return fmt.Errorf("find category: %w", err)
	}
	return nil
}
