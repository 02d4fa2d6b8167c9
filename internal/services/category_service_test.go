package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

func TestCategoryCreate(t *testing.T) {
	svc := NewCategoryService(memory.New())
	ctx := context.Background()

	c, err := svc.Create(ctx, testUser, CategoryInput{Name: "Pets"})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCategoryIcon, c.Icon)
	assert.Nil(t, c.Goal)

	_, err = svc.Create(ctx, testUser, CategoryInput{Name: "Pets", Icon: "🐶"})
	assert.True(t, errors.Is(err, core.ErrConflict), "duplicate: %v", err)

	_, err = svc.Create(ctx, testUser, CategoryInput{Name: "Food & Dining"})
	assert.True(t, errors.Is(err, core.ErrConflict), "predefined: %v", err)

	_, err = svc.Create(ctx, "another-user", CategoryInput{Name: "Pets"})
	assert.NoError(t, err, "names are unique per user")

	_, err = svc.Create(ctx, testUser, CategoryInput{Name: "   "})
	assert.True(t, errors.Is(err, core.ErrInvalidInput), "blank: %v", err)
}

func TestCategoryList(t *testing.T) {
	svc := NewCategoryService(memory.New())
	ctx := context.Background()
	goal := money(200)
	_, err := svc.Create(ctx, testUser, CategoryInput{Name: "Pets", Icon: "🐶", Goal: &goal})
	require.NoError(t, err)

	listing, err := svc.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, listing.Predefined, 10)
	require.Len(t, listing.Custom, 1)
	assert.Equal(t, int64(20000), listing.Custom[0].Goal.Cents)
	assert.Len(t, listing.All, 11)
	assert.Equal(t, "Food & Dining", listing.All[0])
	assert.Equal(t, "Pets", listing.All[10])
}

func TestCategoryUpdate(t *testing.T) {
	svc := NewCategoryService(memory.New())
	ctx := context.Background()
	pets, err := svc.Create(ctx, testUser, CategoryInput{Name: "Pets"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, testUser, CategoryInput{Name: "Garden"})
	require.NoError(t, err)

	icon := "🐱"
	same := "Pets"
	updated, err := svc.Update(ctx, testUser, pets.ID, CategoryPatch{Name: &same, Icon: &icon})
	require.NoError(t, err)
	assert.Equal(t, "🐱", updated.Icon)

	garden := "Garden"
	_, err = svc.Update(ctx, testUser, pets.ID, CategoryPatch{Name: &garden})
	assert.True(t, errors.Is(err, core.ErrConflict), "rename onto existing: %v", err)

	travel := "Travel"
	_, err = svc.Update(ctx, testUser, pets.ID, CategoryPatch{Name: &travel})
	assert.True(t, errors.Is(err, core.ErrConflict), "rename onto predefined: %v", err)

	_, err = svc.Update(ctx, testUser, "missing", CategoryPatch{Icon: &icon})
	assert.True(t, errors.Is(err, core.ErrNotFound), "missing: %v", err)
}

func TestCategoryDelete(t *testing.T) {
	svc := NewCategoryService(memory.New())
	ctx := context.Background()
	c, err := svc.Create(ctx, testUser, CategoryInput{Name: "Pets"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, testUser, c.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, testUser, c.ID), core.ErrNotFound))
}
