package recipes

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "recipes.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := NewStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func ptr(f float64) *float64 { return &f }

func carbonara() *core.Candidate {
	return &core.Candidate{
		Title:           "Spaghetti Carbonara",
		Cuisine:         "italian",
		Difficulty:      2,
		PrepTimeMinutes: 10,
		CookTimeMinutes: 15,
		Servings:        4,
		Ingredients: []core.Ingredient{
			{Name: "spaghetti", Quantity: ptr(400), Unit: "g"},
			{Name: "guanciale", Quantity: ptr(150), Unit: "g"},
			{Name: "pecorino", Notes: "grated"},
		},
		Instructions: []string{"Boil pasta", "Crisp guanciale", "Toss with eggs"},
		Tags:         []string{"pasta", "roman"},
		Nutrition:    &core.Nutrition{CaloriesPerServing: ptr(650)},
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, carbonara())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	r, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Spaghetti Carbonara", r.Title)
	assert.Equal(t, []string{"Boil pasta", "Crisp guanciale", "Toss with eggs"}, []string(r.Instructions))
	assert.Equal(t, []string{"pasta", "roman"}, []string(r.Tags))
	require.NotNil(t, r.Nutrition.Data())
	assert.Equal(t, 650.0, *r.Nutrition.Data().CaloriesPerServing)

	require.Len(t, r.Ingredients, 3)
	assert.Equal(t, "spaghetti", r.Ingredients[0].Name)
	assert.Equal(t, 400.0, *r.Ingredients[0].Quantity)
	assert.Equal(t, "pecorino", r.Ingredients[2].Name)
	assert.Nil(t, r.Ingredients[2].Quantity)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, carbonara())
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	var orphans int64
	require.NoError(t, s.db.Model(&RecipeIngredient{}).Where("recipe_id = ?", id).Count(&orphans).Error)
	assert.Zero(t, orphans)

	assert.NoError(t, s.Delete(ctx, "unknown"))
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, carbonara())
		require.NoError(t, err)
	}
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
