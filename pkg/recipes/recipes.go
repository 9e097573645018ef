// Package recipes is the reference recipe store: finalized candidates are
// written to a recipes table with their ingredient rows.
package recipes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// ErrNotFound is returned by Get for an unknown recipe.
var ErrNotFound = errors.New("recipes: not found")

// Recipe is a finalized recipe.
type Recipe struct {
	ID              string `gorm:"primaryKey;size:36"`
	Title           string `gorm:"size:512;not null"`
	Description     string `gorm:"type:text"`
	Cuisine         string `gorm:"index;size:255"`
	Category        string `gorm:"size:255"`
	Difficulty      int
	PrepTimeMinutes int
	CookTimeMinutes int
	Servings        int
	Instructions    datatypes.JSONSlice[string]
	Tags            datatypes.JSONSlice[string]
	Nutrition       datatypes.JSONType[*core.Nutrition]

	Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name independent of the struct name.
func (Recipe) TableName() string { return "recipes" }

// RecipeIngredient is one ingredient line of a recipe, in source order.
type RecipeIngredient struct {
	ID       uint   `gorm:"primaryKey"`
	RecipeID string `gorm:"index;size:36;not null"`
	Position int
	Name     string `gorm:"size:255;not null"`
	Quantity *float64
	Unit     string `gorm:"size:32"`
	Notes    string `gorm:"size:512"`
}

// TableName pins the table name independent of the struct name.
func (RecipeIngredient) TableName() string { return "recipe_ingredients" }

// Store implements core.RecipeStore on gorm.
type Store struct {
	db *gorm.DB
}

// NewStore creates a recipe store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the recipe tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Recipe{}, &RecipeIngredient{})
}

// Create writes the recipe and its ingredients in one transaction.
func (s *Store) Create(ctx context.Context, c *core.Candidate) (string, error) {
	r := fromCandidate(c)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(r).Error
	})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// Delete removes a recipe and its ingredients. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, recipeID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&RecipeIngredient{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", recipeID).Delete(&Recipe{}).Error
	})
}

// Get loads a recipe with its ingredients in order.
func (s *Store) Get(ctx context.Context, recipeID string) (*Recipe, error) {
	var r Recipe
	err := s.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&r, "id = ?", recipeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Count returns the number of stored recipes.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Recipe{}).Count(&n).Error
	return n, err
}

func fromCandidate(c *core.Candidate) *Recipe {
	r := &Recipe{
		ID:              uuid.New().String(),
		Title:           c.Title,
		Description:     c.Description,
		Cuisine:         c.Cuisine,
		Category:        c.Category,
		Difficulty:      c.Difficulty,
		PrepTimeMinutes: c.PrepTimeMinutes,
		CookTimeMinutes: c.CookTimeMinutes,
		Servings:        c.Servings,
		Instructions:    datatypes.NewJSONSlice(c.Instructions),
		Tags:            datatypes.NewJSONSlice(c.Tags),
		Nutrition:       datatypes.NewJSONType(c.Nutrition),
	}
	for i, ing := range c.Ingredients {
		r.Ingredients = append(r.Ingredients, RecipeIngredient{
			RecipeID: r.ID,
			Position: i,
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Unit:     ing.Unit,
			Notes:    ing.Notes,
		})
	}
	return r
}
