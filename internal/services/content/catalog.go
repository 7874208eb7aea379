// Package content owns the tone catalog and picks the body of each reminder.
package content

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nudger/internal/apperr"
	"nudger/internal/models"
)

// Catalog is the read/write view over tones, prompts and per-token
// preferences.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog creates a catalog over db.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// Tones lists every tone ordered by id.
func (c *Catalog) Tones(ctx context.Context) ([]models.Tone, error) {
	var tones []models.Tone
	if err := c.db.WithContext(ctx).Order("tone_id").Find(&tones).Error; err != nil {
		return nil, apperr.Storage("list tones", err)
	}
	return tones, nil
}

// Tone loads a tone by id.
func (c *Catalog) Tone(ctx context.Context, toneID uint) (*models.Tone, error) {
	var tone models.Tone
	if err := c.db.WithContext(ctx).First(&tone, "tone_id = ?", toneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("tone", strconv.FormatUint(uint64(toneID), 10))
		}
		return nil, apperr.Storage("load tone", err)
	}
	return &tone, nil
}

// ToneByName loads a tone by its name.
func (c *Catalog) ToneByName(ctx context.Context, name string) (*models.Tone, error) {
	var tone models.Tone
	if err := c.db.WithContext(ctx).First(&tone, "tone_name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("tone", name)
		}
		return nil, apperr.Storage("load tone", err)
	}
	return &tone, nil
}

// Prompts lists the candidate bodies of a tone. An empty result is not an
// error.
func (c *Catalog) Prompts(ctx context.Context, toneID uint) ([]models.TonePrompt, error) {
	var prompts []models.TonePrompt
	if err := c.db.WithContext(ctx).Where("tone_id = ?", toneID).Order("prompt_id").Find(&prompts).Error; err != nil {
		return nil, apperr.Storage("list prompts", err)
	}
	return prompts, nil
}

// Preference loads the stored tone preference of token.
func (c *Catalog) Preference(ctx context.Context, token string) (*models.TokenTonePreference, error) {
	var pref models.TokenTonePreference
	if err := c.db.WithContext(ctx).First(&pref, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("tone preference", token)
		}
		return nil, apperr.Storage("load tone preference", err)
	}
	return &pref, nil
}

// SetPreference upserts the tone preference of token. The tone must exist.
func (c *Catalog) SetPreference(ctx context.Context, token string, toneID uint) (*models.Tone, error) {
	tone, err := c.Tone(ctx, toneID)
	if err != nil {
		return nil, err
	}

	pref := models.TokenTonePreference{Token: token, ToneID: toneID}
	err = c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"tone_id", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return nil, apperr.Storage("save tone preference", err)
	}
	return tone, nil
}

// EffectiveTone returns the tone used for token: its stored preference when
// that still names an existing tone, otherwise the neutral tone.
func (c *Catalog) EffectiveTone(ctx context.Context, token string) (tone *models.Tone, isDefault bool, err error) {
	pref, err := c.Preference(ctx, token)
	switch {
	case err == nil:
		tone, err = c.Tone(ctx, pref.ToneID)
		if err == nil {
			return tone, false, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, false, err
		}
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, false, err
	}

	tone, err = c.ToneByName(ctx, models.ToneNeutral)
	if err != nil {
		return nil, false, err
	}
	return tone, true, nil
}
