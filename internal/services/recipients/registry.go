// Package recipients keeps the set of device tokens that registered with the
// service.
package recipients

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nudger/internal/apperr"
	"nudger/internal/models"
)

// Registry is the durable recipient registration capability.
type Registry struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewRegistry creates a registry over db.
func NewRegistry(db *gorm.DB, log zerolog.Logger) *Registry {
	return &Registry{db: db, log: log.With().Str("component", "recipients").Logger()}
}

// Register records token. Registering a known token is a no-op; created
// reports whether it was new.
func (r *Registry) Register(ctx context.Context, token string) (created bool, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, apperr.Invalid("token", "token is required")
	}

	rec := models.RegisteredToken{Token: token}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return false, apperr.Storage("register token", res.Error)
	}

	created = res.RowsAffected > 0
	if created {
		r.log.Info().Str("token_prefix", prefix(token)).Msg("Registered token")
	}
	return created, nil
}

// Tokens lists every registered token, oldest first.
func (r *Registry) Tokens(ctx context.Context) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&models.RegisteredToken{}).Order("created_at").Pluck("token", &tokens).Error
	if err != nil {
		return nil, apperr.Storage("list tokens", err)
	}
	return tokens, nil
}

func prefix(token string) string {
	if len(token) > 8 {
		return token[:8] + "..."
	}
	return token
}
