package user

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

const usersTable = "users"

// UserRow represents the database row for a user
type UserRow struct {
	ID        sql.NullString `db:"id"`
	Name      sql.NullString `db:"name"`
	Email     sql.NullString `db:"email"`
	Role      sql.NullString `db:"role"`
	IsActive  sql.NullBool   `db:"is_active"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

func toUser(row *UserRow) *models.User {
	return &models.User{
		ID:        row.ID.String,
		Name:      row.Name.String,
		Email:     row.Email.String,
		Role:      models.Role(row.Role.String),
		IsActive:  row.IsActive.Bool,
		CreatedAt: row.CreatedAt.Time,
	}
}

var userStruct = database.NewStruct(new(UserRow))

// Repository handles user persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new user repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByID returns the user with the given id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.GetByID")
	defer span.End()

	sb := userStruct.SelectFrom(usersTable)
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()

	var row UserRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", id).Error("Failed to get user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user")
	}
	return toUser(&row), nil
}

// ListPartnerEquivalents returns every active user whose role receives
// escalation alerts.
func (r *Repository) ListPartnerEquivalents(ctx context.Context) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.ListPartnerEquivalents")
	defer span.End()

	sb := userStruct.SelectFrom(usersTable)
	sb.Where(
		sb.Equal("role", string(models.RolePartner)),
		sb.Equal("is_active", true),
	)
	sb.OrderBy("created_at")

	query, args := sb.Build()

	var rows []UserRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list partner-equivalent users")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list partners")
	}

	users := make([]models.User, len(rows))
	for i, row := range rows {
		users[i] = *toUser(&row)
	}
	return users, nil
}
