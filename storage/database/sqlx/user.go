package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

const userColumns = "id, name, email, is_active, is_admin, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	IsAdmin      bool      `db:"is_admin"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toModel() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		IsActive:     r.IsActive,
		IsAdmin:      r.IsAdmin,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func lastLogin(t time.Time) null.Time {
	return null.NewTime(t, !t.IsZero())
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int64) error {
	b := psql.Select("COUNT(*)").From("app_user").Where(sq.Eq{"email": email})
	if len(excludedIDs) > 0 {
		b = b.Where(sq.NotEq{"id": excludedIDs})
	}
	var count int
	if err := getBuilt(ctx, repo.db, &count, b); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.GetContext(ctx, &usr.ID, `
		INSERT INTO app_user (name, email, is_active, is_admin, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		usr.Name, usr.Email, usr.IsActive, usr.IsAdmin, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, lastLogin(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, trapErr(err, nil, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	b := psql.Select(userColumns).From("app_user")
	switch {
	case filter.ID != 0:
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		b = b.Where(sq.Eq{"email": filter.Email})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getBuilt(ctx, repo.db, &row, b); err != nil {
		return user.User{}, trapErr(err, user.ErrNotFound, "getting user")
	}
	return row.toModel(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter) ([]user.User, error) {
	b := psql.Select(userColumns).From("app_user").OrderBy("id")
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			b = b.Where(sq.Or{sq.ILike{"name": pattern}, sq.ILike{"email": pattern}})
		}
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if filter.IsAdmin != nil {
			b = b.Where(sq.Eq{"is_admin": *filter.IsAdmin})
		}
	}

	var rows []userRow
	if err := selectBuilt(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	b := psql.Update("app_user").
		Set("name", usr.Name).
		Set("email", usr.Email).
		Set("is_active", usr.IsActive).
		Set("is_admin", usr.IsAdmin).
		Set("updated_at", usr.UpdatedAt).
		Set("last_login", lastLogin(usr.LastLogin)).
		Where(sq.Eq{"id": usr.ID}).
		Suffix("RETURNING created_at")
	if usr.PasswordHash != nil {
		b = b.Set("password_hash", usr.PasswordHash)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building statement")
	}
	if err = repo.db.GetContext(ctx, &usr.CreatedAt, query, args...); err != nil {
		return user.User{}, trapErr(err, user.ErrNotFound, "updating user")
	}
	usr.CreatedAt = usr.CreatedAt.UTC()
	return usr, nil
}
