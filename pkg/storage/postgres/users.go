package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

// UserRepository implements auth.UserStore
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts the user and its roles in one transaction
func (r *UserRepository) CreateUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	roles := user.Roles
	if len(roles) == 0 {
		roles = []auth.Role{auth.DinerRole()}
	}

	created := &auth.User{
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Roles:        append([]auth.Role(nil), roles...),
	}

	err := storage.WithTx(ctx, r.db, func(ctx context.Context, tx storage.DBTX) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
			created.Name, created.Email, created.PasswordHash,
		).Scan(&created.ID)
		if err != nil {
			return translateError(err)
		}
		for _, role := range created.Roles {
			if err := insertRole(ctx, tx, created.ID, role); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// GetUserByID loads a user with its roles
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, password_hash FROM users WHERE id = $1`, id)
}

// GetUserByEmail loads a user with its roles. Emails match case-sensitively.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, password_hash FROM users WHERE email = $1`, email)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg interface{}) (*auth.User, error) {
	user := &auth.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	roles, err := r.loadRoles(ctx, []int64{user.ID})
	if err != nil {
		return nil, err
	}
	user.Roles = roles[user.ID]
	return user, nil
}

// UpdateUser changes the non-empty fields of update
func (r *UserRepository) UpdateUser(ctx context.Context, id int64, update auth.UserUpdate) (*auth.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
		    email = COALESCE(NULLIF($3, ''), email),
		    password_hash = COALESCE(NULLIF($4, ''), password_hash)
		WHERE id = $1
		RETURNING id, name, email, password_hash
	`
	user := &auth.User{}
	err := r.db.QueryRowContext(ctx, query, id, update.Name, update.Email, update.PasswordHash).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", translateError(err))
	}

	roles, err := r.loadRoles(ctx, []int64{user.ID})
	if err != nil {
		return nil, err
	}
	user.Roles = roles[user.ID]
	return user, nil
}

// DeleteUser removes the user; role rows cascade
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(result)
}

// ListUsers returns one page of users ordered by id
func (r *UserRepository) ListUsers(ctx context.Context, query auth.ListUsersQuery) ([]*auth.User, bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash
		FROM users
		WHERE name LIKE $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, likePattern(query.NameFilter), query.Limit+1, query.Page*query.Limit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0, query.Limit)
	for rows.Next() {
		user := &auth.User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash); err != nil {
			return nil, false, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate users: %w", err)
	}

	more := len(users) > query.Limit
	if more {
		users = users[:query.Limit]
	}
	if len(users) == 0 {
		return users, false, nil
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	roles, err := r.loadRoles(ctx, ids)
	if err != nil {
		return nil, false, err
	}
	for _, u := range users {
		u.Roles = roles[u.ID]
	}
	return users, more, nil
}

// loadRoles returns the roles of each user in assignment order
func (r *UserRepository) loadRoles(ctx context.Context, userIDs []int64) (map[int64][]auth.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, role, object_id
		FROM user_roles
		WHERE user_id = ANY($1)
		ORDER BY id
	`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	roles := make(map[int64][]auth.Role, len(userIDs))
	for rows.Next() {
		var userID, objectID int64
		var name string
		if err := rows.Scan(&userID, &name, &objectID); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		role, err := auth.ParseRole(name, objectID)
		if err != nil {
			return nil, fmt.Errorf("invalid role for user %d: %w", userID, err)
		}
		roles[userID] = append(roles[userID], role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

func insertRole(ctx context.Context, tx storage.DBTX, userID int64, role auth.Role) error {
	objectID, _ := role.FranchiseID()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role, object_id) VALUES ($1, $2, $3)`,
		userID, role.Name(), objectID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", translateError(err))
	}
	return nil
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
