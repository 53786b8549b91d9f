package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, email, password_hash, name, user_type, subscription_type, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	var subscription sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.UserType, &subscription, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.SubscriptionType = nullableString(subscription)
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, user_type, subscription_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.Email, user.PasswordHash, user.Name, user.UserType, user.SubscriptionType,
	)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", classify(err))
	}
	return created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", userID, classify(err))
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email))
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", classify(err))
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, offset, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at ASC, id ASC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

// UpdateUser applies the non-nil fields of update in a single fixed statement.
func (s *PostgresStore) UpdateUser(ctx context.Context, userID string, update UserUpdate) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			name = COALESCE($4, name),
			subscription_type = COALESCE($5, subscription_type),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, update.Email, update.PasswordHash, update.Name, update.SubscriptionType,
	)
	user, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("update user %s: %w", userID, classify(err))
	}
	return user, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return requireAffected(result, "delete user "+userID)
}

const caseSelect = `
	SELECT c.id, c.case_type, c.plaintiff_id, c.defendant_id, c.assigned_attorney_id, c.status,
		COALESCE(p.name, ''), COALESCE(d.name, ''), COALESCE(a.name, ''),
		c.created_at, c.updated_at
	FROM cases c
	LEFT JOIN users p ON c.plaintiff_id = p.id
	LEFT JOIN users d ON c.defendant_id = d.id
	LEFT JOIN users a ON c.assigned_attorney_id = a.id
`

func scanCase(row interface{ Scan(...any) error }) (Case, error) {
	var item Case
	var defendant, attorney sql.NullString
	if err := row.Scan(
		&item.ID, &item.CaseType, &item.PlaintiffID, &defendant, &attorney, &item.Status,
		&item.PlaintiffName, &item.DefendantName, &item.AttorneyName,
		&item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return Case{}, err
	}
	item.DefendantID = nullableString(defendant)
	item.AssignedAttorneyID = nullableString(attorney)
	return item, nil
}

func (s *PostgresStore) CreateCase(ctx context.Context, item Case) (Case, error) {
	status := item.Status
	if status == "" {
		status = CaseStatusInProgress
	}
	var caseID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cases (case_type, plaintiff_id, defendant_id, assigned_attorney_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, item.CaseType, item.PlaintiffID, item.DefendantID, item.AssignedAttorneyID, status).Scan(&caseID)
	if err != nil {
		return Case{}, fmt.Errorf("insert case: %w", classify(err))
	}
	return s.GetCase(ctx, caseID)
}

func (s *PostgresStore) GetCase(ctx context.Context, caseID string) (Case, error) {
	item, err := scanCase(s.db.QueryRowContext(ctx, caseSelect+` WHERE c.id = $1`, caseID))
	if err != nil {
		return Case{}, fmt.Errorf("get case %s: %w", caseID, classify(err))
	}
	return item, nil
}

func (s *PostgresStore) ListCasesByPlaintiff(ctx context.Context, userID string, offset, limit int) ([]Case, error) {
	return s.listCases(ctx, caseSelect+`
		WHERE c.plaintiff_id = $1
		ORDER BY c.created_at DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
}

func (s *PostgresStore) ListCasesByAttorney(ctx context.Context, attorneyID string, offset, limit int) ([]Case, error) {
	return s.listCases(ctx, caseSelect+`
		WHERE c.assigned_attorney_id = $1
		ORDER BY c.created_at DESC
		OFFSET $2 LIMIT $3
	`, attorneyID, offset, limit)
}

func (s *PostgresStore) listCases(ctx context.Context, query string, args ...any) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	items := make([]Case, 0)
	for rows.Next() {
		item, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateCase(ctx context.Context, caseID string, update CaseUpdate) (Case, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cases
		SET case_type = COALESCE($2, case_type),
			defendant_id = COALESCE($3, defendant_id),
			status = COALESCE($4, status),
			updated_at = NOW()
		WHERE id = $1
	`, caseID, update.CaseType, update.DefendantID, update.Status)
	if err != nil {
		return Case{}, fmt.Errorf("update case %s: %w", caseID, classify(err))
	}
	if err := requireAffected(result, "update case "+caseID); err != nil {
		return Case{}, err
	}
	return s.GetCase(ctx, caseID)
}

func (s *PostgresStore) AssignAttorney(ctx context.Context, caseID, attorneyID string) (Case, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cases
		SET assigned_attorney_id = $2,
			status = 'assigned',
			updated_at = NOW()
		WHERE id = $1
	`, caseID, attorneyID)
	if err != nil {
		return Case{}, fmt.Errorf("assign attorney to case %s: %w", caseID, classify(err))
	}
	if err := requireAffected(result, "assign attorney to case "+caseID); err != nil {
		return Case{}, err
	}
	return s.GetCase(ctx, caseID)
}

func (s *PostgresStore) DeleteCase(ctx context.Context, caseID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cases WHERE id=$1`, caseID)
	if err != nil {
		return fmt.Errorf("delete case %s: %w", caseID, err)
	}
	return requireAffected(result, "delete case "+caseID)
}

func requireAffected(result sql.Result, action string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", action, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", action, ErrNotFound)
	}
	return nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
