package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const oauthColumns = `id, user_id, provider, provider_user_id, provider_data, created_at, updated_at`

func scanOAuthAccount(row interface{ Scan(...any) error }) (OAuthAccount, error) {
	var account OAuthAccount
	var data []byte
	if err := row.Scan(&account.ID, &account.UserID, &account.Provider, &account.ProviderUserID, &data, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return OAuthAccount{}, err
	}
	account.ProviderData = json.RawMessage(data)
	return account, nil
}

func (s *PostgresStore) GetOAuthAccount(ctx context.Context, provider, providerUserID string) (OAuthAccount, error) {
	account, err := scanOAuthAccount(s.db.QueryRowContext(ctx, `
		SELECT `+oauthColumns+`
		FROM oauth_accounts
		WHERE provider = $1 AND provider_user_id = $2
	`, provider, providerUserID))
	if err != nil {
		return OAuthAccount{}, fmt.Errorf("get oauth account %s: %w", provider, classify(err))
	}
	return account, nil
}

func (s *PostgresStore) CreateOAuthAccount(ctx context.Context, account OAuthAccount) (OAuthAccount, error) {
	created, err := scanOAuthAccount(s.db.QueryRowContext(ctx, `
		INSERT INTO oauth_accounts (user_id, provider, provider_user_id, provider_data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING `+oauthColumns,
		account.UserID, account.Provider, account.ProviderUserID, jsonText(account.ProviderData, "{}"),
	))
	if err != nil {
		return OAuthAccount{}, fmt.Errorf("insert oauth account: %w", classify(err))
	}
	return created, nil
}

func (s *PostgresStore) UpdateOAuthProviderData(ctx context.Context, accountID string, data json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE oauth_accounts
		SET provider_data = $2::jsonb,
			updated_at = NOW()
		WHERE id = $1
	`, accountID, jsonText(data, "{}"))
	if err != nil {
		return fmt.Errorf("update oauth account %s: %w", accountID, err)
	}
	return requireAffected(result, "update oauth account "+accountID)
}

const verificationColumns = `id, user_id, license_number, bar_association, COALESCE(law_firm, ''), verification_status,
	verification_date, document_urls, COALESCE(rejection_reason, ''), created_at, updated_at`

func scanVerification(row interface{ Scan(...any) error }) (AttorneyVerification, error) {
	var item AttorneyVerification
	var verifiedAt sql.NullTime
	var urls []byte
	if err := row.Scan(
		&item.ID, &item.UserID, &item.LicenseNumber, &item.BarAssociation, &item.LawFirm, &item.VerificationStatus,
		&verifiedAt, &urls, &item.RejectionReason, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return AttorneyVerification{}, err
	}
	if verifiedAt.Valid {
		at := verifiedAt.Time
		item.VerificationDate = &at
	}
	item.DocumentURLs = []string{}
	if len(urls) > 0 {
		if err := json.Unmarshal(urls, &item.DocumentURLs); err != nil {
			return AttorneyVerification{}, fmt.Errorf("decode document urls: %w", err)
		}
	}
	return item, nil
}

func (s *PostgresStore) CreateAttorneyVerification(ctx context.Context, item AttorneyVerification) (AttorneyVerification, error) {
	urls := item.DocumentURLs
	if urls == nil {
		urls = []string{}
	}
	encoded, err := json.Marshal(urls)
	if err != nil {
		return AttorneyVerification{}, fmt.Errorf("encode document urls: %w", err)
	}
	created, err := scanVerification(s.db.QueryRowContext(ctx, `
		INSERT INTO attorney_verifications (user_id, license_number, bar_association, law_firm, verification_status, document_urls)
		VALUES ($1, $2, $3, NULLIF($4, ''), 'pending', $5::jsonb)
		RETURNING `+verificationColumns,
		item.UserID, item.LicenseNumber, item.BarAssociation, item.LawFirm, string(encoded),
	))
	if err != nil {
		return AttorneyVerification{}, fmt.Errorf("insert attorney verification: %w", classify(err))
	}
	return created, nil
}

func (s *PostgresStore) GetAttorneyVerificationByUser(ctx context.Context, userID string) (AttorneyVerification, error) {
	item, err := scanVerification(s.db.QueryRowContext(ctx, `SELECT `+verificationColumns+` FROM attorney_verifications WHERE user_id = $1`, userID))
	if err != nil {
		return AttorneyVerification{}, fmt.Errorf("get verification for user %s: %w", userID, classify(err))
	}
	return item, nil
}

func (s *PostgresStore) GetAttorneyVerificationByLicense(ctx context.Context, licenseNumber string) (AttorneyVerification, error) {
	item, err := scanVerification(s.db.QueryRowContext(ctx, `SELECT `+verificationColumns+` FROM attorney_verifications WHERE license_number = $1`, licenseNumber))
	if err != nil {
		return AttorneyVerification{}, fmt.Errorf("get verification by license: %w", classify(err))
	}
	return item, nil
}

// UpdateVerificationStatus records an admin decision and stamps verification_date.
func (s *PostgresStore) UpdateVerificationStatus(ctx context.Context, userID, status, rejectionReason string) (AttorneyVerification, error) {
	item, err := scanVerification(s.db.QueryRowContext(ctx, `
		UPDATE attorney_verifications
		SET verification_status = $2,
			verification_date = NOW(),
			rejection_reason = NULLIF($3, ''),
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+verificationColumns,
		userID, status, rejectionReason,
	))
	if err != nil {
		return AttorneyVerification{}, fmt.Errorf("update verification for user %s: %w", userID, classify(err))
	}
	return item, nil
}

func (s *PostgresStore) ListPendingVerifications(ctx context.Context, offset, limit int) ([]AttorneyVerification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+verificationColumns+`
		FROM attorney_verifications
		WHERE verification_status = 'pending'
		ORDER BY created_at ASC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending verifications: %w", err)
	}
	defer rows.Close()

	items := make([]AttorneyVerification, 0)
	for rows.Next() {
		item, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func jsonText(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}
