package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lexdraft/api/internal/authpw"
	"lexdraft/api/internal/identity"
	"lexdraft/api/internal/rbac"
	"lexdraft/api/internal/store"
)

type SignUpInput struct {
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8"`
	Name             string  `json:"name" validate:"required,max=100"`
	UserType         string  `json:"userType" validate:"omitempty,oneof=customer attorney"`
	SubscriptionType *string `json:"subscriptionType" validate:"omitempty,oneof=per_doc subscription"`
}

type SignInInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileInput struct {
	Email            *string `json:"email" validate:"omitempty,email"`
	Password         *string `json:"password" validate:"omitempty,min=8"`
	Name             *string `json:"name" validate:"omitempty,min=1,max=100"`
	SubscriptionType *string `json:"subscriptionType" validate:"omitempty,oneof=per_doc subscription"`
}

type VerificationInput struct {
	LicenseNumber  string   `json:"licenseNumber" validate:"required,max=50"`
	BarAssociation string   `json:"barAssociation" validate:"required,max=100"`
	LawFirm        string   `json:"lawFirm" validate:"omitempty,max=100"`
	DocumentURLs   []string `json:"documentUrls" validate:"omitempty,dive,url"`
}

type VerificationDecisionInput struct {
	Status          string `json:"status" validate:"required,oneof=approved rejected"`
	RejectionReason string `json:"rejectionReason" validate:"required_if=Status rejected"`
}

func (s *Service) SignUp(ctx context.Context, input SignUpInput) (map[string]any, error) {
	user, err := s.accounts.SignUp(ctx, authpw.SignUpRequest{
		Email:            input.Email,
		Password:         input.Password,
		Name:             input.Name,
		UserType:         input.UserType,
		SubscriptionType: input.SubscriptionType,
	})
	if err != nil {
		return nil, accountError(err)
	}
	session, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	payload := sessionPayload(session)
	payload["user"] = userView(user)
	return payload, nil
}

func (s *Service) SignIn(ctx context.Context, input SignInInput) (map[string]any, error) {
	user, err := s.accounts.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		return nil, accountError(err)
	}
	session, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	payload := sessionPayload(session)
	payload["user"] = userView(user)
	return payload, nil
}

// OAuthSignIn verifies token with provider and signs in the linked account, creating
// the user and the link on first sight.
func (s *Service) OAuthSignIn(ctx context.Context, provider, token string) (map[string]any, error) {
	if strings.TrimSpace(token) == "" {
		return nil, validation("accessToken is required", nil)
	}
	result := s.identity.Verify(ctx, provider, token)
	if !result.OK() {
		return nil, identityError(result)
	}

	raw, err := json.Marshal(result.Profile)
	if err != nil {
		return nil, fmt.Errorf("encode provider profile: %w", err)
	}

	user, err := s.linkedUser(ctx, result, raw)
	if err != nil {
		return nil, err
	}
	session, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	payload := sessionPayload(session)
	payload["user"] = userView(user)
	payload["provider"] = result.Provider
	return payload, nil
}

func (s *Service) linkedUser(ctx context.Context, result identity.Result, raw json.RawMessage) (store.User, error) {
	account, err := s.store.GetOAuthAccount(ctx, result.Provider, result.Subject())
	if err == nil {
		if err := s.store.UpdateOAuthProviderData(ctx, account.ID, raw); err != nil {
			zap.S().Warnw("refresh oauth provider data failed", "provider", result.Provider, "error", err)
		}
		user, err := s.store.GetUserByID(ctx, account.UserID)
		if err != nil {
			return store.User{}, storeError("load user", err, "User")
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, persistenceError("load oauth account", err)
	}

	user, err := s.userForProfile(ctx, result)
	if err != nil {
		return store.User{}, err
	}
	if _, err := s.store.CreateOAuthAccount(ctx, store.OAuthAccount{
		UserID:         user.ID,
		Provider:       result.Provider,
		ProviderUserID: result.Subject(),
		ProviderData:   raw,
	}); err != nil {
		return store.User{}, storeError("link oauth account", err, "OAuth account")
	}
	return user, nil
}

// userForProfile reuses the account registered under the provider's email when the provider
// has verified that address. Unverified or missing emails get a provider-scoped placeholder.
func (s *Service) userForProfile(ctx context.Context, result identity.Result) (store.User, error) {
	email := authpw.NormalizeEmail(result.Email())
	if email != "" && result.EmailVerified() {
		user, err := s.store.GetUserByEmail(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return store.User{}, persistenceError("load user", err)
		}
	} else {
		if email != "" {
			zap.S().Infow("oauth email not verified by provider, not linking", "provider", result.Provider)
		}
		email = fmt.Sprintf("%s_%s@oauth.lexdraft.local", result.Provider, result.Subject())
	}

	hash, err := s.accounts.UnusableHash()
	if err != nil {
		return store.User{}, err
	}
	name := strings.TrimSpace(result.Profile.Name(result.Provider))
	if name == "" {
		name = "사용자"
	}
	user, err := s.store.CreateUser(ctx, store.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		UserType:     store.UserTypeCustomer,
	})
	if err != nil {
		return store.User{}, storeError("create user", err, "User")
	}
	return user, nil
}

func (s *Service) Me(ctx context.Context, caller Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return nil, storeError("load user", err, "User")
	}
	return userView(user), nil
}

func (s *Service) UpdateMe(ctx context.Context, caller Session, input UpdateProfileInput) (map[string]any, error) {
	update := store.UserUpdate{
		Name:             trimmedPtr(input.Name),
		SubscriptionType: input.SubscriptionType,
	}
	if input.Email != nil {
		email := authpw.NormalizeEmail(*input.Email)
		update.Email = &email
	}
	if input.Password != nil {
		hash, err := s.accounts.HashPassword(*input.Password)
		if err != nil {
			return nil, accountError(err)
		}
		update.PasswordHash = &hash
	}
	if update.Empty() {
		return s.Me(ctx, caller)
	}
	user, err := s.store.UpdateUser(ctx, caller.UserID, update)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("Email already registered")
		}
		return nil, storeError("update user", err, "User")
	}
	return userView(user), nil
}

func (s *Service) ListUsers(ctx context.Context, caller Session, offset, limit int) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionManageUsers) {
		return nil, forbidden("Admin only")
	}
	offset, limit = pageBounds(offset, limit)
	users, err := s.store.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, persistenceError("list users", err)
	}
	views := make([]map[string]any, 0, len(users))
	for _, user := range users {
		views = append(views, userView(user))
	}
	return map[string]any{"users": views, "offset": offset, "limit": limit}, nil
}

func (s *Service) DeleteUser(ctx context.Context, caller Session, userID string) error {
	if !s.Can(caller.Role, rbac.ActionManageUsers) {
		return forbidden("Admin only")
	}
	if userID == caller.UserID {
		return validation("admins cannot delete their own account", nil)
	}
	return storeError("delete user", s.store.DeleteUser(ctx, userID), "User")
}

// SubmitVerification files the caller's attorney license for admin review.
func (s *Service) SubmitVerification(ctx context.Context, caller Session, input VerificationInput) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionSubmitVerification) {
		return nil, forbidden("Only attorney accounts can submit a license")
	}
	license := strings.TrimSpace(input.LicenseNumber)
	if license == "" {
		return nil, validation("licenseNumber is required", nil)
	}
	if _, err := s.store.GetAttorneyVerificationByLicense(ctx, license); err == nil {
		return nil, conflict("License number already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, persistenceError("load verification", err)
	}
	if _, err := s.store.GetAttorneyVerificationByUser(ctx, caller.UserID); err == nil {
		return nil, conflict("Verification already submitted")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, persistenceError("load verification", err)
	}

	created, err := s.store.CreateAttorneyVerification(ctx, store.AttorneyVerification{
		UserID:         caller.UserID,
		LicenseNumber:  license,
		BarAssociation: strings.TrimSpace(input.BarAssociation),
		LawFirm:        strings.TrimSpace(input.LawFirm),
		DocumentURLs:   input.DocumentURLs,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("License number already registered")
		}
		return nil, storeError("create verification", err, "Verification")
	}

	if s.mailer.IsConfigured() {
		if user, err := s.store.GetUserByID(ctx, caller.UserID); err == nil {
			if err := s.mailer.SendVerificationReceived(user.Email, user.Name, created.LicenseNumber); err != nil {
				zap.S().Warnw("send verification receipt failed", "user_id", caller.UserID, "error", err)
			}
		}
	}
	return verificationView(created), nil
}

// DecideVerification records an admin decision and notifies the attorney by email.
func (s *Service) DecideVerification(ctx context.Context, caller Session, userID string, input VerificationDecisionInput) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionReviewVerification) {
		return nil, forbidden("Admin only")
	}
	status := strings.TrimSpace(input.Status)
	if status != store.VerificationApproved && status != store.VerificationRejected {
		return nil, validation("status must be approved or rejected", nil)
	}
	reason := strings.TrimSpace(input.RejectionReason)
	if status == store.VerificationApproved {
		reason = ""
	}

	updated, err := s.store.UpdateVerificationStatus(ctx, userID, status, reason)
	if err != nil {
		return nil, storeError("update verification", err, "Verification request")
	}

	if s.mailer.IsConfigured() {
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			zap.S().Warnw("load attorney for decision notice failed", "user_id", userID, "error", err)
		} else if err := s.mailer.SendVerificationDecision(user.Email, user.Name, status == store.VerificationApproved, reason); err != nil {
			zap.S().Warnw("send verification decision failed", "user_id", userID, "error", err)
		}
	}
	return verificationView(updated), nil
}

func (s *Service) PendingVerifications(ctx context.Context, caller Session, offset, limit int) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionReviewVerification) {
		return nil, forbidden("Admin only")
	}
	offset, limit = pageBounds(offset, limit)
	items, err := s.store.ListPendingVerifications(ctx, offset, limit)
	if err != nil {
		return nil, persistenceError("list pending verifications", err)
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, verificationView(item))
	}
	return map[string]any{"verifications": views, "offset": offset, "limit": limit}, nil
}

func accountError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrMissingFields),
		errors.Is(err, authpw.ErrWeakPassword),
		errors.Is(err, authpw.ErrInvalidUserType):
		return validation(err.Error(), nil)
	case errors.Is(err, authpw.ErrEmailTaken):
		return conflict("Email already registered")
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return unauthorized("Invalid email or password")
	default:
		return persistenceError("account lookup", err)
	}
}

func identityError(result identity.Result) error {
	details := map[string]any{"provider": result.Provider, "reason": string(result.Failure)}
	switch result.Failure {
	case identity.FailureUnsupportedProvider:
		return domainError(http.StatusBadRequest, "UNSUPPORTED_PROVIDER", "Unsupported OAuth provider", details)
	case identity.FailureTransport:
		e := upstreamFailure("Identity provider unreachable", errors.New(result.Detail))
		e.Details = details
		return e
	default:
		return domainError(http.StatusUnauthorized, "INVALID_ACCESS_TOKEN", "Invalid access token", details)
	}
}

func userView(user store.User) map[string]any {
	return map[string]any{
		"id":               user.ID,
		"email":            user.Email,
		"name":             user.Name,
		"userType":         user.UserType,
		"subscriptionType": user.SubscriptionType,
		"createdAt":        formatTime(user.CreatedAt),
		"updatedAt":        formatTime(user.UpdatedAt),
	}
}

func verificationView(item store.AttorneyVerification) map[string]any {
	var decidedAt string
	if item.VerificationDate != nil {
		decidedAt = formatTime(*item.VerificationDate)
	}
	urls := item.DocumentURLs
	if urls == nil {
		urls = []string{}
	}
	return map[string]any{
		"id":                 item.ID,
		"userId":             item.UserID,
		"licenseNumber":      item.LicenseNumber,
		"barAssociation":     item.BarAssociation,
		"lawFirm":            item.LawFirm,
		"verificationStatus": item.VerificationStatus,
		"verificationDate":   decidedAt,
		"documentUrls":       urls,
		"rejectionReason":    item.RejectionReason,
		"createdAt":          formatTime(item.CreatedAt),
		"updatedAt":          formatTime(item.UpdatedAt),
	}
}
