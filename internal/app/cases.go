package app

import (
	"context"
	"strings"

	"lexdraft/api/internal/rbac"
	"lexdraft/api/internal/store"
)

type CreateCaseInput struct {
	CaseType    string  `json:"caseType" validate:"required,max=100"`
	DefendantID *string `json:"defendantId" validate:"omitempty,uuid"`
}

type UpdateCaseInput struct {
	CaseType    *string `json:"caseType" validate:"omitempty,min=1,max=100"`
	DefendantID *string `json:"defendantId" validate:"omitempty,uuid"`
	Status      *string `json:"status" validate:"omitempty,oneof=in_progress assigned closed"`
}

type AssignAttorneyInput struct {
	AttorneyID string `json:"attorneyId" validate:"omitempty,uuid"`
}

func (s *Service) CreateCase(ctx context.Context, caller Session, input CreateCaseInput) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionFileCase) {
		return nil, forbidden("Only customers can file cases")
	}
	caseType := strings.TrimSpace(input.CaseType)
	if caseType == "" {
		return nil, validation("caseType is required", nil)
	}
	if input.DefendantID != nil {
		if err := s.requireUser(ctx, *input.DefendantID, "Defendant"); err != nil {
			return nil, err
		}
	}
	created, err := s.store.CreateCase(ctx, store.Case{
		CaseType:    caseType,
		PlaintiffID: caller.UserID,
		DefendantID: input.DefendantID,
		Status:      store.CaseStatusInProgress,
	})
	if err != nil {
		return nil, storeError("create case", err, "Case")
	}
	return caseView(created), nil
}

// ListCases returns the caller's cases: assigned ones for attorneys, filed ones otherwise.
func (s *Service) ListCases(ctx context.Context, caller Session, offset, limit int) (map[string]any, error) {
	offset, limit = pageBounds(offset, limit)
	var (
		items []store.Case
		err   error
	)
	if caller.Role == store.UserTypeAttorney {
		items, err = s.store.ListCasesByAttorney(ctx, caller.UserID, offset, limit)
	} else {
		items, err = s.store.ListCasesByPlaintiff(ctx, caller.UserID, offset, limit)
	}
	if err != nil {
		return nil, persistenceError("list cases", err)
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, caseView(item))
	}
	return map[string]any{"cases": views, "offset": offset, "limit": limit}, nil
}

func (s *Service) GetCase(ctx context.Context, caller Session, caseID string) (map[string]any, error) {
	item, err := s.loadCase(ctx, caller, caseID)
	if err != nil {
		return nil, err
	}
	return caseView(item), nil
}

func (s *Service) UpdateCase(ctx context.Context, caller Session, caseID string, input UpdateCaseInput) (map[string]any, error) {
	item, err := s.loadCase(ctx, caller, caseID)
	if err != nil {
		return nil, err
	}
	if item.PlaintiffID != caller.UserID && caller.Role != store.UserTypeAdmin {
		return nil, forbidden("Only the plaintiff can edit this case")
	}
	update := store.CaseUpdate{
		CaseType:    trimmedPtr(input.CaseType),
		DefendantID: input.DefendantID,
		Status:      input.Status,
	}
	if update.Empty() {
		return caseView(item), nil
	}
	if update.DefendantID != nil {
		if err := s.requireUser(ctx, *update.DefendantID, "Defendant"); err != nil {
			return nil, err
		}
	}
	updated, err := s.store.UpdateCase(ctx, caseID, update)
	if err != nil {
		return nil, storeError("update case", err, "Case")
	}
	return caseView(updated), nil
}

func (s *Service) DeleteCase(ctx context.Context, caller Session, caseID string) error {
	item, err := s.loadCase(ctx, caller, caseID)
	if err != nil {
		return err
	}
	if item.PlaintiffID != caller.UserID && caller.Role != store.UserTypeAdmin {
		return forbidden("Only the plaintiff can delete this case")
	}
	return storeError("delete case", s.store.DeleteCase(ctx, caseID), "Case")
}

// AssignAttorney lets an approved attorney take a case, or an admin hand it to one.
func (s *Service) AssignAttorney(ctx context.Context, caller Session, caseID string, input AssignAttorneyInput) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionTakeCase) {
		return nil, forbidden("Only attorneys can take cases")
	}
	attorneyID := strings.TrimSpace(input.AttorneyID)
	if caller.Role != store.UserTypeAdmin {
		if attorneyID != "" && attorneyID != caller.UserID {
			return nil, forbidden("Attorneys can only assign themselves")
		}
		attorneyID = caller.UserID
	}
	if attorneyID == "" {
		return nil, validation("attorneyId is required", nil)
	}

	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return nil, storeError("load case", err, "Case")
	}
	attorney, err := s.store.GetUserByID(ctx, attorneyID)
	if err != nil {
		return nil, storeError("load attorney", err, "Attorney")
	}
	if attorney.UserType != store.UserTypeAttorney {
		return nil, validation("assignee is not an attorney", map[string]any{"attorneyId": attorneyID})
	}
	verification, err := s.store.GetAttorneyVerificationByUser(ctx, attorneyID)
	if err != nil {
		return nil, storeError("load verification", err, "Attorney verification")
	}
	if verification.VerificationStatus != store.VerificationApproved {
		return nil, forbidden("Attorney license is not verified")
	}

	updated, err := s.store.AssignAttorney(ctx, caseID, attorneyID)
	if err != nil {
		return nil, storeError("assign attorney", err, "Case")
	}
	return caseView(updated), nil
}

// loadCase returns the case when caller is one of its parties or an admin.
func (s *Service) loadCase(ctx context.Context, caller Session, caseID string) (store.Case, error) {
	item, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return store.Case{}, storeError("load case", err, "Case")
	}
	if caller.Role == store.UserTypeAdmin ||
		item.PlaintiffID == caller.UserID ||
		derefString(item.DefendantID) == caller.UserID ||
		derefString(item.AssignedAttorneyID) == caller.UserID {
		return item, nil
	}
	return store.Case{}, forbidden("Not a party to this case")
}

func (s *Service) requireUser(ctx context.Context, userID, label string) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return storeError("load user", err, label)
	}
	return nil
}

func caseView(item store.Case) map[string]any {
	return map[string]any{
		"id":                 item.ID,
		"caseType":           item.CaseType,
		"plaintiffId":        item.PlaintiffID,
		"plaintiffName":      item.PlaintiffName,
		"defendantId":        item.DefendantID,
		"defendantName":      item.DefendantName,
		"assignedAttorneyId": item.AssignedAttorneyID,
		"attorneyName":       item.AttorneyName,
		"status":             item.Status,
		"createdAt":          formatTime(item.CreatedAt),
		"updatedAt":          formatTime(item.UpdatedAt),
	}
}
