package store

import (
	"encoding/json"
	"time"
)

const (
	UserTypeCustomer = "customer"
	UserTypeAttorney = "attorney"
	UserTypeAdmin    = "admin"
)

const (
	CaseStatusInProgress = "in_progress"
	CaseStatusAssigned   = "assigned"
	CaseStatusClosed     = "closed"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Name             string
	UserType         string
	SubscriptionType *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserUpdate carries the mutable user columns. Nil fields keep their stored value.
type UserUpdate struct {
	Email            *string
	PasswordHash     *string
	Name             *string
	SubscriptionType *string
}

func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.PasswordHash == nil && u.Name == nil && u.SubscriptionType == nil
}

type Case struct {
	ID                 string
	CaseType           string
	PlaintiffID        string
	DefendantID        *string
	AssignedAttorneyID *string
	Status             string
	PlaintiffName      string
	DefendantName      string
	AttorneyName       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CaseUpdate carries the mutable case columns. Attorney assignment has its own operation.
type CaseUpdate struct {
	CaseType    *string
	DefendantID *string
	Status      *string
}

func (u CaseUpdate) Empty() bool {
	return u.CaseType == nil && u.DefendantID == nil && u.Status == nil
}

type ChatSession struct {
	ID          string
	UserID      *string
	ContextData json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ChatMessage struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

type Draft struct {
	ID        string
	SessionID string
	Title     string
	Content   string
	UpdatedAt time.Time
}

type DocPrompt struct {
	ID         string
	CaseType   string
	DocType    string
	PromptText string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type DocPromptUpdate struct {
	CaseType   *string
	DocType    *string
	PromptText *string
}

func (u DocPromptUpdate) Empty() bool {
	return u.CaseType == nil && u.DocType == nil && u.PromptText == nil
}

type OAuthAccount struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	ProviderData   json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type AttorneyVerification struct {
	ID                 string
	UserID             string
	LicenseNumber      string
	BarAssociation     string
	LawFirm            string
	VerificationStatus string
	VerificationDate   *time.Time
	DocumentURLs       []string
	RejectionReason    string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
