package domain

import (
	"time"
)

type SyncState string

const (
	SyncStateLocalOnly SyncState = "local_only"
	SyncStateSynced    SyncState = "synced"
	SyncStateFailed    SyncState = "failed"
)

var (
	MessageSuccessHealth        = "ok"
	MessageSuccessDeleteAccount = "account deleted successfully"
	MessageSuccessSync          = "sync completed"

	MessageFailedDeleteAccount = "failed to delete account"
	MessageFailedSync          = "sync failed, local data kept"
	MessageRegisterStub        = "register is not implemented"
	MessageLoginStub           = "login is not implemented"
	MessageLogoutStub          = "logout is not implemented"
)

type (
	DeleteAccountRequest struct {
		UserID string `json:"userId" validate:"required"`
	}

	DeleteAccountResponse struct {
		UserID    string    `json:"userId"`
		DeletedAt time.Time `json:"deletedAt"`
	}

	// SyncResult reports a reconciliation attempt. A failed sync is never fatal.
	SyncResult struct {
		State    SyncState  `json:"state"`
		Sessions int        `json:"sessions"`
		Meals    int        `json:"meals"`
		SyncedAt *time.Time `json:"synced_at,omitempty"`
		Error    string     `json:"error,omitempty"`
	}
)
