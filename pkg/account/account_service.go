package account

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/utils/mailing"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type (
	AccountService interface {
		DeleteAccount(ctx context.Context, identity domain.Identity, req domain.DeleteAccountRequest) (domain.DeleteAccountResponse, error)
	}

	RemotePurger interface {
		PurgeUser(ctx context.Context, userID string) error
	}

	LocalPurger interface {
		Purge(ctx context.Context, owner string) error
	}

	// Releaser drops an owner's in-memory state.
	Releaser interface {
		Release(owner string)
	}

	accountService struct {
		remote    RemotePurger
		local     LocalPurger
		releasers []Releaser
		mailer    mailing.Mailer
		logger    *zap.Logger
		now       func() time.Time
	}
)

// NewAccountService builds the deletion flow. mailer may be nil.
func NewAccountService(remote RemotePurger, local LocalPurger, mailer mailing.Mailer, logger *zap.Logger, releasers ...Releaser) AccountService {
	return &accountService{
		remote:    remote,
		local:     local,
		releasers: releasers,
		mailer:    mailer,
		logger:    logger.Named("account"),
		now:       time.Now,
	}
}

// DeleteAccount removes the caller's remote rows, local snapshots and
// in-memory stores. Only the caller's own account may be deleted.
func (s *accountService) DeleteAccount(ctx context.Context, identity domain.Identity, req domain.DeleteAccountRequest) (domain.DeleteAccountResponse, error) {
	if req.UserID == "" {
		return domain.DeleteAccountResponse{}, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if req.UserID != identity.ID {
		return domain.DeleteAccountResponse{}, domain.ErrForbidden
	}

	if err := s.remote.PurgeUser(ctx, req.UserID); err != nil {
		return domain.DeleteAccountResponse{}, err
	}
	if err := s.local.Purge(ctx, req.UserID); err != nil {
		return domain.DeleteAccountResponse{}, err
	}
	for _, r := range s.releasers {
		r.Release(req.UserID)
	}

	deletedAt := s.now().UTC()
	s.logger.Info("account deleted", zap.String("user_id", req.UserID))

	if s.mailer != nil && identity.Email != "" {
		subject, body := mailing.DeletionReceipt(req.UserID, deletedAt)
		if err := s.mailer.SendMail(identity.Email, subject, body); err != nil {
			s.logger.Warn("failed to send deletion receipt", zap.String("user_id", req.UserID), zap.Error(err))
		}
	}

	return domain.DeleteAccountResponse{UserID: req.UserID, DeletedAt: deletedAt}, nil
}
