package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
)

// MaxTopUp is the largest single wallet top-up.
var MaxTopUp = decimal.NewFromInt(10000)

// AccountService covers organizer KYC, account blocking and the end-user
// wallet.  Registration and login live in the auth handler.
type AccountService struct {
	users  UserStore
	tokens TokenRevoker
	opt    Options
}

func NewAccountService(users UserStore, tokens TokenRevoker, opt Options) *AccountService {
	return &AccountService{users: users, tokens: tokens, opt: opt.withDefaults()}
}

// SubmitKYC records an organizer's verification document and moves the
// account to pending review.
func (s *AccountService) SubmitKYC(ctx context.Context, actor model.Actor, document string) (*model.User, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	if actor.Role != model.RoleOrganizer {
		return nil, fmt.Errorf("%w: only organizers submit KYC", model.ErrForbidden)
	}
	document = strings.TrimSpace(document)
	if document == "" {
		return nil, fmt.Errorf("%w: document is required", model.ErrValidation)
	}
	if err := checkLen("document", document, maxDocumentLen); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !u.KYCStatus.CanTransition(model.KYCPending) {
		return nil, fmt.Errorf("%w: KYC %s -> %s", model.ErrInvalidTransition, u.KYCStatus, model.KYCPending)
	}
	if err := s.users.SetKYC(ctx, u.ID, u.KYCStatus, model.KYCPending, document); err != nil {
		return nil, err
	}
	u.KYCStatus, u.KYCDocument = model.KYCPending, document
	return u, nil
}

// ReviewKYC approves or rejects a pending organizer.  Admin only.
func (s *AccountService) ReviewKYC(ctx context.Context, actor model.Actor, userID uint64, approve bool) (*model.User, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", model.ErrForbidden)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleOrganizer {
		return nil, fmt.Errorf("%w: user %d is not an organizer", model.ErrValidation, userID)
	}
	to := model.KYCRejected
	if approve {
		to = model.KYCApproved
	}
	if !u.KYCStatus.CanTransition(to) {
		return nil, fmt.Errorf("%w: KYC %s -> %s", model.ErrInvalidTransition, u.KYCStatus, to)
	}
	if err := s.users.SetKYC(ctx, u.ID, u.KYCStatus, to, ""); err != nil {
		return nil, err
	}
	u.KYCStatus = to
	s.opt.Logger.Info("kyc reviewed", "user_id", u.ID, "status", to, "admin_id", actor.ID)
	s.opt.Notifier.Dispatch(notify.New(notify.KindGeneric, u.ID, "KYC "+string(to), s.opt.Clock.Now()))
	return u, nil
}

// SetBlocked blocks or unblocks an account.  Blocking ends every session.
func (s *AccountService) SetBlocked(ctx context.Context, actor model.Actor, userID uint64, blocked bool) error {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin only", model.ErrForbidden)
	}
	if actor.ID == userID {
		return fmt.Errorf("%w: admins cannot block themselves", model.ErrValidation)
	}
	if err := s.users.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	if blocked {
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
	}
	s.opt.Logger.Info("account block changed", "user_id", userID, "blocked", blocked, "admin_id", actor.ID)
	return nil
}

// TopUp credits an end user's wallet.  amount must be positive, at most
// MaxTopUp and have no more than two decimal places.
func (s *AccountService) TopUp(ctx context.Context, actor model.Actor, amount decimal.Decimal) (decimal.Decimal, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	if actor.Role != model.RoleUser {
		return decimal.Zero, fmt.Errorf("%w: only end users have a wallet", model.ErrForbidden)
	}
	switch {
	case !amount.IsPositive():
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", model.ErrValidation)
	case amount.GreaterThan(MaxTopUp):
		return decimal.Zero, fmt.Errorf("%w: amount exceeds %s", model.ErrValidation, MaxTopUp)
	case !amount.Equal(amount.Round(2)):
		return decimal.Zero, fmt.Errorf("%w: amount has more than two decimals", model.ErrValidation)
	}
	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if u.Blocked {
		return decimal.Zero, fmt.Errorf("%w: account is blocked", model.ErrForbidden)
	}
	return s.users.TopUp(ctx, u.ID, amount)
}

// Balance returns the wallet balance of a user.
func (s *AccountService) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	ctx, cancel := s.opt.bound(ctx)
	defer cancel()

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.WalletBalance, nil
}
