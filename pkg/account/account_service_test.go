package account

import (
	"Fasting-Tracker/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) PurgeUser(_ context.Context, userID string) error {
	r.calls = append(r.calls, "remote:"+userID)
	return r.err
}

func (r *recorder) Purge(_ context.Context, owner string) error {
	r.calls = append(r.calls, "local:"+owner)
	return r.err
}

func (r *recorder) Release(owner string) {
	r.calls = append(r.calls, "release:"+owner)
}

type outbox struct {
	to, subject, body string
	err               error
}

func (o *outbox) SendMail(to, subject, body string) error {
	o.to, o.subject, o.body = to, subject, body
	return o.err
}

var caller = domain.Identity{ID: "user-1", Email: "u1@example.com"}

func TestDeleteAccount_PurgesEverything(t *testing.T) {
	rec := &recorder{}
	mail := &outbox{}
	svc := NewAccountService(rec, rec, mail, zap.NewNop(), rec, rec).(*accountService)
	fixed := time.Date(2025, 3, 3, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	svc.now = func() time.Time { return fixed }

	res, err := svc.DeleteAccount(context.Background(), caller, domain.DeleteAccountRequest{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, fixed.UTC(), res.DeletedAt)
	assert.Equal(t, time.UTC, res.DeletedAt.Location())
	assert.Equal(t, []string{"remote:user-1", "local:user-1", "release:user-1", "release:user-1"}, rec.calls)

	assert.Equal(t, "u1@example.com", mail.to)
	assert.Contains(t, mail.body, "user-1")
}

func TestDeleteAccount_OnlySelf(t *testing.T) {
	rec := &recorder{}
	svc := NewAccountService(rec, rec, nil, zap.NewNop())

	_, err := svc.DeleteAccount(context.Background(), caller, domain.DeleteAccountRequest{UserID: "user-2"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.DeleteAccount(context.Background(), caller, domain.DeleteAccountRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, rec.calls)
}

func TestDeleteAccount_RemoteFailureStops(t *testing.T) {
	rec := &recorder{err: &domain.ProviderError{Op: "remote purge", Err: errors.New("down")}}
	svc := NewAccountService(rec, rec, nil, zap.NewNop(), rec)

	_, err := svc.DeleteAccount(context.Background(), caller, domain.DeleteAccountRequest{UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, []string{"remote:user-1"}, rec.calls)
}

func TestDeleteAccount_MailFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &recorder{}
	svc := NewAccountService(rec, rec, &outbox{err: errors.New("smtp down")}, zap.New(core))

	_, err := svc.DeleteAccount(context.Background(), caller, domain.DeleteAccountRequest{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("failed to send deletion receipt").Len())
}
