package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	txdomain "finsight-backend/internal/transaction/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	active map[string]bool
	err    error
}

func (s *fakeSessions) HasActiveSession(userID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.active[userID], nil
}

func TestSyncOne_RequiresActiveSession(t *testing.T) {
	credRepo := newFakeCredRepo(&txdomain.MailCredential{
		ID: "c1", UserID: "user-1", RefreshToken: "rt",
	})
	mail := newFakeMail()
	engine := newTestEngine(credRepo, newFakeTxRepo(), mail)
	o := NewOrchestrator(credRepo, &fakeSessions{active: map[string]bool{}}, engine)

	result := o.SyncOne(context.Background(), "user-1")

	assert.False(t, result.Success)
	assert.Equal(t, "User not logged in", result.Error)
	assert.Zero(t, atomic.LoadInt32(&mail.refreshCalls), "provider must not be contacted without a session")
}

func TestSyncOne_SessionLookupError(t *testing.T) {
	credRepo := newFakeCredRepo()
	engine := newTestEngine(credRepo, newFakeTxRepo(), newFakeMail())
	o := NewOrchestrator(credRepo, &fakeSessions{err: errors.New("db down")}, engine)

	result := o.SyncOne(context.Background(), "user-1")

	assert.False(t, result.Success)
	assert.Equal(t, "db down", result.Error)
}

func TestSyncOne_RunsWithSession(t *testing.T) {
	credRepo := newFakeCredRepo(&txdomain.MailCredential{
		ID: "c1", UserID: "user-1", RefreshToken: "rt",
	})
	mail := newFakeMail()
	ts := time.Now().UnixMilli()
	mail.addMessage("m1", ts, "INR 99.00 debited at Netflix", bankFrom, "", "")
	mail.pages[""] = listPage{ids: []string{"m1"}}
	engine := newTestEngine(credRepo, newFakeTxRepo(), mail)
	o := NewOrchestrator(credRepo, &fakeSessions{active: map[string]bool{"user-1": true}}, engine)

	result := o.SyncOne(context.Background(), "user-1")

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Added)
}

func TestSyncOne_RejectsOverlappingRun(t *testing.T) {
	credRepo := newFakeCredRepo(&txdomain.MailCredential{
		ID: "c1", UserID: "user-1", RefreshToken: "rt",
	})
	engine := newTestEngine(credRepo, newFakeTxRepo(), newFakeMail())
	o := NewOrchestrator(credRepo, &fakeSessions{active: map[string]bool{"user-1": true}}, engine)

	require.True(t, o.acquire("user-1"))
	defer o.release("user-1")

	result := o.SyncOne(context.Background(), "user-1")

	assert.False(t, result.Success)
	assert.Equal(t, "sync already in progress", result.Error)
}

func TestSyncOne_GuardReleasedAfterRun(t *testing.T) {
	credRepo := newFakeCredRepo(&txdomain.MailCredential{
		ID: "c1", UserID: "user-1", RefreshToken: "rt",
	})
	engine := newTestEngine(credRepo, newFakeTxRepo(), newFakeMail())
	o := NewOrchestrator(credRepo, &fakeSessions{active: map[string]bool{"user-1": true}}, engine)

	first := o.SyncOne(context.Background(), "user-1")
	second := o.SyncOne(context.Background(), "user-1")

	assert.NotEqual(t, "sync already in progress", first.Error)
	assert.NotEqual(t, "sync already in progress", second.Error)
}

func TestSweepAll_SyncsOnlyEligibleUsers(t *testing.T) {
	credRepo := newFakeCredRepo(
		&txdomain.MailCredential{ID: "c1", UserID: "user-1", RefreshToken: "rt"},
		&txdomain.MailCredential{ID: "c2", UserID: "user-2", RefreshToken: "rt"},
		&txdomain.MailCredential{ID: "c3", UserID: "user-3", RefreshToken: ""},
	)
	mail := newFakeMail()
	engine := newTestEngine(credRepo, newFakeTxRepo(), mail)
	sessions := &fakeSessions{active: map[string]bool{"user-1": true, "user-3": true}}
	o := NewOrchestrator(credRepo, sessions, engine)

	// user-2 has no session, user-3 has no refresh token; only user-1 runs.
	o.SweepAll(context.Background())

	assert.Equal(t, int32(1), atomic.LoadInt32(&mail.refreshCalls))
}

func TestSweepAll_UsersSyncIndependently(t *testing.T) {
	credRepo := newFakeCredRepo(
		&txdomain.MailCredential{ID: "c1", UserID: "user-1", RefreshToken: "rt"},
		&txdomain.MailCredential{ID: "c2", UserID: "user-2", RefreshToken: "rt"},
	)
	txRepo := newFakeTxRepo()
	mail := newFakeMail()
	ts := time.Now().UnixMilli()
	mail.addMessage("m1", ts, "INR 99.00 debited at Netflix", bankFrom, "", "")
	mail.pages[""] = listPage{ids: []string{"m1"}}
	engine := newTestEngine(credRepo, txRepo, mail)
	sessions := &fakeSessions{active: map[string]bool{"user-1": true, "user-2": true}}
	o := NewOrchestrator(credRepo, sessions, engine)

	o.SweepAll(context.Background())

	// Each user gets their own copy of the transaction.
	u1, _ := txRepo.FindByUserIDAndMessageID("user-1", "m1")
	u2, _ := txRepo.FindByUserIDAndMessageID("user-2", "m1")
	assert.NotNil(t, u1)
	assert.NotNil(t, u2)
	assert.NotEqual(t, u1.Fingerprint, u2.Fingerprint)
}
