package usecase

import (
	"context"
	"sync"

	txdomain "finsight-backend/internal/transaction/domain"
	"finsight-backend/internal/transaction/repository"

	log "github.com/sirupsen/logrus"
)

// SessionChecker reports whether a user currently holds an active session.
type SessionChecker interface {
	HasActiveSession(userID string) (bool, error)
}

// Orchestrator decides who is eligible to sync and dispatches runs. It
// guarantees that two runs for the same user never overlap; runs for
// different users proceed concurrently without coordination.
type Orchestrator struct {
	credRepo repository.CredentialRepository
	sessions SessionChecker
	engine   *SyncEngine

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewOrchestrator(credRepo repository.CredentialRepository, sessions SessionChecker, engine *SyncEngine) *Orchestrator {
	return &Orchestrator{
		credRepo: credRepo,
		sessions: sessions,
		engine:   engine,
		inFlight: make(map[string]struct{}),
	}
}

// SyncOne runs an on-demand sync for a single user. The user must hold an
// active session; otherwise the mail provider is never contacted.
func (o *Orchestrator) SyncOne(ctx context.Context, userID string) *txdomain.SyncResult {
	active, err := o.sessions.HasActiveSession(userID)
	if err != nil {
		log.WithField("user_id", userID).WithError(err).Error("Session lookup failed")
		return &txdomain.SyncResult{Error: err.Error()}
	}
	if !active {
		return &txdomain.SyncResult{Error: "User not logged in"}
	}

	if !o.acquire(userID) {
		return &txdomain.SyncResult{Error: "sync already in progress"}
	}
	defer o.release(userID)

	return o.engine.SyncUser(ctx, userID)
}

// SweepAll syncs every user that has both a usable refresh credential and an
// active session. Each dispatch is independent: one user's failure is logged
// and never affects another's run. Invoked from process startup and from the
// periodic scheduler.
func (o *Orchestrator) SweepAll(ctx context.Context) {
	creds, err := o.credRepo.FindAll()
	if err != nil {
		log.WithError(err).Warn("Sync sweep failed to list credentials")
		return
	}

	var wg sync.WaitGroup
	for _, cred := range creds {
		if cred.UserID == "" || cred.RefreshToken == "" {
			continue
		}
		active, err := o.sessions.HasActiveSession(cred.UserID)
		if err != nil {
			log.WithField("user_id", cred.UserID).WithError(err).Warn("Session lookup failed during sweep")
			continue
		}
		if !active {
			continue
		}
		if !o.acquire(cred.UserID) {
			log.WithField("user_id", cred.UserID).Debug("Sync already in progress, skipping sweep dispatch")
			continue
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer o.release(userID)
			result := o.engine.SyncUser(ctx, userID)
			if result.Success {
				log.WithFields(log.Fields{
					"user_id":   userID,
					"processed": result.Processed,
					"added":     result.Added,
					"skipped":   result.Skipped,
				}).Info("Sweep sync completed")
			} else {
				log.WithFields(log.Fields{"user_id": userID, "error": result.Error}).Warn("Sweep sync failed")
			}
		}(cred.UserID)
	}
	wg.Wait()
}

func (o *Orchestrator) acquire(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[userID]; busy {
		return false
	}
	o.inFlight[userID] = struct{}{}
	return true
}

func (o *Orchestrator) release(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, userID)
}
