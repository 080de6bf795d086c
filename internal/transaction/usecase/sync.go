package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	txdomain "finsight-backend/internal/transaction/domain"
	"finsight-backend/internal/transaction/repository"

	log "github.com/sirupsen/logrus"
)

// MailProvider is the mail API surface the sync engine consumes.
type MailProvider interface {
	// RefreshAccessToken exchanges a long-lived refresh credential for a
	// short-lived access token.
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	// ListMessageIDs returns one page of matching message ids. An empty
	// nextPageToken means the listing is exhausted.
	ListMessageIDs(ctx context.Context, accessToken, query, pageToken string) (ids []string, nextPageToken string, err error)
	// GetMessage fetches a message in full form.
	GetMessage(ctx context.Context, accessToken, id string) (*txdomain.MailMessage, error)
	// GetMessageTimestamp fetches only the provider's authoritative receive
	// timestamp (epoch ms) for a message.
	GetMessageTimestamp(ctx context.Context, accessToken, id string) (int64, error)
}

// Subject keywords that flag transaction-like mail, including UPI and other
// digital payment alerts.
const queryKeywords = "subject:(transaction OR payment OR credited OR debited OR alert OR receipt OR invoice OR " +
	"spent OR withdrawn OR transfer OR deposit OR refund OR purchase OR bill OR emi OR " +
	"upi OR imps OR neft OR rtgs OR wallet OR autopay OR cashback OR reward)"

// The provider's date filter is day-granular; back the watermark off by one
// day so boundary messages are listed again rather than missed. Reprocessing
// is cheap because persisted message ids are skipped up front.
const watermarkMargin = 24 * time.Hour

// SyncEngine runs one incremental sync per user: list candidate messages
// since the stored watermark, classify and persist the new ones, then advance
// the watermark. Runs for different users are independent; a run for one user
// processes its messages sequentially.
type SyncEngine struct {
	credRepo   repository.CredentialRepository
	txRepo     repository.TransactionRepository
	classifier *Classifier
	mail       MailProvider
	domains    []string
	window     time.Duration
	now        func() time.Time
}

func NewSyncEngine(credRepo repository.CredentialRepository, txRepo repository.TransactionRepository, classifier *Classifier, mail MailProvider, domains []string, window time.Duration) *SyncEngine {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &SyncEngine{
		credRepo:   credRepo,
		txRepo:     txRepo,
		classifier: classifier,
		mail:       mail,
		domains:    domains,
		window:     window,
		now:        time.Now,
	}
}

// SyncUser executes one full sync run for a user. Only a credential or token
// failure is fatal; every per-message problem is counted as a skip and the
// run carries on. The watermark is untouched unless at least one message was
// processed.
func (e *SyncEngine) SyncUser(ctx context.Context, userID string) *txdomain.SyncResult {
	logger := log.WithField("user_id", userID)
	logger.Info("Starting mail sync")

	cred, err := e.credRepo.FindByUserID(userID)
	if err != nil {
		return &txdomain.SyncResult{Error: "failed to load mail credential: " + err.Error()}
	}
	if cred == nil || cred.RefreshToken == "" {
		logger.Warn("No mail credential for user")
		return &txdomain.SyncResult{Error: "mail account not connected"}
	}

	accessToken, err := e.mail.RefreshAccessToken(ctx, cred.RefreshToken)
	if err != nil {
		logger.WithError(err).Error("Token refresh failed")
		return &txdomain.SyncResult{Error: "token refresh failed: " + err.Error()}
	}

	query := e.buildQuery(cred)
	logger.WithField("query", query).Debug("Mail search query")

	messageIDs, err := e.listAllMessageIDs(ctx, accessToken, query)
	if err != nil {
		logger.WithError(err).Error("Message listing failed")
		return &txdomain.SyncResult{Error: "message listing failed: " + err.Error()}
	}
	logger.WithField("candidates", len(messageIDs)).Info("Found candidate messages")

	result := &txdomain.SyncResult{Success: true}
	var processedIDs []string

	for _, messageID := range messageIDs {
		existing, err := e.txRepo.FindByUserIDAndMessageID(userID, messageID)
		if err == nil && existing != nil {
			// Already persisted in an earlier run; the day-granular filter
			// re-lists boundary messages, so this is expected.
			continue
		}

		result.Processed++
		processedIDs = append(processedIDs, messageID)

		added, detail := e.processMessage(ctx, userID, accessToken, messageID)
		if added {
			result.Added++
		} else {
			result.Skipped++
		}
		result.Details = append(result.Details, detail)
	}

	e.advanceWatermark(ctx, cred, accessToken, processedIDs)

	logger.WithFields(log.Fields{
		"processed": result.Processed,
		"added":     result.Added,
		"skipped":   result.Skipped,
	}).Info("Mail sync completed")
	return result
}

func (e *SyncEngine) buildQuery(cred *txdomain.MailCredential) string {
	var after time.Time
	if cred.LastSyncedAt > 0 {
		after = time.UnixMilli(cred.LastSyncedAt).Add(-watermarkMargin)
	} else {
		// First sync: bound the historical backfill.
		after = e.now().Add(-e.window)
	}
	dateFilter := "after:" + after.Format("2006/01/02")

	domainClause := ""
	if len(e.domains) > 0 {
		domainClause = " from:(" + strings.Join(e.domains, " OR ") + ")"
	}

	return dateFilter + " " + queryKeywords + domainClause
}

func (e *SyncEngine) listAllMessageIDs(ctx context.Context, accessToken, query string) ([]string, error) {
	var all []string
	pageToken := ""
	for {
		ids, next, err := e.mail.ListMessageIDs(ctx, accessToken, query, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
		if next == "" {
			return all, nil
		}
		pageToken = next
	}
}

func (e *SyncEngine) processMessage(ctx context.Context, userID, accessToken, messageID string) (bool, string) {
	logger := log.WithFields(log.Fields{"user_id": userID, "message_id": messageID})

	msg, err := e.mail.GetMessage(ctx, accessToken, messageID)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch message")
		return false, "Error: " + messageID + " - " + err.Error()
	}

	headers := ExtractHeaders(msg)
	body := ExtractBody(msg)

	tx, ok := e.classifier.Classify(ctx, userID, messageID, headers.Sender, headers.Subject, body, headers.DateHeader)
	if !ok {
		return false, "Skipped: " + messageID
	}

	// Prefer the provider's authoritative timestamp over whatever the
	// classifier guessed from headers or body text, and refresh the
	// fingerprint to match.
	if msg.InternalDate > 0 {
		tx.Date = dateOnly(time.UnixMilli(msg.InternalDate))
		tx.Fingerprint = Fingerprint(tx.UserID, tx.Amount, tx.Date, tx.Merchant)
	}

	if err := e.txRepo.Create(tx); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Debug("Duplicate transaction fingerprint")
			return false, "Duplicate: " + messageID
		}
		logger.WithError(err).Warn("Failed to persist transaction")
		return false, "Error: " + messageID + " - " + err.Error()
	}

	logger.WithFields(log.Fields{"amount": tx.Amount, "merchant": tx.Merchant}).Info("Saved transaction")
	return true, "Added: " + messageID
}

// advanceWatermark finds the maximum authoritative timestamp among the
// messages processed in this run and, if it beats the stored watermark, saves
// it. Failures here are logged only; the next run re-derives the watermark.
func (e *SyncEngine) advanceWatermark(ctx context.Context, cred *txdomain.MailCredential, accessToken string, processedIDs []string) {
	if len(processedIDs) == 0 {
		return
	}
	logger := log.WithField("user_id", cred.UserID)

	maxTS := cred.LastSyncedAt
	maxID := cred.LastSyncedMessageID
	for _, id := range processedIDs {
		ts, err := e.mail.GetMessageTimestamp(ctx, accessToken, id)
		if err != nil {
			logger.WithField("message_id", id).WithError(err).Debug("Watermark timestamp lookup failed")
			continue
		}
		if ts > maxTS {
			maxTS = ts
			maxID = id
		}
	}

	if maxTS <= cred.LastSyncedAt {
		return
	}
	cred.LastSyncedAt = maxTS
	cred.LastSyncedMessageID = maxID
	if err := e.credRepo.Save(cred); err != nil {
		logger.WithError(err).Warn("Failed to advance sync watermark")
	}
}
