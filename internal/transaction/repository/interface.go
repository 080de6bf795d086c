package repository

import (
	txdomain "finsight-backend/internal/transaction/domain"
)

// TransactionRepository persists extracted transactions. Create must surface a
// duplicate fingerprint as ErrDuplicate so callers can count it as a skip.
type TransactionRepository interface {
	Create(tx *txdomain.EmailTransaction) error
	FindByUserID(userID string) ([]txdomain.EmailTransaction, error)
	FindByUserIDAndMessageID(userID, messageID string) (*txdomain.EmailTransaction, error)
}

// CredentialRepository stores per-user mail credentials and watermarks.
type CredentialRepository interface {
	FindByUserID(userID string) (*txdomain.MailCredential, error)
	FindAll() ([]txdomain.MailCredential, error)
	Save(cred *txdomain.MailCredential) error
	DeleteByUserID(userID string) error
}
