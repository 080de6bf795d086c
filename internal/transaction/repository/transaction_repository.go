package repository

import (
	"errors"
	"time"

	txdomain "finsight-backend/internal/transaction/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicate reports an insert that collided with an existing fingerprint.
var ErrDuplicate = errors.New("duplicate transaction")

// transactionRepository implements TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new instance of transactionRepository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{
		db: db,
	}
}

func (r *transactionRepository) Create(tx *txdomain.EmailTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.CreatedAt = time.Now()
	tx.UpdatedAt = time.Now()
	err := r.db.Create(tx).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *transactionRepository) FindByUserID(userID string) ([]txdomain.EmailTransaction, error) {
	var txs []txdomain.EmailTransaction
	err := r.db.Where("user_id = ?", userID).Order("date DESC").Find(&txs).Error
	return txs, err
}

func (r *transactionRepository) FindByUserIDAndMessageID(userID, messageID string) (*txdomain.EmailTransaction, error) {
	var tx txdomain.EmailTransaction
	err := r.db.Where("user_id = ? AND message_id = ?", userID, messageID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}
