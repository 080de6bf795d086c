package repository

import (
	"errors"
	"time"

	txdomain "finsight-backend/internal/transaction/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// credentialRepository implements CredentialRepository interface
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new instance of credentialRepository
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{
		db: db,
	}
}

func (r *credentialRepository) FindByUserID(userID string) (*txdomain.MailCredential, error) {
	var cred txdomain.MailCredential
	err := r.db.Where("user_id = ?", userID).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) FindAll() ([]txdomain.MailCredential, error) {
	var creds []txdomain.MailCredential
	err := r.db.Find(&creds).Error
	return creds, err
}

func (r *credentialRepository) Save(cred *txdomain.MailCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
		cred.CreatedAt = time.Now()
	}
	cred.UpdatedAt = time.Now()
	return r.db.Save(cred).Error
}

func (r *credentialRepository) DeleteByUserID(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&txdomain.MailCredential{}).Error
}
