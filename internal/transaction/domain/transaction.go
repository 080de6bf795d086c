package domain

import "time"

// TransactionType is the direction of money movement.
const (
	TypeCredit = "credit"
	TypeDebit  = "debit"
)

// PaymentMethod is a closed enum of how a transaction was carried out.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodDebitCard    PaymentMethod = "DEBIT_CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodUPI          PaymentMethod = "UPI"
	MethodNetBanking   PaymentMethod = "NET_BANKING"
	MethodPayPal       PaymentMethod = "PAYPAL"
	MethodOther        PaymentMethod = "OTHER"
)

// ParseMethod maps a free-form method string ("net banking", "UPI") onto the
// enum. Returns "" when the value is not a known method.
func ParseMethod(s string) PaymentMethod {
	switch PaymentMethod(normalizeEnum(s)) {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodBankTransfer,
		MethodUPI, MethodNetBanking, MethodPayPal, MethodOther:
		return PaymentMethod(normalizeEnum(s))
	}
	return ""
}

func normalizeEnum(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == ' ':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// EmailTransaction is a financial transaction extracted from a mail message.
// Immutable once persisted; Fingerprint is the idempotency key.
type EmailTransaction struct {
	ID          string        `json:"id" gorm:"primaryKey"`
	UserID      string        `json:"user_id" gorm:"index;not null"`
	Fingerprint string        `json:"-" gorm:"uniqueIndex"`
	MessageID   string        `json:"message_id" gorm:"index:idx_tx_user_message"`
	SourceEmail string        `json:"source_email"`
	Description string        `json:"description"`
	Merchant    string        `json:"merchant"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Date        time.Time     `json:"date"`
	Type        string        `json:"type"`
	Method      PaymentMethod `json:"method"`
	Category    string        `json:"category,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
