package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	txdomain "finsight-backend/internal/transaction/domain"
	"finsight-backend/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAI struct {
	resp  string
	err   error
	calls int32
}

func (f *fakeAI) Classify(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.resp, f.err
}

func bankGate() *DomainGate {
	return NewDomainGate([]string{"hdfcbank.net", "icicibank.com"})
}

func TestClassify_DebitPatternMatch(t *testing.T) {
	c := NewClassifier(bankGate(), nil)

	tx, ok := c.Classify(context.Background(), "user-1", "msg-1",
		"alerts@hdfcbank.net",
		"Your A/C debited INR 2,500.00 at Amazon on 2024-07-15",
		"", "")

	require.True(t, ok)
	require.NotNil(t, tx)
	assert.Equal(t, "user-1", tx.UserID)
	assert.Equal(t, "msg-1", tx.MessageID)
	assert.Equal(t, txdomain.TypeDebit, tx.Type)
	assert.Equal(t, 2500.00, tx.Amount)
	assert.Equal(t, "Amazon", tx.Merchant)
	assert.Equal(t, "INR", tx.Currency)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, Fingerprint("user-1", 2500.00, tx.Date, "Amazon"), tx.Fingerprint)
}

func TestClassify_CreditOverridesDebit(t *testing.T) {
	c := NewClassifier(bankGate(), nil)

	tx, ok := c.Classify(context.Background(), "user-1", "msg-2",
		"alerts@hdfcbank.net",
		"Amount of INR 250.00 debited earlier has been refund credited from Flipkart",
		"", "")

	require.True(t, ok)
	assert.Equal(t, txdomain.TypeCredit, tx.Type)
	assert.Equal(t, "Flipkart", tx.Merchant)
	assert.Equal(t, 250.00, tx.Amount)
}

func TestClassify_RejectsBalanceAlert(t *testing.T) {
	c := NewClassifier(bankGate(), nil)

	tx, ok := c.Classify(context.Background(), "user-1", "msg-3",
		"alerts@hdfcbank.net",
		"Your closing balance is INR 50,000",
		"", "")

	assert.False(t, ok)
	assert.Nil(t, tx)
}

func TestClassify_VoucherBlockedDespiteTypeKeyword(t *testing.T) {
	c := NewClassifier(bankGate(), nil)

	// "received" looks like a credit, but voucher content is never a transaction.
	_, ok := c.Classify(context.Background(), "user-1", "msg-4",
		"alerts@hdfcbank.net",
		"You received a gift card voucher of INR 500 at Amazon",
		"", "")

	assert.False(t, ok)
}

func TestClassify_RejectsNonBankSender(t *testing.T) {
	client := &fakeAI{resp: `{"isTransaction":true}`}
	c := NewClassifier(bankGate(), client)

	_, ok := c.Classify(context.Background(), "user-1", "msg-5",
		"deals@amazon.in",
		"INR 2,500.00 debited at Amazon",
		"", "")

	assert.False(t, ok)
	assert.Zero(t, atomic.LoadInt32(&client.calls), "rejected senders must never reach the classification service")
}

func TestClassify_MerchantFallsBackToSenderDomain(t *testing.T) {
	c := NewClassifier(bankGate(), nil)

	tx, ok := c.Classify(context.Background(), "user-1", "msg-6",
		"alerts@hdfcbank.net",
		"Transaction alert: INR 100 spent",
		"", "")

	require.True(t, ok)
	assert.Equal(t, "hdfcbank.net", tx.Merchant)
}

func TestClassify_DateFromHeader(t *testing.T) {
	c := NewClassifier(bankGate(), nil)

	tx, ok := c.Classify(context.Background(), "user-1", "msg-7",
		"alerts@hdfcbank.net",
		"INR 99.00 debited at Netflix",
		"", "Mon, 15 Jul 2024 10:30:00 +0530 (IST)")

	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), tx.Date)
}

func TestClassify_AIVerdictAccepted(t *testing.T) {
	client := &fakeAI{resp: "```json\n{\"isTransaction\":true,\"type\":\"debit\",\"amount\":1200.5,\"merchant\":\"Netflix\",\"date\":\"2024-07-01\",\"method\":\"CREDIT_CARD\"}\n```"}
	c := NewClassifier(bankGate(), client)

	// No amount in the text, so stage 1 cannot accept on its own.
	tx, ok := c.Classify(context.Background(), "user-1", "msg-8",
		"alerts@hdfcbank.net",
		"Payment confirmation for your subscription",
		"Thank you for your payment.", "")

	require.True(t, ok)
	assert.Equal(t, 1200.5, tx.Amount)
	assert.Equal(t, "Netflix", tx.Merchant)
	assert.Equal(t, txdomain.TypeDebit, tx.Type)
	assert.Equal(t, txdomain.MethodCreditCard, tx.Method)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, Fingerprint("user-1", 1200.5, tx.Date, "Netflix"), tx.Fingerprint)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls))
}

func TestClassify_AIVerdictNotTransaction(t *testing.T) {
	client := &fakeAI{resp: `{"isTransaction":false,"type":null,"amount":null,"merchant":null,"date":null,"method":null}`}
	c := NewClassifier(bankGate(), client)

	_, ok := c.Classify(context.Background(), "user-1", "msg-9",
		"alerts@hdfcbank.net",
		"Important update regarding your account",
		"", "")

	assert.False(t, ok)
}

func TestClassify_AIIncompleteVerdictRejected(t *testing.T) {
	client := &fakeAI{resp: `{"isTransaction":true,"amount":500,"merchant":null,"date":"2024-07-01"}`}
	c := NewClassifier(bankGate(), client)

	_, ok := c.Classify(context.Background(), "user-1", "msg-10",
		"alerts@hdfcbank.net",
		"Payment confirmation",
		"", "")

	assert.False(t, ok)
}

func TestClassify_NoAIConfigured(t *testing.T) {
	c := NewClassifier(bankGate(), nil)

	_, ok := c.Classify(context.Background(), "user-1", "msg-11",
		"alerts@hdfcbank.net",
		"Payment confirmation",
		"", "")

	assert.False(t, ok)
}

func TestClassify_RateLimitStartsCooldown(t *testing.T) {
	client := &fakeAI{err: &ai.RateLimitError{RetryAfter: 90 * time.Second}}
	c := NewClassifier(bankGate(), client)

	base := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	_, ok := c.Classify(context.Background(), "user-1", "msg-12",
		"alerts@hdfcbank.net", "Payment confirmation", "", "")
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls))

	// Within the cooldown the service is not contacted again.
	c.now = func() time.Time { return base.Add(60 * time.Second) }
	_, ok = c.Classify(context.Background(), "user-1", "msg-13",
		"alerts@hdfcbank.net", "Payment confirmation", "", "")
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls))

	// After the deadline passes, calls resume.
	c.now = func() time.Time { return base.Add(91 * time.Second) }
	_, _ = c.Classify(context.Background(), "user-1", "msg-14",
		"alerts@hdfcbank.net", "Payment confirmation", "", "")
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))
}

func TestNoteRateLimit_DeadlineOnlyGrows(t *testing.T) {
	c := NewClassifier(bankGate(), &fakeAI{})
	base := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.noteRateLimit(30 * time.Second)
	c.noteRateLimit(90 * time.Second)
	c.noteRateLimit(30 * time.Second)

	assert.Equal(t, base.Add(90*time.Second), c.cooldownUntil)
}

func TestNoteRateLimit_ConcurrentHints(t *testing.T) {
	c := NewClassifier(bankGate(), &fakeAI{})
	base := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	var wg sync.WaitGroup
	for _, d := range []time.Duration{30 * time.Second, 90 * time.Second, 46 * time.Second, 60 * time.Second} {
		wg.Add(1)
		go func(d time.Duration) {
			defer wg.Done()
			c.noteRateLimit(d)
		}(d)
	}
	wg.Wait()

	assert.Equal(t, base.Add(90*time.Second), c.cooldownUntil)
}

func TestDetectMethod(t *testing.T) {
	tests := []struct {
		text string
		want txdomain.PaymentMethod
	}{
		{"paid via UPI to merchant", txdomain.MethodUPI},
		{"PayPal payment completed", txdomain.MethodPayPal},
		{"ATM withdrawal at branch", txdomain.MethodCash},
		{"NEFT transfer processed", txdomain.MethodBankTransfer},
		{"net banking payment", txdomain.MethodNetBanking},
		{"credit card ending 1234", txdomain.MethodCreditCard},
		{"debit card purchase", txdomain.MethodDebitCard},
		{"POS transaction", txdomain.MethodDebitCard},
		{"UPI payment with credit card", txdomain.MethodUPI},
		{"no method here", txdomain.MethodOther},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, detectMethod(tt.text))
		})
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"symbol before", "INR 2,500.00 debited", 2500.00, true},
		{"symbol after", "1,250.50 INR credited", 1250.50, true},
		{"rupee sign", "₹99 spent", 99, true},
		{"rs dot", "Rs. 450 paid", 450, true},
		{"zero rejected", "INR 0 paid", 0, false},
		{"no amount", "payment received", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractAmount(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractMerchant_TrailingClauseStripped(t *testing.T) {
	got := extractMerchant("INR 100 spent at Big Bazaar on 15-07-2024", "alerts@hdfcbank.net")
	assert.Equal(t, "Big Bazaar", got)
}

func TestExtractMerchant_SenderFallbackStripsWWW(t *testing.T) {
	got := extractMerchant("no preposition here", "noreply@www.example.com")
	assert.Equal(t, "example.com", got)
}
