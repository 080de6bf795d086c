package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	txdomain "finsight-backend/internal/transaction/domain"
	"finsight-backend/pkg/ai"

	log "github.com/sirupsen/logrus"
)

// Stage 1 pattern sets. Debit is checked before credit, so a message matching
// both ends up as credit; this ordering is load-bearing and must not change.
var (
	typeDebit  = regexp.MustCompile(`(?i)\b(debited|spent|withdrawn|deducted|paid|purchase|bill|emi|autopay)\b`)
	typeCredit = regexp.MustCompile(`(?i)\b(credited|received|deposit|refund|cashback|reward)\b`)

	amountPattern   = regexp.MustCompile(`(?i)(INR|Rs\.?|USD|\$|₹)\s*([0-9,]+(?:\.[0-9]{1,2})?)|([0-9,]+(?:\.[0-9]{1,2})?)\s*(INR|Rs\.?|USD|\$|₹)`)
	merchantPattern = regexp.MustCompile(`(?i)(?:\bat\b|\bto\b|\bin\b|\bfrom\b|\bvia\b)\s+([A-Za-z0-9 &._-]{2,60})`)
	datePattern     = regexp.MustCompile(`(?i)\b(\d{1,2}[-/ ](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec|\d{1,2})[-/ ]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})\b`)

	positiveTerms = regexp.MustCompile(`(?i)\b(debited|credited|transaction|txn|payment|purchase|spent|withdrawn|transfer|imps|neft|upi|pos|card|paid|settled|bill|emi|wallet|deposit|refund)\b`)
	negativeTerms = regexp.MustCompile(`(?i)\b(balance|available balance|closing balance|a/c balance|statement|e-statement|voucher|gift\s*card|coupon|promo\s*code|offer\s*code|promo|offer|otp|password|verification|login|security|alert\s*only)\b`)
	promoTerms    = regexp.MustCompile(`(?i)(voucher|gift\s*card|coupon|promo|offer)`)

	trailingPunct  = regexp.MustCompile(`[.,;:]+$`)
	merchantSuffix = regexp.MustCompile(`(?i)\s+on\s+.*$`)
)

// Payment method patterns, checked in priority order.
var (
	upiTerms          = regexp.MustCompile(`(?i)\b(upi|vpa|bhim|gpay|google pay|phonepe|paytm upi)\b`)
	paypalTerms       = regexp.MustCompile(`(?i)\b(paypal)\b`)
	cashTerms         = regexp.MustCompile(`(?i)\b(atm withdrawal|cash withdrawal|cash)\b`)
	bankTransferTerms = regexp.MustCompile(`(?i)\b(neft|imps|rtgs|bank transfer|fund transfer)\b`)
	netBankingTerms   = regexp.MustCompile(`(?i)\b(net banking|internet banking)\b`)
	creditCardTerms   = regexp.MustCompile(`(?i)\b(credit card)\b`)
	debitCardTerms    = regexp.MustCompile(`(?i)\b(debit card)\b`)
	cardTerms         = regexp.MustCompile(`(?i)\b(card|pos|swipe|terminal)\b`)
)

var dateLayouts = []string{
	time.RFC1123Z, // typical email header
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2-Jan-2006",
	"2006-01-02",
	"2/1/2006",
	"2-1-2006",
	"02/01/2006",
}

const cooldownLogInterval = 5 * time.Second

// Classifier decides whether a mail message describes a real transaction and
// extracts its fields. Stage 1 runs a deterministic pattern pipeline; Stage 2
// falls back to the classification service, guarded by a process-wide
// rate-limit cooldown shared by all sync runs through this instance.
type Classifier struct {
	gate *DomainGate
	ai   ai.Classifier // nil when no service is configured

	mu              sync.Mutex
	cooldownUntil   time.Time
	lastCooldownLog time.Time

	now func() time.Time
}

func NewClassifier(gate *DomainGate, aiClient ai.Classifier) *Classifier {
	return &Classifier{
		gate: gate,
		ai:   aiClient,
		now:  time.Now,
	}
}

// Classify evaluates one message. Returns the extracted transaction and true
// on acceptance, or nil and false when the message is not a transaction. It
// never returns an error: every Stage 2 failure is treated as "no transaction".
func (c *Classifier) Classify(ctx context.Context, userID, messageID, sender, subject, body, dateHeader string) (*txdomain.EmailTransaction, bool) {
	if !c.gate.IsEligibleSender(sender) {
		log.WithField("sender", sender).Debug("Rejected sender (not bank)")
		return nil, false
	}
	text := subject + "\n" + body

	txType := ""
	if typeDebit.MatchString(text) {
		txType = txdomain.TypeDebit
	}
	if typeCredit.MatchString(text) {
		txType = txdomain.TypeCredit
	}

	amount, hasAmount := extractAmount(text)
	merchant := extractMerchant(text, sender)
	date := extractDate(text, dateHeader, c.now)
	method := detectMethod(text)

	hasPositive := positiveTerms.MatchString(text)
	hasNegative := negativeTerms.MatchString(text)

	// Hard block known non-transactional content (balance alerts, statements,
	// vouchers, promos) regardless of what else matched.
	if hasNegative && (txType == "" || promoTerms.MatchString(strings.ToLower(text))) {
		log.WithField("subject", subject).Info("Rejected non-transactional content")
		return nil, false
	}

	if hasAmount && merchant != "" && (txType != "" || hasPositive) {
		tx := baseTx(userID, messageID, sender, subject, amount, date, txType, merchant, method)
		tx.Fingerprint = Fingerprint(userID, amount, date, merchant)
		log.WithFields(log.Fields{"amount": amount, "merchant": merchant, "type": tx.Type}).
			Info("Transaction extracted from patterns")
		return tx, true
	}

	return c.classifyWithAI(ctx, userID, messageID, sender, subject, body, dateHeader, txType)
}

func (c *Classifier) classifyWithAI(ctx context.Context, userID, messageID, sender, subject, body, dateHeader, fallbackType string) (*txdomain.EmailTransaction, bool) {
	if c.ai == nil {
		log.WithField("subject", subject).Debug("Classification service not configured, skipping")
		return nil, false
	}
	if c.inCooldown() {
		log.WithField("subject", subject).Debug("Classification service in cooldown, skipping")
		return nil, false
	}

	verdict, err := c.callAI(ctx, subject, body, sender, dateHeader)
	if err != nil {
		var rle *ai.RateLimitError
		if errors.As(err, &rle) {
			c.noteRateLimit(rle.RetryAfter)
		} else {
			log.WithError(err).Warn("Classification fallback failed")
		}
		return nil, false
	}

	if isTx, ok := verdict["isTransaction"].(bool); ok && !isTx {
		log.WithField("subject", subject).Info("Classification service verdict: not a transaction")
		return nil, false
	}

	amount, hasAmount := toFloat(verdict["amount"])
	date, hasDate := parseDate(stringField(verdict, "date"))
	merchant := stringField(verdict, "merchant")
	if !hasAmount || !hasDate || merchant == "" {
		log.WithField("subject", subject).Info("Classification result incomplete, rejecting")
		return nil, false
	}

	txType := stringField(verdict, "type")
	if txType == "" {
		txType = fallbackType
	}
	method := txdomain.ParseMethod(stringField(verdict, "method"))
	if method == "" {
		method = detectMethod(subject + "\n" + body)
	}

	tx := baseTx(userID, messageID, sender, subject, amount, date, txType, merchant, method)
	tx.Fingerprint = Fingerprint(userID, amount, date, merchant)
	log.WithFields(log.Fields{"amount": amount, "merchant": merchant, "type": tx.Type}).
		Info("Transaction extracted via classification service")
	return tx, true
}

func (c *Classifier) callAI(ctx context.Context, subject, body, sender, dateHeader string) (map[string]interface{}, error) {
	prompt := "You are a financial email classifier and parser. Determine if the email describes a real money transaction (card/UPI/NEFT/IMPS/POS/bank credit/debit). " +
		"Ignore balance alerts, statements, OTP, vouchers, coupons, promo/offer codes, rewards, or marketing content. " +
		"Return a JSON: { isTransaction: boolean, type: 'credit'|'debit'|null, amount: number|null, merchant: string|null, date: 'yyyy-MM-dd'|null, method: 'CASH'|'CREDIT_CARD'|'DEBIT_CARD'|'BANK_TRANSFER'|'UPI'|'NET_BANKING'|'PAYPAL'|'OTHER'|null }. " +
		"Subject: '" + subject + "'. Sender: '" + sender + "'. Date header: '" + dateHeader + "'. Body: '" + body + "'. " +
		"If not a transaction, set isTransaction=false and others null. Return minified JSON only."

	raw, err := c.ai.Classify(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Tolerate a surrounding code fence by cutting to the outermost braces.
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start >= 0 && end > start {
			raw = raw[start : end+1]
		}
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("classification result parse failed: %w", err)
	}
	return out, nil
}

func (c *Classifier) inCooldown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.cooldownUntil)
}

// noteRateLimit extends the shared cooldown deadline to now+retryAfter. The
// deadline only ever grows; concurrent shorter hints cannot regress it. The
// start log is throttled to avoid storms under repeated 429s.
func (c *Classifier) noteRateLimit(retryAfter time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if until := now.Add(retryAfter); until.After(c.cooldownUntil) {
		c.cooldownUntil = until
	}
	if now.Sub(c.lastCooldownLog) > cooldownLogInterval {
		c.lastCooldownLog = now
		log.WithField("retry_after", retryAfter).Info("Classification service rate-limited, cooling down")
	}
}

func baseTx(userID, messageID, sender, subject string, amount float64, date time.Time, txType, merchant string, method txdomain.PaymentMethod) *txdomain.EmailTransaction {
	if txType == "" {
		txType = txdomain.TypeDebit
	}
	if method == "" {
		method = txdomain.MethodOther
	}
	return &txdomain.EmailTransaction{
		UserID:      userID,
		MessageID:   messageID,
		SourceEmail: sender,
		Description: subject,
		Merchant:    merchant,
		Amount:      amount,
		Currency:    "INR",
		Date:        date,
		Type:        txType,
		Method:      method,
	}
}

func extractAmount(text string) (float64, bool) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := m[2]
	if raw == "" {
		raw = m[3]
	}
	raw = strings.ReplaceAll(raw, ",", "")
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

func extractMerchant(text, sender string) string {
	if m := merchantPattern.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		name = merchantSuffix.ReplaceAllString(name, "")
		name = trailingPunct.ReplaceAllString(name, "")
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	if at := strings.LastIndex(sender, "@"); at >= 0 && at < len(sender)-1 {
		return strings.TrimPrefix(sender[at+1:], "www.")
	}
	return ""
}

func extractDate(text, header string, now func() time.Time) time.Time {
	if d, ok := parseDate(header); ok {
		return d
	}
	if m := datePattern.FindStringSubmatch(text); m != nil {
		if d, ok := parseDate(m[1]); ok {
			return d
		}
	}
	return dateOnly(now())
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// Headers sometimes carry a trailing zone comment like "(UTC)".
	if i := strings.Index(s, "("); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func detectMethod(text string) txdomain.PaymentMethod {
	t := strings.ToLower(text)
	switch {
	case upiTerms.MatchString(t):
		return txdomain.MethodUPI
	case paypalTerms.MatchString(t):
		return txdomain.MethodPayPal
	case cashTerms.MatchString(t):
		return txdomain.MethodCash
	case bankTransferTerms.MatchString(t):
		return txdomain.MethodBankTransfer
	case netBankingTerms.MatchString(t):
		return txdomain.MethodNetBanking
	case creditCardTerms.MatchString(t):
		return txdomain.MethodCreditCard
	case debitCardTerms.MatchString(t):
		return txdomain.MethodDebitCard
	case cardTerms.MatchString(t):
		// plain card mentions default to card spend
		return txdomain.MethodDebitCard
	}
	return txdomain.MethodOther
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n > 0
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(n, ",", ""), 64)
		return f, err == nil && f > 0
	}
	return 0, false
}
