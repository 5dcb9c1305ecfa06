package parking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash          PaymentMethod = "cash"
	MethodCreditCard    PaymentMethod = "credit_card"
	MethodDebitCard     PaymentMethod = "debit_card"
	MethodDigitalWallet PaymentMethod = "digital_wallet"
	MethodUPI           PaymentMethod = "upi"
)

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// processor holds the fee schedule and accepted range for one method.
// A zero max means no upper limit.
type processor struct {
	prefix  string
	percent decimal.Decimal
	flat    decimal.Decimal
	min     decimal.Decimal
	max     decimal.Decimal
}

var processors = map[PaymentMethod]processor{
	MethodCash: {
		prefix: "CASH",
	},
	MethodCreditCard: {
		prefix:  "CC",
		percent: decimal.RequireFromString("2.5"),
		min:     decimal.NewFromInt(1),
		max:     decimal.NewFromInt(10000),
	},
	MethodDebitCard: {
		prefix:  "DC",
		percent: decimal.NewFromInt(1),
		min:     decimal.NewFromInt(1),
		max:     decimal.NewFromInt(10000),
	},
	MethodDigitalWallet: {
		prefix: "DW",
		flat:   decimal.RequireFromString("0.50"),
		min:    decimal.RequireFromString("0.50"),
		max:    decimal.NewFromInt(5000),
	},
	MethodUPI: {
		prefix: "UPI",
		max:    decimal.NewFromInt(2000),
	},
}

func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{MethodCash, MethodCreditCard, MethodDebitCard, MethodDigitalWallet, MethodUPI}
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := processors[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
	}
	return m, nil
}

// Payment is the outcome of one settlement attempt.
type Payment struct {
	TransactionID string          `json:"transaction_id"`
	TicketNumber  string          `json:"ticket_number"`
	Method        PaymentMethod   `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Total         decimal.Decimal `json:"total"`
	Status        PaymentStatus   `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	ProcessedAt   time.Time       `json:"processed_at"`
}

func (p Payment) Succeeded() bool {
	return p.Status == PaymentCompleted
}

// Fee is what the method adds on top of amount.
func (m PaymentMethod) Fee(amount decimal.Decimal) decimal.Decimal {
	proc, ok := processors[m]
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(proc.percent).Div(decimal.NewFromInt(100)).Add(proc.flat).Round(2)
}

// Settle charges amount for a ticket. Amounts outside the method's range
// yield a failed payment rather than an error.
func Settle(ticketNumber string, method PaymentMethod, amount decimal.Decimal, at time.Time) (Payment, error) {
	proc, ok := processors[method]
	if !ok {
		return Payment{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}

	fee := method.Fee(amount)
	p := Payment{
		TransactionID: transactionID(proc.prefix),
		TicketNumber:  ticketNumber,
		Method:        method,
		Amount:        amount,
		Fee:           fee,
		Total:         amount.Add(fee),
		Status:        PaymentCompleted,
		ProcessedAt:   at,
	}

	switch {
	case amount.IsNegative():
		p.Status, p.Reason = PaymentFailed, "negative amount"
	case !proc.min.IsZero() && amount.LessThan(proc.min):
		p.Status, p.Reason = PaymentFailed, fmt.Sprintf("amount below %s minimum of %s", method, proc.min.StringFixed(2))
	case !proc.max.IsZero() && amount.GreaterThan(proc.max):
		p.Status, p.Reason = PaymentFailed, fmt.Sprintf("amount above %s limit of %s", method, proc.max.StringFixed(2))
	}
	return p, nil
}

func transactionID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + strings.ToUpper(id[:8])
}
