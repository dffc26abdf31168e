package entity

import (
	"errors"
	"strings"
)

// PaymentMethodKind is the payment method recorded on the fulfillment record
type PaymentMethodKind string

const (
	PaymentOnFile      PaymentMethodKind = "payment_on_file"
	PaymentCreditCard  PaymentMethodKind = "credit_card"
	PaymentBankAccount PaymentMethodKind = "bank_account"
)

var (
	ErrNoPaymentSelection = errors.New("select a payment method")
	ErrIncompleteCard     = errors.New("card number, expiry, CVV and cardholder name are required")
	ErrIncompleteBank     = errors.New("account name, sort code and account number are required")
)

// PaymentSelection is exactly one of OnFilePayment, CardPayment or BankPayment.
// The unexported method keeps the set of variants closed.
type PaymentSelection interface {
	Kind() PaymentMethodKind
	Validate() error
	// RequiresProcessing is true when the selection must go through the payment processor
	RequiresProcessing() bool
	isPaymentSelection()
}

// OnFilePayment charges the method already stored against the policy
type OnFilePayment struct{}

func (OnFilePayment) Kind() PaymentMethodKind  { return PaymentOnFile }
func (OnFilePayment) Validate() error          { return nil }
func (OnFilePayment) RequiresProcessing() bool { return false }
func (OnFilePayment) isPaymentSelection()      {}

// CardPayment is an alternate card entered at payment time. Never persisted.
type CardPayment struct {
	Number         string `json:"number" validate:"required"`
	Expiry         string `json:"expiry" validate:"required"`
	CVV            string `json:"cvv" validate:"required"`
	CardholderName string `json:"cardholder_name" validate:"required"`
}

func (CardPayment) Kind() PaymentMethodKind  { return PaymentCreditCard }
func (CardPayment) RequiresProcessing() bool { return true }
func (CardPayment) isPaymentSelection()      {}

func (c CardPayment) Validate() error {
	for _, field := range []string{c.Number, c.Expiry, c.CVV, c.CardholderName} {
		if strings.TrimSpace(field) == "" {
			return ErrIncompleteCard
		}
	}
	return nil
}

// Last4 returns the last four digits of the card number for logging
func (c CardPayment) Last4() string {
	digits := strings.ReplaceAll(c.Number, " ", "")
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// BankPayment is an alternate bank account entered at payment time. Never persisted.
type BankPayment struct {
	AccountName   string `json:"account_name" validate:"required"`
	SortCode      string `json:"sort_code" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
}

func (BankPayment) Kind() PaymentMethodKind  { return PaymentBankAccount }
func (BankPayment) RequiresProcessing() bool { return true }
func (BankPayment) isPaymentSelection()      {}

func (b BankPayment) Validate() error {
	for _, field := range []string{b.AccountName, b.SortCode, b.AccountNumber} {
		if strings.TrimSpace(field) == "" {
			return ErrIncompleteBank
		}
	}
	return nil
}
