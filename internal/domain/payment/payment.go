package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidAmount = errors.New("payment: amount must be zero or greater")
	ErrMissingField  = errors.New("payment: required field missing")
	ErrUnknownRef    = errors.New("payment: unknown transaction reference")
)

const (
	DeclineInvalidCard       = "invalid_card"
	DeclineCardExpired       = "card_expired"
	DeclineCardDeclined      = "card_declined"
	DeclineInsufficientFunds = "insufficient_funds"
	DeclineSimulated         = "payment_declined"
	DeclineProcessorError    = "processor_error"
	DeclineTimeout           = "authorization_timeout"
)

// Details are the card data supplied with a purchase.
type Details struct {
	CardNumber string
	Expiry     string // MM/YY
	CardHolder string
}

// Validate checks that the fields needed to attempt an authorization are present.
// It does not decide whether the card would be accepted.
func (d Details) Validate() error {
	if strings.TrimSpace(d.CardNumber) == "" {
		return fmt.Errorf("%w: card number", ErrMissingField)
	}
	if strings.TrimSpace(d.Expiry) == "" {
		return fmt.Errorf("%w: expiry", ErrMissingField)
	}
	return nil
}

// Digits returns the card number without spaces or dashes.
func (d Details) Digits() string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, d.CardNumber)
}

// LuhnValid reports whether the card number passes the Luhn checksum.
func (d Details) LuhnValid() bool {
	digits := d.Digits()
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// ExpiredAt reports whether the MM/YY expiry lies before now. Unparseable values count as expired.
func (d Details) ExpiredAt(now time.Time) bool {
	parts := strings.Split(strings.TrimSpace(d.Expiry), "/")
	if len(parts) != 2 {
		return true
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return true
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return true
	}
	if year < 100 {
		year += 2000
	}
	// cards are valid through the last day of the expiry month
	firstOfNext := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return !now.Before(firstOfNext)
}

// Result is the outcome of an authorization attempt.
type Result struct {
	Approved       bool
	TransactionRef string
	DeclineReason  string
}

func Approved(ref string) Result { return Result{Approved: true, TransactionRef: ref} }

func Declined(reason string) Result { return Result{DeclineReason: reason} }
