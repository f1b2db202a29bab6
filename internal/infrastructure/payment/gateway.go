package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeclineTestCard is always declined, like the test cards real gateways publish.
const DeclineTestCard = "4000000000000002"

type GatewayConfig struct {
	// Latency is how long each authorization takes.
	Latency time.Duration
	// SuccessRate is the chance in [0,1] that an otherwise valid card is approved.
	SuccessRate float64
	// MaxAmount declines larger authorizations with insufficient_funds. Zero disables the limit.
	MaxAmount decimal.Decimal
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Latency:     50 * time.Millisecond,
		SuccessRate: 1,
		MaxAmount:   decimal.NewFromInt(10000),
	}
}

// Gateway simulates a card processor. It is safe for concurrent use.
type Gateway struct {
	cfg GatewayConfig
	now func() time.Time

	mu         sync.Mutex
	random     *rand.Rand
	authorized map[string]authorization
}

type authorization struct {
	customerID string
	amount     decimal.Decimal
	voided     bool
}

var (
	_ dompay.Processor = (*Gateway)(nil)
	_ dompay.Voider    = (*Gateway)(nil)
)

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.SuccessRate < 0 {
		cfg.SuccessRate = 0
	}
	if cfg.SuccessRate > 1 {
		cfg.SuccessRate = 1
	}
	return &Gateway{
		cfg:        cfg,
		now:        time.Now,
		random:     rand.New(rand.NewSource(time.Now().UnixNano())),
		authorized: make(map[string]authorization),
	}
}

func (g *Gateway) Authorize(ctx context.Context, customerID string, amount decimal.Decimal, details dompay.Details) (dompay.Result, error) {
	if strings.TrimSpace(customerID) == "" {
		return dompay.Result{}, fmt.Errorf("%w: customer id", dompay.ErrMissingField)
	}
	if amount.IsNegative() {
		return dompay.Result{}, dompay.ErrInvalidAmount
	}
	if err := details.Validate(); err != nil {
		return dompay.Result{}, err
	}

	if g.cfg.Latency > 0 {
		timer := time.NewTimer(g.cfg.Latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return dompay.Result{}, ctx.Err()
		}
	}

	switch {
	case !details.LuhnValid():
		return dompay.Declined(dompay.DeclineInvalidCard), nil
	case details.ExpiredAt(g.now()):
		return dompay.Declined(dompay.DeclineCardExpired), nil
	case details.Digits() == DeclineTestCard:
		return dompay.Declined(dompay.DeclineCardDeclined), nil
	case g.cfg.MaxAmount.IsPositive() && amount.GreaterThan(g.cfg.MaxAmount):
		return dompay.Declined(dompay.DeclineInsufficientFunds), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.random.Float64() >= g.cfg.SuccessRate {
		return dompay.Declined(dompay.DeclineSimulated), nil
	}
	ref := uuid.NewString()
	g.authorized[ref] = authorization{customerID: customerID, amount: amount}
	return dompay.Approved(ref), nil
}

// Void cancels an authorization. Voiding twice is a no-op.
func (g *Gateway) Void(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.authorized[ref]
	if !ok {
		return fmt.Errorf("%w: %s", dompay.ErrUnknownRef, ref)
	}
	a.voided = true
	g.authorized[ref] = a
	return nil
}

// Voided reports whether ref has been voided.
func (g *Gateway) Voided(ref string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authorized[ref].voided
}
