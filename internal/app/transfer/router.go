package transfer

import (
	"context"
	"fmt"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/app/domain/token"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// Dispatcher issues a transfer and returns a receipt that eventually
// resolves to exactly one outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*Receipt, error)
}

// Router dispatches payments to the transfer mechanism matching their
// token class. The class set is closed, so routing is a single exhaustive
// switch; the router itself holds no payment state.
type Router struct {
	native  *NativeLedger
	tokens  *TokenBank
	intents *IntentsHub
	log     *logger.Logger
}

var _ Dispatcher = (*Router)(nil)

// NewRouter creates a router over the three transfer backends.
func NewRouter(native *NativeLedger, tokens *TokenBank, intents *IntentsHub, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewDefault("token-router")
	}
	return &Router{native: native, tokens: tokens, intents: intents, log: log}
}

// Dispatch routes a single transfer. A returned error means the request
// never left the router; per-transfer failures surface on the receipt.
func (r *Router) Dispatch(ctx context.Context, req Request) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	class := token.Parse(req.TokenID)
	switch class.Kind {
	case token.KindNative:
		r.log.Debugf("dispatch native transfer of %s to %s", req.Amount, req.Recipient)
		return r.native.Transfer(req.Recipient, req.Amount), nil
	case token.KindFungible:
		r.log.Debugf("dispatch ft_transfer of %s %s to %s", req.Amount, class.Contract, req.Recipient)
		return r.tokens.Transfer(class.Contract, req.Recipient, req.Amount), nil
	case token.KindBridged:
		r.log.Debugf("dispatch ft_withdraw of %s %s to %s", req.Amount, class.Contract, req.Recipient)
		return r.intents.Withdraw(class.Contract, req.Recipient, req.Amount), nil
	default:
		return nil, fmt.Errorf("unsupported token class %q", class.Kind)
	}
}
