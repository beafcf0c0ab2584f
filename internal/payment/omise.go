// Package payment executes refunds through Omise.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/rs/zerolog/log"
)

var ErrInvalidRefund = errors.New("invalid refund")

// api is the part of the Omise API the gateway uses.
type api interface {
	createRefund(result *omise.Refund, op *operations.CreateRefund) error
	retrieveCharge(result *omise.Charge, op *operations.RetrieveCharge) error
}

type omiseAPI struct {
	client *omise.Client
}

func (a omiseAPI) createRefund(result *omise.Refund, op *operations.CreateRefund) error {
	return a.client.Do(result, op)
}

func (a omiseAPI) retrieveCharge(result *omise.Charge, op *operations.RetrieveCharge) error {
	return a.client.Do(result, op)
}

// Gateway refunds captured charges. Captures happen in the checkout flow and
// are reported to the scheduling service with the charge id.
type Gateway struct {
	api api
}

func NewGateway(publicKey, secretKey string) (*Gateway, error) {
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}
	client.SetDebug(false)
	return &Gateway{api: omiseAPI{client: client}}, nil
}

// Refund implements scheduling.PaymentGateway.
func (g *Gateway) Refund(ctx context.Context, chargeID string, amount int64) error {
	if chargeID == "" || amount <= 0 {
		return fmt.Errorf("%w: charge %q amount %d", ErrInvalidRefund, chargeID, amount)
	}
	logger := log.Ctx(ctx).With().
		Str("component", "payment").
		Str("charge_id", chargeID).
		Int64("amount", amount).
		Logger()

	refund := &omise.Refund{}
	if err := g.api.createRefund(refund, &operations.CreateRefund{
		ChargeID: chargeID,
		Amount:   amount,
	}); err != nil {
		logger.Error().Err(err).Msg("Omise refund failed")
		return fmt.Errorf("refund charge %s: %w", chargeID, err)
	}
	logger.Info().Str("refund_id", refund.ID).Msg("Refund created")
	return nil
}

// ChargeStatus looks up a charge, for reconciling captures reported by the
// checkout flow.
func (g *Gateway) ChargeStatus(ctx context.Context, chargeID string) (status string, amount int64, err error) {
	charge := &omise.Charge{}
	if err := g.api.retrieveCharge(charge, &operations.RetrieveCharge{ChargeID: chargeID}); err != nil {
		return "", 0, fmt.Errorf("retrieve charge %s: %w", chargeID, err)
	}
	return string(charge.Status), charge.Amount, nil
}
