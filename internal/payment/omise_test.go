package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

type fakeOmise struct {
	ops []interface{}
	err error
}

func (f *fakeOmise) createRefund(result *omise.Refund, op *operations.CreateRefund) error {
	f.ops = append(f.ops, op)
	if f.err != nil {
		return f.err
	}
	result.ID = "rfnd_test"
	return nil
}

func (f *fakeOmise) retrieveCharge(result *omise.Charge, op *operations.RetrieveCharge) error {
	f.ops = append(f.ops, op)
	if f.err != nil {
		return f.err
	}
	result.Status = "successful"
	result.Amount = 3000
	return nil
}

func TestRefundCreatesOmiseRefund(t *testing.T) {
	fake := &fakeOmise{}
	g := &Gateway{api: fake}

	if err := g.Refund(context.Background(), "chrg_test", 1500); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if len(fake.ops) != 1 {
		t.Fatalf("ops = %d", len(fake.ops))
	}
	op, ok := fake.ops[0].(*operations.CreateRefund)
	if !ok || op.ChargeID != "chrg_test" || op.Amount != 1500 {
		t.Fatalf("op = %#v", fake.ops[0])
	}
}

func TestRefundValidatesInput(t *testing.T) {
	g := &Gateway{api: &fakeOmise{}}
	if err := g.Refund(context.Background(), "", 100); !errors.Is(err, ErrInvalidRefund) {
		t.Fatalf("missing charge err = %v", err)
	}
	if err := g.Refund(context.Background(), "chrg_test", 0); !errors.Is(err, ErrInvalidRefund) {
		t.Fatalf("zero amount err = %v", err)
	}
}

func TestRefundPropagatesGatewayError(t *testing.T) {
	boom := errors.New("gateway down")
	g := &Gateway{api: &fakeOmise{err: boom}}
	if err := g.Refund(context.Background(), "chrg_test", 100); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestChargeStatus(t *testing.T) {
	g := &Gateway{api: &fakeOmise{}}
	status, amount, err := g.ChargeStatus(context.Background(), "chrg_test")
	if err != nil || status != "successful" || amount != 3000 {
		t.Fatalf("status = %q %d %v", status, amount, err)
	}
}
