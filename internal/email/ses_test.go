package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSESClientSendFrom(t *testing.T) {
	api := &fakeSES{}
	client := &SESClient{api: api, sender: "bookings@example.com"}

	if err := client.Send(context.Background(), " alice@example.com ", "Subject", "Body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "bookings@example.com" {
		t.Fatalf("from = %q", got)
	}
	if to := api.input.Destination.ToAddresses; len(to) != 1 || to[0] != "alice@example.com" {
		t.Fatalf("to = %v", to)
	}
	if got := aws.ToString(api.input.Content.Simple.Body.Text.Data); got != "Body" {
		t.Fatalf("body = %q", got)
	}

	if err := client.SendFrom(context.Background(), "bob@example.com", "S", "B", "desk@example.com"); err != nil {
		t.Fatalf("send from: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "desk@example.com" {
		t.Fatalf("override from = %q", got)
	}
}

func TestSESClientErrors(t *testing.T) {
	client := &SESClient{api: &fakeSES{err: errors.New("throttled")}, sender: "bookings@example.com"}
	if err := client.Send(context.Background(), "alice@example.com", "S", "B"); err == nil {
		t.Fatal("expected SES error to be returned")
	}
	if err := client.Send(context.Background(), "  ", "S", "B"); err == nil {
		t.Fatal("expected error for empty recipient")
	}
	var nilClient *SESClient
	if err := nilClient.Send(context.Background(), "a@example.com", "S", "B"); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestNewSESClientValidation(t *testing.T) {
	if _, err := NewSESClient("", "", "", "bookings@example.com"); err == nil {
		t.Fatal("expected error without region")
	}
	if _, err := NewSESClient("", "", "us-east-1", ""); err == nil {
		t.Fatal("expected error without sender")
	}
	if _, err := NewSESClient("AKIA", "", "us-east-1", "bookings@example.com"); err == nil {
		t.Fatal("expected error for half-set static credentials")
	}
}
