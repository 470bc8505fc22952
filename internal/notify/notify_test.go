package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type fakeCreator struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestE164(t *testing.T) {
	cases := map[string]string{
		"555-123-4567":    "+15551234567",
		"(555) 123-4567":  "+15551234567",
		"1 555 123 4567":  "+15551234567",
		"+1-555-123-4567": "+15551234567",
	}
	for in, want := range cases {
		got, err := E164(in)
		if err != nil || got != want {
			t.Fatalf("E164(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := E164("12345"); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestTwilioSenderBuildsMessage(t *testing.T) {
	api := &fakeCreator{}
	sender := &TwilioSender{api: api, from: "+15550000000", logger: zap.NewNop()}

	if err := sender.SendSMS(context.Background(), "555-123-4567", "Your vehicle is ready"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("expected one message")
	}
	p := api.params[0]
	if *p.To != "+15551234567" || *p.From != "+15550000000" || *p.Body != "Your vehicle is ready" {
		t.Fatalf("unexpected params to=%s from=%s body=%s", *p.To, *p.From, *p.Body)
	}
}

func TestTwilioSenderRejectsBadPhone(t *testing.T) {
	api := &fakeCreator{}
	sender := &TwilioSender{api: api, logger: zap.NewNop()}
	if err := sender.SendSMS(context.Background(), "n/a", "hi"); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	if len(api.params) != 0 {
		t.Fatalf("expected no API call")
	}
}

type hangingCreator struct {
	release chan struct{}
}

func (h *hangingCreator) CreateMessage(*twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	<-h.release
	return nil, nil
}

func TestTwilioSenderHonorsContext(t *testing.T) {
	api := &hangingCreator{release: make(chan struct{})}
	defer close(api.release)
	sender := &TwilioSender{api: api, from: "+15550000000", logger: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := sender.SendSMS(ctx, "555-123-4567", "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("SendSMS waited %s on a hung provider", elapsed)
	}
}
