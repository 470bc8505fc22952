// Package notify delivers outbound customer and staff messages.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/shopdesk/jobtickets/internal/config"
	"github.com/shopdesk/jobtickets/internal/domain"
)

// ErrNoRecipient is returned when a message has nowhere to go.
var ErrNoRecipient = errors.New("no recipient")

// SMSSender sends a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Mailer sends an email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// messageCreator is the slice of the Twilio API this package uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through Twilio.
type TwilioSender struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

// NewTwilioSender builds a sender from account credentials.
func NewTwilioSender(cfg config.NotificationConfig, logger *zap.Logger) *TwilioSender {
	base := &twilioClient.Client{Credentials: twilioClient.NewCredentials(cfg.TwilioAccountSID, cfg.TwilioAuthToken)}
	base.SetAccountSid(cfg.TwilioAccountSID)
	base.SetTimeout(cfg.SendTimeout())
	client := twilio.NewRestClientWithParams(twilio.ClientParams{Client: base})
	return &TwilioSender{api: client.Api, from: cfg.TwilioFromNumber, logger: logger}
}

// SendSMS sends body to a US number in any common format. The Twilio client
// takes no context, so the call runs aside and SendSMS returns when ctx ends;
// the HTTP client timeout bounds the abandoned call.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	e164, err := E164(to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(e164)
	params.SetFrom(s.from)
	params.SetBody(body)

	type result struct {
		resp *twilioApi.ApiV2010Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.api.CreateMessage(params)
		done <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("sms send abandoned", zap.String("to", e164), zap.Error(ctx.Err()))
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		if res.resp != nil && res.resp.Sid != nil {
			s.logger.Info("sms sent", zap.String("sid", *res.resp.Sid))
		}
		return nil
	}
}

// E164 converts a 10-digit US phone to +1XXXXXXXXXX.
func E164(phone string) (string, error) {
	digits := domain.NormalizePhone(phone)
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", ErrNoRecipient
	}
	return "+1" + digits, nil
}

// LogSender records messages in the log instead of sending them. It stands
// in for SMS and email when no provider is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	s.logger.Info("sms (not sent)", zap.String("to", to), zap.String("body", body))
	return nil
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	s.logger.Info("email (not sent)", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}
