package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

// Sender delivers one email and reports the provider message ID on success.
// Delivery is at-least-once; callers own any idempotence on top of it.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) (providerMessageID string, err error)
}

// Config selects and configures the delivery provider.
type Config struct {
	Provider        string // "ses" or "noop"
	FromAddress     string
	FromName        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// New creates a Sender from config. Unknown providers fall back to the no-op
// sender so a missing email setup never blocks the service from starting.
func New(cfg Config, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "ses":
		awsCfg := aws.Config{
			Region: cfg.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		}
		return &sesSender{
			client:      ses.NewFromConfig(awsCfg),
			fromAddress: cfg.FromAddress,
			fromName:    cfg.FromName,
			logger:      logger,
		}
	case "noop":
		return &noopSender{logger: logger}
	default:
		logger.Warn("unknown email provider, using noop", zap.String("provider", cfg.Provider))
		return &noopSender{logger: logger}
	}
}

type sesSender struct {
	client      *ses.Client
	fromAddress string
	fromName    string
	logger      *zap.Logger
}

func (s *sesSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) (string, error) {
	source := s.fromAddress
	if s.fromName != "" {
		source = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}
	input := &ses.SendEmailInput{
		Source:      aws.String(source),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body:    &types.Body{},
		},
	}
	if htmlBody != "" {
		input.Message.Body.Html = &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")}
	}
	if textBody != "" {
		input.Message.Body.Text = &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	msgID := aws.ToString(out.MessageId)
	s.logger.Debug("email sent via SES", zap.String("to", to), zap.String("message_id", msgID))
	return msgID, nil
}

type noopSender struct {
	logger *zap.Logger
}

func (n *noopSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) (string, error) {
	n.logger.Info("email send skipped (noop provider)", zap.String("to", to), zap.String("subject", subject))
	return "noop", nil
}
