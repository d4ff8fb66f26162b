package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

type sesClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESConfig configures operator alert emails.
type SESConfig struct {
	Region string
	From   string
	To     []string
}

// SESEmailer emails operator alerts through AWS SES.
type SESEmailer struct {
	client sesClient
	from   string
	to     []string
	logger *zap.Logger
}

func NewSESEmailer(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESEmailer, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return newSESEmailer(ses.NewFromConfig(awsCfg), cfg, logger), nil
}

func newSESEmailer(client sesClient, cfg SESConfig, logger *zap.Logger) *SESEmailer {
	return &SESEmailer{
		client: client,
		from:   cfg.From,
		to:     cfg.To,
		logger: logger,
	}
}

// Alert sends one plain-text email to every configured recipient.
func (s *SESEmailer) Alert(ctx context.Context, subject, body string) error {
	if len(s.to) == 0 {
		return fmt.Errorf("ses alert has no recipients")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: s.to,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	s.logger.Info("operator alert emailed via SES",
		zap.Strings("to", s.to),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}
