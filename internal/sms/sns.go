package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

const ProviderSNS = "sns"

// snsPublisher is the part of *sns.Client used for direct-to-phone SMS.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSConfig configures the AWS SNS gateway.
type SNSConfig struct {
	Region      string
	SenderID    string
	CountryCode string
	Timeout     time.Duration
}

// SNSGateway sends SMS via AWS SNS. It is the fallback provider when the
// clinic does not use Africa's Talking.
type SNSGateway struct {
	client      snsPublisher
	senderID    string
	countryCode string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewSNSGateway creates a gateway using the default AWS credential chain.
func NewSNSGateway(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSGateway, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return newSNSGateway(sns.NewFromConfig(awsCfg), cfg, logger), nil
}

func newSNSGateway(client snsPublisher, cfg SNSConfig, logger *zap.Logger) *SNSGateway {
	if cfg.CountryCode == "" {
		cfg.CountryCode = DefaultCountryCode
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SNSGateway{
		client:      client,
		senderID:    cfg.SenderID,
		countryCode: cfg.CountryCode,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Name implements Gateway.
func (g *SNSGateway) Name() string { return ProviderSNS }

// Send implements Gateway.
func (g *SNSGateway) Send(ctx context.Context, rawPhone, message string) (result SendResult) {
	phone := NormalizePhone(rawPhone, g.countryCode)
	if phone == "" {
		return failure(ProviderSNS, "", "invalid phone number: "+MaskPhone(rawPhone))
	}

	defer func() {
		if r := recover(); r != nil {
			result = failure(ProviderSNS, phone, fmt.Sprint(r))
		}
	}()

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
	if g.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(g.senderID),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.client.Publish(ctx, input)
	if err != nil {
		g.logger.Warn("sns publish failed",
			zap.String("phone", MaskPhone(phone)),
			zap.Error(err),
		)
		result = failure(ProviderSNS, phone, fmt.Sprintf("sns publish failed: %v", err))
		result.Rejected = isRecipientError(err)
		return result
	}

	messageID := aws.ToString(out.MessageId)
	g.logger.Info("sms sent via SNS",
		zap.String("phone", MaskPhone(phone)),
		zap.String("message_id", messageID),
	)

	return SendResult{
		OK:              true,
		Provider:        ProviderSNS,
		MessageID:       messageID,
		NormalizedPhone: phone,
	}
}

// isRecipientError reports whether SNS refused the destination number rather
// than the request as a whole.
func isRecipientError(err error) bool {
	var invalid *types.InvalidParameterException
	return errors.As(err, &invalid) && strings.Contains(invalid.ErrorMessage(), "PhoneNumber")
}
