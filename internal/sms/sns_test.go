package sms

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
	hang  bool
}

func (f *fakeSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-msg-1")}, nil
}

func TestSNSGateway_Send(t *testing.T) {
	fake := &fakeSNS{}
	gw := newSNSGateway(fake, SNSConfig{SenderID: "CLINIQUE"}, zap.NewNop())

	result := gw.Send(context.Background(), "0812345678", "Bonjour")

	assert.True(t, result.OK)
	assert.Equal(t, ProviderSNS, result.Provider)
	assert.Equal(t, "sns-msg-1", result.MessageID)
	assert.Equal(t, "+243812345678", aws.ToString(fake.input.PhoneNumber))
	assert.Equal(t, "CLINIQUE", aws.ToString(fake.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestSNSGateway_Failures(t *testing.T) {
	fake := &fakeSNS{err: errors.New("throttled")}
	gw := newSNSGateway(fake, SNSConfig{}, zap.NewNop())

	result := gw.Send(context.Background(), "0812345678", "Bonjour")
	assert.False(t, result.OK)
	assert.Equal(t, "sns publish failed: throttled", result.Error)
	assert.Equal(t, "+243812345678", result.NormalizedPhone)

	fake.input = nil
	result = gw.Send(context.Background(), "", "Bonjour")
	assert.False(t, result.OK)
	assert.Equal(t, "invalid phone number: ***", result.Error)
	assert.Nil(t, fake.input)
}

func TestSNSGateway_Timeout(t *testing.T) {
	fake := &fakeSNS{hang: true}
	gw := newSNSGateway(fake, SNSConfig{Timeout: 50 * time.Millisecond}, zap.NewNop())

	done := make(chan SendResult, 1)
	go func() { done <- gw.Send(context.Background(), "0812345678", "Bonjour") }()

	select {
	case result := <-done:
		assert.False(t, result.OK)
		assert.Contains(t, result.Error, "sns publish failed")
		assert.Contains(t, result.Error, context.DeadlineExceeded.Error())
		assert.False(t, result.Rejected)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not respect the configured timeout")
	}
}

func TestSNSGateway_DefaultTimeout(t *testing.T) {
	gw := newSNSGateway(&fakeSNS{}, SNSConfig{}, zap.NewNop())
	assert.Equal(t, 30*time.Second, gw.timeout)
}

func TestSNSGateway_RecipientRejection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		rejected bool
	}{
		{"bad destination", &types.InvalidParameterException{Message: aws.String("Invalid parameter: PhoneNumber Reason: +243812345678 is not valid to publish to")}, true},
		{"wrapped bad destination", fmt.Errorf("operation error SNS: Publish: %w", &types.InvalidParameterException{Message: aws.String("Invalid parameter: PhoneNumber")}), true},
		{"bad sender attribute", &types.InvalidParameterException{Message: aws.String("Invalid parameter: MessageAttributes")}, false},
		{"throttled", &types.ThrottledException{Message: aws.String("Rate exceeded")}, false},
		{"network", errors.New("dial tcp: i/o timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newSNSGateway(&fakeSNS{err: tt.err}, SNSConfig{}, zap.NewNop())
			result := gw.Send(context.Background(), "0812345678", "Bonjour")
			require.False(t, result.OK)
			assert.Equal(t, tt.rejected, result.Rejected)
		})
	}
}
