package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends plain-text reset mail through Amazon SES.
type SESNotifier struct {
	client sesAPI
	from   string
	logger *zap.Logger
}

// NewSESNotifier loads AWS credentials from the default chain.
func NewSESNotifier(ctx context.Context, region, from string, logger *zap.Logger) (*SESNotifier, error) {
	if from == "" {
		return nil, errors.New("ses notifier requires a sender address")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newSESNotifier(sesv2.NewFromConfig(cfg), from, logger), nil
}

func newSESNotifier(client sesAPI, from string, logger *zap.Logger) *SESNotifier {
	return &SESNotifier{
		client: client,
		from:   from,
		logger: logger,
	}
}

func (n *SESNotifier) SendReset(ctx context.Context, email, link string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(ResetSubject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(resetBody(link))},
				},
			},
		},
	}

	out, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	n.logger.Debug("Reset email sent",
		zap.String("to", email),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
