// internal/common/aws/sns.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the part of the SNS client the notifier needs.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (n *ChangeNotifier) publish(ctx context.Context, subject string, a Announcement) error {
	attributes := map[string]types.MessageAttributeValue{}
	// SNS rejects attributes with empty values
	for name, value := range map[string]string{
		"ticketNumber": a.TicketNumber,
		"releaseId":    a.ReleaseID,
		"issueKey":     a.IssueKey,
		"riskLevel":    a.RiskLevel,
	} {
		if value == "" {
			continue
		}
		attributes[name] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}

	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.config.TopicARN),
		Subject:           aws.String(subject),
		Message:           aws.String(a.Body()),
		MessageAttributes: attributes,
	})
	return err
}
