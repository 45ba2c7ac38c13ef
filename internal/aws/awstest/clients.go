package awstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records every SendMessage call.
type SQS struct {
	mu     sync.Mutex
	Inputs []*sqs.SendMessageInput
	Err    error
}

func (s *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Inputs = append(s.Inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

// SES records every SendEmail call.
type SES struct {
	mu     sync.Mutex
	Inputs []*sesv2.SendEmailInput
	Err    error
}

func (s *SES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Inputs = append(s.Inputs, params)
	return &sesv2.SendEmailOutput{}, nil
}

// CloudWatch records every PutMetricData call.
type CloudWatch struct {
	mu     sync.Mutex
	Inputs []*cloudwatch.PutMetricDataInput
	Err    error
}

func (c *CloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Inputs = append(c.Inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}
