// Package mail sends transactional email for the order pipeline.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
)

// Message is one rendered email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message to one recipient.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// SESSender sends mail through SES v2.
type SESSender struct {
	client aws.SESAPI
	from   string
}

// NewSESSender returns a Sender using from as the source address.
func NewSESSender(client aws.SESAPI, from string) *SESSender {
	return &SESSender{client: client, from: from}
}

func (s *SESSender) Send(ctx context.Context, to string, msg Message) error {
	if to == "" {
		return errors.New("mail: empty recipient")
	}
	body := &sestypes.Body{
		Text: &sestypes.Content{Data: &msg.Text, Charset: awsString("UTF-8")},
	}
	if msg.HTML != "" {
		body.Html = &sestypes.Content{Data: &msg.HTML, Charset: awsString("UTF-8")}
	}
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &s.from,
		Destination:      &sestypes.Destination{ToAddresses: []string{to}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: &msg.Subject, Charset: awsString("UTF-8")},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
