package main

import (
	"github.com/aws/aws-lambda-go/events"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/otp"
)

// messageType reads the "type" attribute set by the API. Messages without one
// are treated as OTP dispatches.
func messageType(rec events.SQSMessage) string {
	attr, ok := rec.MessageAttributes["type"]
	if !ok || attr.StringValue == nil {
		return otp.MessageTypeDispatch
	}
	return *attr.StringValue
}
