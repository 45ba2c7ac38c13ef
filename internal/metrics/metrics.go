// Package metrics publishes pipeline counters to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
)

// Metric names.
const (
	OrdersPlaced      = "OrdersPlaced"
	OTPIssued         = "OTPIssued"
	OTPVerified       = "OTPVerified"
	OTPRejected       = "OTPRejected"
	PaymentsConfirmed = "PaymentsConfirmed"
	PaymentsAbandoned = "PaymentsAbandoned"
	PaymentsRejected  = "PaymentsRejected"
)

// Recorder counts pipeline events.
type Recorder interface {
	Count(ctx context.Context, name string, dims map[string]string)
}

// CloudWatch publishes one datapoint per Count call. Failures are logged and
// never returned to the caller.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *slog.Logger
	nowFunc   func() time.Time
}

// NewCloudWatch returns a Recorder writing to namespace.
func NewCloudWatch(client aws.CloudWatchAPI, namespace string, log *slog.Logger) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, log: log, nowFunc: time.Now}
}

func (c *CloudWatch) Count(ctx context.Context, name string, dims map[string]string) {
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Unit:       cwtypes.StandardUnitCount,
		Value:      awsFloat(1),
		Timestamp:  awsTime(c.nowFunc()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: awsString(k), Value: awsString(v)})
	}
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &c.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		c.log.WarnContext(ctx, "put metric data failed", "metric", name, "error", err)
	}
}

// Nop discards every count.
type Nop struct{}

func (Nop) Count(context.Context, string, map[string]string) {}

func awsString(s string) *string     { return &s }
func awsFloat(f float64) *float64    { return &f }
func awsTime(t time.Time) *time.Time { return &t }
