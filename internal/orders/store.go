package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
)

// Secondary index names.
const (
	YearSeqIndex        = "year-seq-index"
	CodeIndex           = "order_code-index"
	GatewayOrderIDIndex = "gateway_order_id-index"
)

var (
	// ErrNotFound is returned when no order matches.
	ErrNotFound = errors.New("order not found")
	// ErrStatusMismatch is returned when a conditional status update fails.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrCodeTaken is returned when another writer reserved the code first.
	ErrCodeTaken = errors.New("order code already reserved")
	// ErrCodeExhausted is returned when every allocation attempt lost the race.
	ErrCodeExhausted = errors.New("could not allocate order code")
)

// Store encapsulates operations on the orders and order-codes tables.
type Store struct {
	client       aws.DynamoDBAPI
	tableName    string
	codesTable   string
	nowFunc      func() time.Time
	// retryBackoff is the base delay between allocation attempts.
	retryBackoff time.Duration
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, codesTable string) *Store {
	return &Store{
		client:       client,
		tableName:    tableName,
		codesTable:   codesTable,
		nowFunc:      func() time.Time { return time.Now().UTC() },
		retryBackoff: 10 * time.Millisecond,
	}
}

// LatestCode returns the highest code reserved in year, or "" if none.
func (s *Store) LatestCode(ctx context.Context, year int) (string, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:                 &s.codesTable,
		IndexName:                 awsString(YearSeqIndex),
		KeyConditionExpression:    awsString("#y = :y"),
		ExpressionAttributeNames:  map[string]string{"#y": "year"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":y": &types.AttributeValueMemberN{Value: strconv.Itoa(year)}},
		ScanIndexForward:          awsBool(false),
		Limit:                     awsInt32(1),
	})
	if err != nil {
		return "", fmt.Errorf("query latest code: %w", err)
	}
	if len(out.Items) == 0 {
		return "", nil
	}
	var r CodeReservation
	if err := attributevalue.UnmarshalMap(out.Items[0], &r); err != nil {
		return "", fmt.Errorf("unmarshal code reservation: %w", err)
	}
	return r.Code, nil
}

// Create atomically reserves o.Code and writes the order. It returns
// ErrCodeTaken when the code is already reserved.
func (s *Store) Create(ctx context.Context, o *Order) error {
	now := s.nowFunc()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if err := o.Validate(); err != nil {
		return fmt.Errorf("validate order: %w", err)
	}

	resMap, err := attributevalue.MarshalMap(CodeReservation{Code: o.Code, Year: o.Year, Seq: o.Seq, OrderID: o.ID})
	if err != nil {
		return fmt.Errorf("marshal code reservation: %w", err)
	}
	orderMap, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           &s.codesTable,
				Item:                resMap,
				ConditionExpression: awsString("attribute_not_exists(order_code)"),
			}},
			{Put: &types.Put{
				TableName:           &s.tableName,
				Item:                orderMap,
				ConditionExpression: awsString("attribute_not_exists(id)"),
			}},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && codeConflict(tce) {
			return ErrCodeTaken
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

func codeConflict(tce *types.TransactionCanceledException) bool {
	if len(tce.CancellationReasons) == 0 {
		return true
	}
	r := tce.CancellationReasons[0]
	return r.Code != nil && *r.Code == "ConditionalCheckFailed"
}

// Insert allocates the next code of the current year and creates the order,
// re-reading the latest code after each lost race. attempts bounds the loop.
// The year-seq index is eventually consistent, so a retry never reuses a
// sequence at or below one that already lost.
func (s *Store) Insert(ctx context.Context, o *Order, prefix string, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.nowFunc()
	}
	year := o.CreatedAt.UTC().Year()
	lastTried := 0
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := s.wait(ctx, i); err != nil {
				return err
			}
		}
		latest, err := s.LatestCode(ctx, year)
		if err != nil {
			return err
		}
		o.Code = NextCode(prefix, latest, o.CreatedAt.UTC())
		_, o.Year, o.Seq, _ = ParseCode(o.Code)
		if o.Seq <= lastTried {
			o.Seq = lastTried + 1
			o.Code = FormatCode(prefix, year, o.Seq)
		}

		err = s.Create(ctx, o)
		if errors.Is(err, ErrCodeTaken) {
			lastTried = o.Seq
			continue
		}
		return err
	}
	return ErrCodeExhausted
}

// wait sleeps before retry n, growing linearly with n.
func (s *Store) wait(ctx context.Context, n int) error {
	if s.retryBackoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(n) * s.retryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get fetches an order by internal id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       idKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetByCode fetches an order by its public code. Returns (nil, nil) if not found.
func (s *Store) GetByCode(ctx context.Context, code string) (*Order, error) {
	return s.queryOne(ctx, CodeIndex, "order_code", code)
}

// GetByGatewayOrderID fetches a upi order by its gateway order id.
// Returns (nil, nil) if not found.
func (s *Store) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error) {
	return s.queryOne(ctx, GatewayOrderIDIndex, "gateway_order_id", gatewayOrderID)
}

// Find resolves ref as an internal id, then a public code, then a gateway
// order id.
func (s *Store) Find(ctx context.Context, ref string) (*Order, error) {
	if ref == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(ref); err == nil {
		o, err := s.Get(ctx, ref)
		if err != nil || o != nil {
			return o, err
		}
	}
	if _, _, _, ok := ParseCode(ref); ok {
		o, err := s.GetByCode(ctx, ref)
		if err != nil || o != nil {
			return o, err
		}
	}
	return s.GetByGatewayOrderID(ctx, ref)
}

func (s *Store) queryOne(ctx context.Context, index, attr, value string) (*Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:                 &s.tableName,
		IndexName:                 &index,
		KeyConditionExpression:    awsString("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     awsInt32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Items[0], &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, id string, expected, newStatus Status) error {
	err := s.update(ctx, id,
		"SET #s = :new, updated_at = :ua",
		"#s = :expected",
		map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(newStatus)},
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		})
	if isConditionalFailure(err) {
		return ErrStatusMismatch
	}
	return err
}

// SetStatus unconditionally sets the status of an existing order.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	err := s.update(ctx, id,
		"SET #s = :new, updated_at = :ua",
		"attribute_exists(id)",
		map[string]types.AttributeValue{":new": &types.AttributeValueMemberS{Value: string(status)}})
	if isConditionalFailure(err) {
		return ErrNotFound
	}
	return err
}

// ConfirmPayment moves a Pending Payment order whose OTP was verified to
// Confirmed and records the gateway payment id.
func (s *Store) ConfirmPayment(ctx context.Context, id, paymentID string) error {
	err := s.update(ctx, id,
		"SET #s = :new, gateway_payment_id = :pid, updated_at = :ua",
		"#s = :expected AND attribute_exists(otp_verified_at)",
		map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(StatusConfirmed)},
			":expected": &types.AttributeValueMemberS{Value: string(StatusPendingPayment)},
			":pid":      &types.AttributeValueMemberS{Value: paymentID},
		})
	if isConditionalFailure(err) {
		return ErrStatusMismatch
	}
	return err
}

// MarkOTPVerified records when the customer verified the order's OTP.
func (s *Store) MarkOTPVerified(ctx context.Context, id string, at time.Time) error {
	av, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal time: %w", err)
	}
	err = s.update(ctx, id,
		"SET otp_verified_at = :at, updated_at = :ua",
		"attribute_exists(id)",
		map[string]types.AttributeValue{":at": av})
	if isConditionalFailure(err) {
		return ErrNotFound
	}
	return err
}

// MarkConfirmationSent claims the right to send the confirmation email.
// It returns false when another call already claimed it.
func (s *Store) MarkConfirmationSent(ctx context.Context, id string, at time.Time) (bool, error) {
	av, err := attributevalue.Marshal(at)
	if err != nil {
		return false, fmt.Errorf("marshal time: %w", err)
	}
	err = s.update(ctx, id,
		"SET confirmation_sent_at = :at, updated_at = :ua",
		"attribute_exists(id) AND attribute_not_exists(confirmation_sent_at)",
		map[string]types.AttributeValue{":at": av})
	if isConditionalFailure(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearConfirmationSent releases a confirmation claim taken at at, so a
// later attempt can send again. Claims taken by others are left alone.
func (s *Store) ClearConfirmationSent(ctx context.Context, id string, at time.Time) error {
	av, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal time: %w", err)
	}
	err = s.update(ctx, id,
		"SET updated_at = :ua REMOVE confirmation_sent_at",
		"confirmation_sent_at = :at",
		map[string]types.AttributeValue{":at": av})
	if isConditionalFailure(err) {
		return nil
	}
	return err
}

func (s *Store) update(ctx context.Context, id, expr, cond string, values map[string]types.AttributeValue) error {
	ua, err := attributevalue.Marshal(s.nowFunc())
	if err != nil {
		return fmt.Errorf("marshal time: %w", err)
	}
	values[":ua"] = ua
	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       idKey(id),
		UpdateExpression:          &expr,
		ConditionExpression:       &cond,
		ExpressionAttributeValues: values,
	}
	if strings.Contains(expr+cond, "#s") {
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// isConditionalFailure detects a failed ConditionExpression either through the
// typed exception or the smithy API error code.
func isConditionalFailure(err error) bool {
	if err == nil {
		return false
	}
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
func awsInt32(n int32) *int32    { return &n }
