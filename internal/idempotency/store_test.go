package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws/awstest"
)

const table = "idempotency-table"

func newTestStore() (*Store, *awstest.Dynamo) {
	db := awstest.NewDynamo()
	db.CreateTable(table, "idempotency_key", "")
	return NewStore(db, table, 48*time.Hour), db
}

func rawItem(t *testing.T, db *awstest.Dynamo, key string) map[string]types.AttributeValue {
	t.Helper()
	for _, it := range db.Items(table) {
		if k, ok := it["idempotency_key"].(*types.AttributeValueMemberS); ok && k.Value == key {
			return it
		}
	}
	t.Fatalf("item %s missing", key)
	return nil
}

func TestCreateIfNotExists_Get_MarkDone_MarkFailed(t *testing.T) {
	s, db := newTestStore()
	ctx := context.Background()
	key := PaymentKey("pay_123")

	created, err := s.CreateIfNotExists(ctx, key, "order-123")
	if err != nil {
		t.Fatalf("CreateIfNotExists error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	created2, err := s.CreateIfNotExists(ctx, key, "order-123")
	if err != nil {
		t.Fatalf("second CreateIfNotExists error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate create")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil || rec.Status != StatusInProgress || rec.OrderID != "order-123" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.ExpiresAt <= time.Now().Unix() {
		t.Fatalf("expected TTL in the future, got %d", rec.ExpiresAt)
	}

	if err := s.MarkDone(ctx, key, "confirmed"); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	item := rawItem(t, db, key)
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	if o, ok := item["outcome"].(*types.AttributeValueMemberS); !ok || o.Value != "confirmed" {
		t.Fatalf("outcome not set correctly: %+v", item["outcome"])
	}

	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	item2 := rawItem(t, db, key)
	if st, ok := item2["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusFailed {
		t.Fatalf("status not updated to FAILED, got %+v", item2["status"])
	}
	if n, ok := item2["note"].(*types.AttributeValueMemberS); !ok || n.Value != "failed-reason" {
		t.Fatalf("note not set, got %+v", item2["note"])
	}
}

func TestClaim(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	key := PaymentKey("pay_9")

	if _, done, err := s.Claim(ctx, key, "o1"); err != nil || done {
		t.Fatalf("first claim: done=%v err=%v", done, err)
	}
	if _, _, err := s.Claim(ctx, key, "o1"); !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}

	if err := s.MarkFailed(ctx, key, "gateway timeout"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, done, err := s.Claim(ctx, key, "o1"); err != nil || done {
		t.Fatalf("reclaim after failure: done=%v err=%v", done, err)
	}

	if err := s.MarkDone(ctx, key, "confirmed"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	rec, done, err := s.Claim(ctx, key, "o1")
	if err != nil || !done {
		t.Fatalf("replay: done=%v err=%v", done, err)
	}
	if rec.Outcome != "confirmed" {
		t.Fatalf("outcome = %q", rec.Outcome)
	}
}

func TestCreateIfNotExists_PropagatesErrors(t *testing.T) {
	s, db := newTestStore()
	db.FailNext("PutItem", errors.New("throttled"))
	if _, err := s.CreateIfNotExists(context.Background(), "k", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestOTPDispatchKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.FixedZone("IST", 19800))
	want := "otp-dispatch#a@example.com#2024-05-01T03:30:00Z#b@example.com"
	if got := OTPDispatchKey("a@example.com", at, "b@example.com"); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
