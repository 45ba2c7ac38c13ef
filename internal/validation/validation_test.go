package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/money"
)

func validCustomer() Customer {
	return Customer{
		Name:    "Asha",
		Email:   "asha@example.com",
		Phone:   "9876543210",
		Address: "1 Hive Rd",
		City:    "Kochi",
		State:   "Kerala",
		Pincode: "682001",
	}
}

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()

	req := CreateOrderRequest{
		Items: []Item{
			{ProductID: "sku-1", Quantity: 2, Price: 10.0},
			{ProductID: "sku-2", Quantity: 1, Price: 5.5},
		},
		Customer:      validCustomer(),
		PaymentMethod: "upi",
		Subtotal:      25.5, // 2*10 + 1*5.5 = 25.5
		ShippingFee:   40,
		Discount:      5.5,
		Total:         60,
	}

	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_SubtotalDefaultsToItems(t *testing.T) {
	v := New()
	req := CreateOrderRequest{
		Items:         []Item{{ProductID: "sku-1", Quantity: 1, Price: 500}},
		Customer:      validCustomer(),
		PaymentMethod: "COD",
		Total:         500,
	}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_TotalsRoundLikeGateway(t *testing.T) {
	v := New()
	req := CreateOrderRequest{
		Items:         []Item{{ProductID: "sku-1", Quantity: 1, Price: 1.005}},
		Customer:      validCustomer(),
		PaymentMethod: "upi",
		Total:         1.01,
	}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	charged, err := money.ToMinor(req.Total)
	if err != nil || charged != 101 {
		t.Fatalf("charged = %d, %v; want 101", charged, err)
	}

	req.Total = 1.00
	if err := v.Struct(req); err == nil {
		t.Fatal("expected total below the charged amount to be rejected")
	}
}

func TestCreateOrderRequest_Invalid(t *testing.T) {
	base := func() CreateOrderRequest {
		return CreateOrderRequest{
			Items:         []Item{{ProductID: "sku-1", Quantity: 1, Price: 10.0}},
			Customer:      validCustomer(),
			PaymentMethod: "cod",
			Total:         10,
		}
	}

	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{"total_mismatch", func(r *CreateOrderRequest) { r.Total = 9.99 }},
		{"subtotal_mismatch", func(r *CreateOrderRequest) { r.Subtotal = 12 }},
		{"no_items", func(r *CreateOrderRequest) { r.Items = nil }},
		{"zero_quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{"bad_email", func(r *CreateOrderRequest) { r.Customer.Email = "not-an-email" }},
		{"missing_name", func(r *CreateOrderRequest) { r.Customer.Name = "" }},
		{"bad_pincode", func(r *CreateOrderRequest) { r.Customer.Pincode = "12" }},
		{"bad_method", func(r *CreateOrderRequest) { r.PaymentMethod = "card" }},
		{"bad_account_email", func(r *CreateOrderRequest) { r.AccountEmail = "x" }},
	}

	v := New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(&req)
			if err := v.Struct(req); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestStatusUpdateRequest(t *testing.T) {
	v := New()
	if err := v.Struct(StatusUpdateRequest{OrderID: "HP-2024-001", Status: "Confirmed"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := v.Struct(StatusUpdateRequest{OrderID: "HP-2024-001", Status: "Shipped"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestBindAndValidate_Messages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := New()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"email":`, "invalid request body"},
		{"missing", `{}`, "email is required"},
		{"bad_email", `{"email":"nope"}`, "email must be a valid email address"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/send-otp", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req SendOTPRequest
			err := BindAndValidate(c, &req, v)
			if apperr.Kind(err) != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := apperr.Message(err); got != tt.want {
				t.Fatalf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONPath(t *testing.T) {
	if got := jsonPath("CreateOrderRequest.Customer.Email"); got != "customer.email" {
		t.Fatalf("got %s", got)
	}
	if got := jsonPath("CreateOrderRequest.Items[0].Quantity"); got != "items[0].quantity" {
		t.Fatalf("got %s", got)
	}
}
