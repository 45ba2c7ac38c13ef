package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/money"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/orders"
)

// New returns a configured validator with the custom tags and struct-level
// validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("payment_method", func(fl validatorv10.FieldLevel) bool {
		_, ok := orders.ParsePaymentMethod(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		_, ok := orders.ParseStatus(fl.Field().String())
		return ok
	})

	// the claimed totals must add up to the items
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// createOrderStructValidation verifies subtotal == Σ qty×price and
// total == subtotal + shipping - discount, to the paisa. Rounding matches
// the amount later charged through the gateway.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	var sumCents int64
	for _, it := range req.Items {
		sumCents += int64(it.Quantity) * money.Cents(it.Price)
	}

	subtotalCents := sumCents
	if req.Subtotal != 0 {
		subtotalCents = money.Cents(req.Subtotal)
		if subtotalCents != sumCents {
			sl.ReportError(req.Subtotal, "subtotal", "Subtotal", "subtotal_match_items",
				fmt.Sprintf("items sum %.2f != subtotal %.2f", money.FromMinor(sumCents), req.Subtotal))
			return
		}
	}

	want := subtotalCents + money.Cents(req.ShippingFee) - money.Cents(req.Discount)
	if money.Cents(req.Total) != want {
		sl.ReportError(req.Total, "total", "Total", "total_match_items",
			fmt.Sprintf("expected total %.2f, got %.2f", money.FromMinor(want), req.Total))
	}
}
