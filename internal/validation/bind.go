package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// Failures come back as validation errors carrying a client-readable message.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	if err := v.Struct(out); err != nil {
		return apperr.Wrap(apperr.KindValidation, describe(err), err)
	}
	return nil
}

// describe turns the first validation failure into a sentence.
func describe(err error) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}
	fe := ve[0]
	field := jsonPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "payment_method":
		return "paymentMethod must be cod or upi"
	case "order_status":
		return fmt.Sprintf("invalid status %q", fe.Value())
	case "subtotal_match_items", "total_match_items":
		return fe.Param()
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// jsonPath turns "CreateOrderRequest.Customer.Email" into "customer.email".
func jsonPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
