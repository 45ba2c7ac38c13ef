package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/checkout"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/validation"
)

// RegisterOTPRoutes registers the standalone OTP endpoints.
func RegisterOTPRoutes(r gin.IRouter, svc *checkout.Service, v *validatorv10.Validate, log *slog.Logger) {
	r.POST("/send-otp", func(c *gin.Context) {
		var req validation.SendOTPRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			fail(c, log, err, nil)
			return
		}
		ch, err := svc.SendOTP(c.Request.Context(), req)
		if err != nil {
			fail(c, log, err, nil)
			return
		}
		body := gin.H{"message": "OTP sent"}
		if svc.EchoOTP() {
			body["otp"] = ch.Code
		}
		ok(c, body)
	})

	r.POST("/verify-otp", func(c *gin.Context) {
		var req validation.VerifyOTPRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			fail(c, log, err, nil)
			return
		}
		if err := svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP.String()); err != nil {
			fail(c, log, err, nil)
			return
		}
		ok(c, gin.H{"message": "OTP verified"})
	})
}
