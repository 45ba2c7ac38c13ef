package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/middleware"
)

// fail writes the error envelope. extra fields are merged into the body.
func fail(c *gin.Context, log *slog.Logger, err error, extra gin.H) {
	status := apperr.HTTPStatus(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(c.Request.Context(), "request failed",
			"request_id", middleware.GetRequestID(c), "path", c.FullPath(), "error", err)
	}
	body := gin.H{"success": false, "error": apperr.Message(err)}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func ok(c *gin.Context, body gin.H) {
	body["success"] = true
	c.JSON(http.StatusOK, body)
}
