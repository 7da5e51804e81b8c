package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Itish41/ndareview/logger"
	services "github.com/Itish41/ndareview/service"
	"github.com/Itish41/ndareview/staging"
	"github.com/Itish41/ndareview/store"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, staging.ErrExpired):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUnsupportedDocument), errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail logs err and writes {error, details}. The upstream text only ever
// appears in details.
func fail(ctx *gin.Context, log *logger.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(msg, "path", ctx.FullPath(), "error", err)
	} else {
		log.Warn(msg, "path", ctx.FullPath(), "error", err)
	}
	_ = ctx.Error(err)
	ctx.JSON(status, gin.H{"error": msg, "details": err.Error()})
}

func badRequest(ctx *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	ctx.JSON(http.StatusBadRequest, body)
}

// temporaryParam reads the optional ?temporary= flag.
func temporaryParam(ctx *gin.Context) (bool, bool) {
	raw := ctx.Query("temporary")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(ctx, "Invalid temporary flag", err)
		return false, false
	}
	return v, true
}
