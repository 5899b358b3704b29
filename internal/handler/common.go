package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/pkg/middleware"
	"github.com/webdevsha/permitakaun/pkg/response"
)

// MsgInvalidInput is returned when a request body or query fails to bind
const MsgInvalidInput = "Input tidak sah"

// kindToCode maps service error kinds to response codes
var kindToCode = map[domain.ErrorKind]string{
	domain.KindValidation:    response.ErrCodeValidationFailed,
	domain.KindAuthorization: response.ErrCodeForbidden,
	domain.KindNotFound:      response.ErrCodeNotFound,
	domain.KindConflict:      response.ErrCodeConflict,
	domain.KindGateway:       response.ErrCodePaymentFailed,
	domain.KindTimeout:       response.ErrCodeTimeout,
	domain.KindInternal:      response.ErrCodeInternalError,
}

// describeError splits a service error into its response code, user-facing message and current status
func describeError(err error) (code, message, status string) {
	code, ok := kindToCode[domain.KindOf(err)]
	if !ok {
		code = response.ErrCodeInternalError
	}

	message = domain.MsgInternal
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
		status = de.CurrentStatus
	}
	return code, message, status
}

// respondError writes a service error; only the user-facing message leaves the process
func respondError(c *gin.Context, err error) {
	code, message, status := describeError(err)
	if status != "" {
		c.JSON(response.GetHTTPStatus(code), response.ErrorWithStatus(code, message, status))
		return
	}
	c.JSON(response.GetHTTPStatus(code), response.Error(code, message))
}

// caller builds the authenticated caller from the JWT middleware context
func caller(c *gin.Context) (domain.Caller, bool) {
	profileID, ok := middleware.GetProfileID(c)
	if !ok || profileID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return domain.Caller{}, false
	}
	email, _ := middleware.GetEmail(c)
	role, _ := middleware.GetRole(c)
	return domain.Caller{ProfileID: profileID, Email: email, Role: domain.Role(role)}, true
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID tidak sah"))
		return 0, false
	}
	return id, true
}
