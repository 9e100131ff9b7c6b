package framework

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Respond convert a Go value to JSON and sends it to the client.
func Respond(c *gin.Context, data any, statusCode int) {
	// if there's no payload to marshal, set the status code of the response and return
	if statusCode == http.StatusNoContent || data == nil {
		c.Status(statusCode)
		return
	}

	// respond with pretty JSON
	c.IndentedJSON(statusCode, data)
}

// RespondError sends an error response back to the client. If the error is a `SafeError`,
// the error message and fields are sent back to the client. If the error is not a
// `SafeError`, a generic error message is sent back to the client.
func RespondError(c *gin.Context, err error) {
	// record the error for the errors and metrics middleware
	_ = c.Error(err)

	// if the cause of the error provided is a `SafeError`, construct an ErrorResponse
	// using the contents of SafeError and send it back to the client
	var webErr *SafeError
	if errors.As(err, &webErr) {
		er := ErrorResponse{
			Error:  webErr.Err.Error(),
			Fields: webErr.Fields,
		}
		c.AbortWithStatusJSON(webErr.StatusCode, er)
		return
	}

	// if the error isn't a `SafeError`, it's not safe to send back the error
	// message as is because it may contain sensitive data. Send back a generic
	// 500.
	er := ErrorResponse{
		Error: http.StatusText(http.StatusInternalServerError),
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, er)
}

// LoggingRespondError logs the error and sends it to the client with the given status. Field errors
// of a wrapped SafeError are kept.
func LoggingRespondError(c *gin.Context, err error, statusCode int) {
	logrus.WithError(err).Error()

	var fields []FieldError
	var safeErr *SafeError
	if errors.As(err, &safeErr) {
		fields = safeErr.Fields
	}
	RespondError(c, &SafeError{Err: err, StatusCode: statusCode, Fields: fields})
}

// LoggingRespondErrMsg is LoggingRespondError for a plain message.
func LoggingRespondErrMsg(c *gin.Context, errMsg string, statusCode int) {
	LoggingRespondError(c, errors.New(errMsg), statusCode)
}

// LoggingRespondErrWithMsg prefixes the error with errMsg before responding.
func LoggingRespondErrWithMsg(c *gin.Context, err error, errMsg string, statusCode int) {
	LoggingRespondError(c, errors.Wrap(err, errMsg), statusCode)
}
