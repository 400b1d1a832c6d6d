package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// writeAppError renders err in the shared error envelope with the status
// mapped from its code.  Uncoded failures are masked.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	body := charge.ErrorResponse(err)
	if code == errors.CodeInternal || code == errors.CodeUnknown {
		body.Code = errors.CodeInternal.String()
		body.Message = errors.DefaultMessageForCode(errors.CodeInternal)
		body.Detail = ""
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

// writeBindError reports a request body that could not be decoded.
func writeBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, charge.ErrorResponse(
		errors.Wrap(err, errors.CodeInvalidParam, "malformed request body").WithDetail(err.Error())))
}

//Personal.AI order the ending
