package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mnemotree/mnemocore/internal/mnerr"
)

// Response is the envelope every endpoint responds with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse sends a 200 success response.
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, &Response{Success: true, Message: message, Data: data})
}

// CreatedResponse sends a 201 created response.
func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, &Response{Success: true, Message: message, Data: data})
}

// ErrorResponse sends an error response at the given status code.
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, &Response{Success: false, Message: message})
}

func BadRequestError(c *gin.Context, message string)  { ErrorResponse(c, http.StatusBadRequest, message) }
func NotFoundError(c *gin.Context, message string)    { ErrorResponse(c, http.StatusNotFound, message) }
func UnauthorizedError(c *gin.Context, message string) { ErrorResponse(c, http.StatusUnauthorized, message) }
func TooManyRequestsError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusTooManyRequests, message)
}
func PayloadTooLargeError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, message)
}
func InternalError(c *gin.Context, message string) { ErrorResponse(c, http.StatusInternalServerError, message) }

// mnerrStatus maps a component error's Kind onto an HTTP status code,
// so handlers can respond correctly without switching on Kind
// themselves.
func mnerrStatus(err error) int {
	switch mnerr.KindOf(err) {
	case mnerr.BadRequest:
		return http.StatusBadRequest
	case mnerr.NotFound:
		return http.StatusNotFound
	case mnerr.RateLimited:
		return http.StatusTooManyRequests
	case mnerr.Conflict:
		return http.StatusConflict
	case mnerr.Transient:
		return http.StatusServiceUnavailable
	case mnerr.Cancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps a mnemo/component error onto the right HTTP status
// and the standard error envelope.
func RespondError(c *gin.Context, err error) {
	ErrorResponse(c, mnerrStatus(err), err.Error())
}
