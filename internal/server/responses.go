package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
)

// respondEntity writes entity flattened next to success:true.
func respondEntity(c *gin.Context, status int, entity any) {
	raw, err := json.Marshal(entity)
	if err != nil {
		AbortWithError(c, apperror.Internal("encode_response", "failed to encode response").WithCause(err))
		return
	}
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		// Not an object; nest it instead.
		c.JSON(status, gin.H{"success": true, "data": entity})
		return
	}
	body["success"] = true
	c.JSON(status, body)
}

func respondOK(c *gin.Context, entity any) {
	respondEntity(c, http.StatusOK, entity)
}

// bindJSON decodes the body into req. An empty body leaves req untouched so
// the service reports the missing fields.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, ErrInvalidRequest.WithCause(err))
		return false
	}
	return true
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func bindReason(c *gin.Context) (string, bool) {
	var req reasonRequest
	if !bindJSON(c, &req) {
		return "", false
	}
	return req.Reason, true
}
