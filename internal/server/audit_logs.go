package server

import (
	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
)

// ListAuditLogs filters by action_type, entity_type, entity_id, actor_id and
// a from/to window, newest first.
func (s *Server) ListAuditLogs(c *gin.Context) {
	var req auditdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest.WithCause(err))
		return
	}
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, apperror.FieldValidation("from", "invalid_from", "from must be a date or RFC3339 time"))
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, apperror.FieldValidation("to", "invalid_to", "to must be a date or RFC3339 time"))
		return
	}
	req.From = from
	req.To = to

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, resp)
}
