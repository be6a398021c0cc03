package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	supportdomain "github.com/merceton/merceton/internal/support/domain"
	"github.com/merceton/merceton/pkg/db/pagination"
)

func (s *Server) OpenTicket(c *gin.Context) {
	var req supportdomain.OpenRequest
	if !bindJSON(c, &req) {
		return
	}
	req.MerchantID = merchantFromContext(c)
	ticket, err := s.supportSvc.Open(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondEntity(c, http.StatusCreated, ticket)
}

func (s *Server) ListMerchantTickets(c *gin.Context) {
	merchantID := merchantFromContext(c)
	s.listTickets(c, &merchantID)
}

func (s *Server) GetMerchantTicket(c *gin.Context) {
	ticket, ok := s.merchantTicket(c)
	if !ok {
		return
	}
	respondOK(c, ticket)
}

func (s *Server) ReplyAsMerchant(c *gin.Context) {
	ticket, ok := s.merchantTicket(c)
	if !ok {
		return
	}
	var req supportdomain.ReplyRequest
	if !bindJSON(c, &req) {
		return
	}
	req.TicketID = ticket.ID
	req.AuthorType = supportdomain.AuthorMerchant
	req.AuthorID = ticket.MerchantID.String()
	msg, err := s.supportSvc.Reply(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondEntity(c, http.StatusCreated, msg)
}

func (s *Server) AdminListTickets(c *gin.Context) {
	merchantID, err := merchantQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.listTickets(c, merchantID)
}

func (s *Server) AdminGetTicket(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ticket, err := s.supportSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, ticket)
}

func (s *Server) ReplyAsAdmin(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	admin, ok := adminFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	var req supportdomain.ReplyRequest
	if !bindJSON(c, &req) {
		return
	}
	req.TicketID = id
	req.AuthorType = supportdomain.AuthorAdmin
	req.AuthorID = admin.ID.String()
	msg, err := s.supportSvc.Reply(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondEntity(c, http.StatusCreated, msg)
}

func (s *Server) AdminCloseTicket(c *gin.Context) {
	s.ticketTransition(c, s.supportSvc.Close)
}

func (s *Server) AdminReopenTicket(c *gin.Context) {
	s.ticketTransition(c, s.supportSvc.Reopen)
}

func (s *Server) ticketTransition(c *gin.Context, apply func(ctx context.Context, req supportdomain.StatusRequest) (*supportdomain.Ticket, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	ticket, err := apply(c.Request.Context(), supportdomain.StatusRequest{TicketID: id, Reason: reason})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, ticket)
}

func (s *Server) listTickets(c *gin.Context, merchantID *snowflake.ID) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest.WithCause(err))
		return
	}
	req := supportdomain.ListRequest{MerchantID: merchantID, Pagination: page}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := supportdomain.TicketStatus(raw)
		switch status {
		case supportdomain.TicketOpen, supportdomain.TicketPending, supportdomain.TicketClosed:
		default:
			AbortWithError(c, apperror.FieldValidation("status", "invalid_status", "status must be OPEN, PENDING or CLOSED"))
			return
		}
		req.Status = status
	}
	resp, err := s.supportSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, resp)
}

// merchantTicket loads the :id ticket owned by the calling merchant.
func (s *Server) merchantTicket(c *gin.Context) (*supportdomain.Ticket, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	ticket, err := s.supportSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if ticket.MerchantID != merchantFromContext(c) {
		AbortWithError(c, supportdomain.ErrNotFound)
		return nil, false
	}
	return ticket, true
}
