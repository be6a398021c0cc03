package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
)

func (s *Server) GetOrderInvoice(c *gin.Context) {
	order, ok := s.merchantOrder(c)
	if !ok {
		return
	}
	invoice, err := s.invoiceSvc.GetOrderInvoice(c.Request.Context(), order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, invoice)
}

// IssueOrderInvoice is idempotent: a second call returns the first invoice.
func (s *Server) IssueOrderInvoice(c *gin.Context) {
	order, ok := s.merchantOrder(c)
	if !ok {
		return
	}
	invoice, err := s.invoiceSvc.IssueOrderInvoice(c.Request.Context(), order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, invoice)
}

func (s *Server) AdminCancelOrderInvoice(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	invoice, err := s.invoiceSvc.CancelOrderInvoice(c.Request.Context(), invoicedomain.StatusRequest{InvoiceID: id, Reason: reason})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, invoice)
}

func (s *Server) AdminListPlatformInvoices(c *gin.Context) {
	merchantID, err := merchantQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := invoicedomain.ListRequest{MerchantID: merchantID, From: rng.From, To: rng.To}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := invoicedomain.PlatformInvoiceStatus(raw)
		switch status {
		case invoicedomain.PlatformInvoiceIssued, invoicedomain.PlatformInvoicePaid, invoicedomain.PlatformInvoiceCancelled:
		default:
			AbortWithError(c, apperror.FieldValidation("status", "invalid_status", "status must be ISSUED, PAID or CANCELLED"))
			return
		}
		req.Status = &status
	}

	invoices, err := s.invoiceSvc.ListPlatformInvoices(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if invoices == nil {
		invoices = []invoicedomain.PlatformInvoice{}
	}
	respondOK(c, gin.H{"invoices": invoices})
}

func (s *Server) AdminGetPlatformInvoice(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	invoice, err := s.invoiceSvc.GetPlatformInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, invoice)
}

// AdminGeneratePlatformInvoice bills one merchant for an explicit period.
// A period without fees answers 422.
func (s *Server) AdminGeneratePlatformInvoice(c *gin.Context) {
	var req invoicedomain.GenerateRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := s.invoiceSvc.AdminGenerateInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if invoice == nil {
		AbortWithError(c, invoicedomain.ErrNoFees)
		return
	}
	respondEntity(c, http.StatusCreated, invoice)
}

func (s *Server) AdminCancelPlatformInvoice(c *gin.Context) {
	s.platformInvoiceTransition(c, false)
}

func (s *Server) AdminMarkPlatformInvoicePaid(c *gin.Context) {
	s.platformInvoiceTransition(c, true)
}

func (s *Server) platformInvoiceTransition(c *gin.Context, paid bool) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	req := invoicedomain.StatusRequest{InvoiceID: id, Reason: reason}

	var invoice *invoicedomain.PlatformInvoice
	if paid {
		invoice, err = s.invoiceSvc.MarkPlatformInvoicePaid(c.Request.Context(), req)
	} else {
		invoice, err = s.invoiceSvc.CancelPlatformInvoice(c.Request.Context(), req)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, invoice)
}
