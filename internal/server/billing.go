package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	billingdomain "github.com/merceton/merceton/internal/billing/domain"
)

const (
	contentTypeCSV = "text/csv; charset=utf-8"
	contentTypePDF = "application/pdf"
)

var errMerchantMismatch = apperror.Forbidden("merchant_mismatch", "merchant id does not match the authenticated merchant")

func (s *Server) MerchantStatementCSV(c *gin.Context) {
	req, raw, ok := s.merchantStatementRequest(c)
	if !ok {
		return
	}
	s.writeStatementCSV(c, req, raw)
}

func (s *Server) MerchantInvoicePDF(c *gin.Context) {
	req, raw, ok := s.merchantStatementRequest(c)
	if !ok {
		return
	}
	s.writeInvoicePDF(c, req, raw)
}

func (s *Server) MerchantStatementSummary(c *gin.Context) {
	req, _, ok := s.merchantStatementRequest(c)
	if !ok {
		return
	}
	s.writeStatementSummary(c, req)
}

func (s *Server) AdminStatementCSV(c *gin.Context) {
	req, raw, ok := adminStatementRequest(c)
	if !ok {
		return
	}
	s.writeStatementCSV(c, req, raw)
}

func (s *Server) AdminInvoicePDF(c *gin.Context) {
	req, raw, ok := adminStatementRequest(c)
	if !ok {
		return
	}
	s.writeInvoicePDF(c, req, raw)
}

func (s *Server) AdminStatementSummary(c *gin.Context) {
	req, _, ok := adminStatementRequest(c)
	if !ok {
		return
	}
	s.writeStatementSummary(c, req)
}

// merchantStatementRequest pins the statement to the calling merchant. A
// merchantId query for anyone else is refused.
func (s *Server) merchantStatementRequest(c *gin.Context) (billingdomain.StatementRequest, rangeQuery, bool) {
	self := merchantFromContext(c)
	requested, err := merchantQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return billingdomain.StatementRequest{}, rangeQuery{}, false
	}
	if requested != nil && *requested != self {
		AbortWithError(c, errMerchantMismatch)
		return billingdomain.StatementRequest{}, rangeQuery{}, false
	}
	rng, err := parseRange(c)
	if err != nil {
		AbortWithError(c, err)
		return billingdomain.StatementRequest{}, rangeQuery{}, false
	}
	return billingdomain.StatementRequest{MerchantID: &self, From: rng.From, To: rng.To}, rng, true
}

func adminStatementRequest(c *gin.Context) (billingdomain.StatementRequest, rangeQuery, bool) {
	merchantID, err := merchantQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return billingdomain.StatementRequest{}, rangeQuery{}, false
	}
	rng, err := parseRange(c)
	if err != nil {
		AbortWithError(c, err)
		return billingdomain.StatementRequest{}, rangeQuery{}, false
	}
	return billingdomain.StatementRequest{MerchantID: merchantID, From: rng.From, To: rng.To}, rng, true
}

func (s *Server) writeStatementCSV(c *gin.Context, req billingdomain.StatementRequest, rng rangeQuery) {
	statement, err := s.billingSvc.Statement(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := billingdomain.WriteCSV(&buf, statement.Rows); err != nil {
		AbortWithError(c, apperror.Internal("statement_csv_failed", "failed to write statement").WithCause(err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="merceton-statement-%s-%s-%s.csv"`, merchantLabel(req.MerchantID), rng.RawFrom, rng.RawTo))
	c.Data(http.StatusOK, contentTypeCSV, buf.Bytes())
}

func (s *Server) writeInvoicePDF(c *gin.Context, req billingdomain.StatementRequest, rng rangeQuery) {
	if req.MerchantID == nil {
		AbortWithError(c, billingdomain.ErrMerchantRequired)
		return
	}
	doc, err := s.billingSvc.InvoicePDF(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="merceton-invoice-%s-%s-%s.pdf"`, req.MerchantID.String(), rng.RawFrom, rng.RawTo))
	c.Data(http.StatusOK, contentTypePDF, doc)
}

// writeStatementSummary totals the statement the way spreadsheet consumers
// do, by reading the CSV columns back.
func (s *Server) writeStatementSummary(c *gin.Context, req billingdomain.StatementRequest) {
	statement, err := s.billingSvc.Statement(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := billingdomain.WriteCSV(&buf, statement.Rows); err != nil {
		AbortWithError(c, apperror.Internal("statement_csv_failed", "failed to write statement").WithCause(err))
		return
	}
	summary, err := billingdomain.ParseStatementSummary(&buf)
	if err != nil {
		AbortWithError(c, apperror.Internal("statement_summary_failed", "failed to summarize statement").WithCause(err))
		return
	}
	respondOK(c, gin.H{
		"merchant_id": statement.MerchantID,
		"from":        statement.From,
		"to":          statement.To,
		"summary":     summary,
	})
}

func merchantLabel(id *snowflake.ID) string {
	if id == nil {
		return "all"
	}
	return id.String()
}
