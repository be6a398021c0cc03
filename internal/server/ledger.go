package server

import (
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
)

func (s *Server) GetLedgerBalance(c *gin.Context) {
	balance, err := s.ledgerSvc.MerchantBalance(c.Request.Context(), merchantFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, balance)
}

func (s *Server) AdminMerchantBalance(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	balance, err := s.ledgerSvc.MerchantBalance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, balance)
}

func (s *Server) AdminRecordPayout(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req ledgerdomain.PayoutRequest
	if !bindJSON(c, &req) {
		return
	}
	req.MerchantID = id
	entry, err := s.ledgerSvc.RecordPayout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, entry)
}

func (s *Server) AdminOrderLedger(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	entries, err := s.ledgerSvc.ListByOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []ledgerdomain.LedgerEntry{}
	}
	respondOK(c, gin.H{"order_id": id, "entries": entries})
}
