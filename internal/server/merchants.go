package server

import (
	"github.com/gin-gonic/gin"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
)

// GetEffectiveFees returns the fee terms checkout would apply right now.
func (s *Server) GetEffectiveFees(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if id != merchantFromContext(c) {
		AbortWithError(c, errMerchantMismatch)
		return
	}
	if _, err := s.merchantSvc.Get(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	fees, err := s.feeResolver.Resolve(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"merchant_id": id, "fee_config": fees})
}

func (s *Server) GetOnboarding(c *gin.Context) {
	onboarding, err := s.merchantSvc.GetOnboarding(c.Request.Context(), merchantFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"onboarding": onboarding})
}

func (s *Server) UpsertOnboarding(c *gin.Context) {
	var req merchantdomain.OnboardingRequest
	if !bindJSON(c, &req) {
		return
	}
	onboarding, err := s.merchantSvc.UpsertOnboarding(c.Request.Context(), merchantFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"onboarding": onboarding})
}

func (s *Server) UpdateBankAccount(c *gin.Context) {
	var req merchantdomain.BankAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := s.merchantSvc.UpdateBankAccount(c.Request.Context(), merchantFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"bank_account": account})
}

func (s *Server) AdminGetMerchant(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	merchant, err := s.merchantSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, merchant)
}

func (s *Server) AdminSetMerchantStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req merchantdomain.SetStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	req.MerchantID = id
	merchant, err := s.merchantSvc.SetStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, merchant)
}

func (s *Server) AdminVerifyBankAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	account, err := s.merchantSvc.VerifyBankAccount(c.Request.Context(), merchantdomain.VerifyBankAccountRequest{
		MerchantID: id,
		Reason:     reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, account)
}
