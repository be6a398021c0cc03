package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
)

func (s *Server) AdminListPackages(c *gin.Context) {
	packages, err := s.pricingSvc.ListPackages(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if packages == nil {
		packages = []pricingdomain.PricingPackage{}
	}
	respondOK(c, gin.H{"packages": packages})
}

func (s *Server) AdminCreatePackage(c *gin.Context) {
	var req pricingdomain.CreatePackageRequest
	if !bindJSON(c, &req) {
		return
	}
	pkg, err := s.pricingSvc.CreatePackage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondEntity(c, http.StatusCreated, pkg)
}

func (s *Server) AdminPublishPackage(c *gin.Context) {
	s.transitionPackage(c, s.pricingSvc.PublishPackage)
}

func (s *Server) AdminArchivePackage(c *gin.Context) {
	s.transitionPackage(c, s.pricingSvc.ArchivePackage)
}

func (s *Server) transitionPackage(c *gin.Context, apply func(ctx context.Context, req pricingdomain.PackageTransitionRequest) (*pricingdomain.PricingPackage, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	pkg, err := apply(c.Request.Context(), pricingdomain.PackageTransitionRequest{PackageID: id, Reason: reason})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, pkg)
}

func (s *Server) AdminGetFeeConfig(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cfg, err := s.pricingSvc.GetFeeConfig(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	effective, err := s.feeResolver.Resolve(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"fee_config": cfg, "effective": effective})
}

func (s *Server) AdminAssignPackage(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req pricingdomain.AssignPackageRequest
	if !bindJSON(c, &req) {
		return
	}
	req.MerchantID = id
	cfg, err := s.pricingSvc.AssignPackage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, cfg)
}

func (s *Server) AdminSetOverrides(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req pricingdomain.SetOverridesRequest
	if !bindJSON(c, &req) {
		return
	}
	req.MerchantID = id
	cfg, err := s.pricingSvc.SetOverrides(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, cfg)
}

func (s *Server) AdminClearOverrides(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	cfg, err := s.pricingSvc.ClearOverrides(c.Request.Context(), pricingdomain.ClearOverridesRequest{MerchantID: id, Reason: reason})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, cfg)
}

// AdminPreviewFee prices ?gross (paise) under both fee models.
func (s *Server) AdminPreviewFee(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	gross, err := parseOptionalInt64(c.Query("gross"))
	if err != nil || gross == nil {
		AbortWithError(c, apperror.FieldValidation("gross", "invalid_gross", "gross must be an amount in paise"))
		return
	}
	preview, err := s.pricingSvc.PreviewFee(c.Request.Context(), id, *gross)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, preview)
}
