package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/merceton/merceton/internal/catalog/domain"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
)

// ListStoreProducts is the public storefront listing. Inactive stores look
// the same as missing ones.
func (s *Server) ListStoreProducts(c *gin.Context) {
	merchant, err := s.merchantSvc.GetBySlug(c.Request.Context(), strings.ToLower(strings.TrimSpace(c.Param("slug"))))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !merchant.IsActive {
		AbortWithError(c, merchantdomain.ErrNotFound)
		return
	}
	products, err := s.catalogSvc.ListByMerchant(c.Request.Context(), merchant.ID, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{
		"store": gin.H{
			"merchant_id": merchant.ID,
			"name":        merchant.Name,
			"store_slug":  merchant.StoreSlug,
		},
		"products": products,
	})
}

func (s *Server) ListProducts(c *gin.Context) {
	products, err := s.catalogSvc.ListByMerchant(c.Request.Context(), merchantFromContext(c), c.Query("active") == "true")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"products": products})
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req catalogdomain.CreateRequest
	if !bindJSON(c, &req) {
		return
	}
	req.MerchantID = merchantFromContext(c)
	product, err := s.catalogSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondEntity(c, http.StatusCreated, product)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) SetProductActive(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req setActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := s.catalogSvc.SetActive(c.Request.Context(), merchantFromContext(c), id, req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, product)
}

func (s *Server) AdminAdjustStock(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req catalogdomain.AdjustStockRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ProductID = id
	product, err := s.catalogSvc.AdjustStock(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, product)
}
