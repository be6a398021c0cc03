package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	"github.com/merceton/merceton/pkg/db/pagination"
	"go.uber.org/zap"
)

// CreateOrder is the storefront checkout. Failures keep the
// {success:false, error} body with a status taken from the error kind.
func (s *Server) CreateOrder(c *gin.Context) {
	var input orderdomain.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, orderdomain.Failed(ErrInvalidRequest.WithCause(err)))
		return
	}

	result := s.orderSvc.CreateOrder(c.Request.Context(), input)
	if !result.Success {
		status := statusForKind(apperror.KindOf(result.Err))
		if status == http.StatusInternalServerError {
			s.log.Error("create order failed", zap.String("merchant_id", input.MerchantID.String()), zap.Error(result.Err))
			_ = c.Error(result.Err)
			result.Error = "failed to create order"
		}
		c.JSON(status, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) ListOrders(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest.WithCause(err))
		return
	}
	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		MerchantID: merchantFromContext(c),
		Stage:      orderdomain.Stage(strings.ToUpper(strings.TrimSpace(c.Query("stage")))),
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, resp)
}

func (s *Server) GetOrder(c *gin.Context) {
	order, ok := s.merchantOrder(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"order": order})
}

func (s *Server) UpdateOrderStage(c *gin.Context) {
	order, ok := s.merchantOrder(c)
	if !ok {
		return
	}
	var req orderdomain.UpdateStageRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OrderID = order.ID
	updated, err := s.orderSvc.UpdateStage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"order": updated})
}

func (s *Server) AdminGetOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, gin.H{"order": order})
}

// merchantOrder loads the :id order and hides orders of other merchants.
func (s *Server) merchantOrder(c *gin.Context) (*orderdomain.Order, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if order.MerchantID != merchantFromContext(c) {
		AbortWithError(c, orderdomain.ErrNotFound)
		return nil, false
	}
	return order, true
}
