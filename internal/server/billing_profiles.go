package server

import (
	"github.com/gin-gonic/gin"
	billingprofiledomain "github.com/merceton/merceton/internal/billingprofile/domain"
)

func (s *Server) AdminGetBillingProfile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	profile, err := s.profileSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, profile)
}

func (s *Server) AdminUpdateSeries(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req billingprofiledomain.UpdateSeriesRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ProfileID = id
	profile, err := s.profileSvc.UpdateSeries(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, profile)
}
