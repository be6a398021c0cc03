package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/auditcontext"
	"github.com/merceton/merceton/internal/authorization"
)

// Identity is asserted by the upstream gateway. These headers are trusted
// only behind it.
const (
	HeaderActorID    = "X-Actor-ID"
	HeaderMerchantID = "X-Merchant-ID"

	contextAdminKey    = "admin_user"
	contextMerchantKey = "merchant_id"
)

// AdminRequired resolves the acting admin and seeds the audit context with
// their id and email.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := headerID(c, HeaderActorID)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		admin, err := s.authzSvc.ResolveAdmin(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := auditcontext.WithActor(c.Request.Context(), auditcontext.ActorTypeAdmin, admin.ID.String())
		ctx = auditcontext.WithActorEmail(ctx, admin.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextAdminKey, admin)
		c.Next()
	}
}

// authorizeAdmin must run after AdminRequired.
func (s *Server) authorizeAdmin(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := adminFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), "admin:"+admin.ID.String(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) MerchantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := headerID(c, HeaderMerchantID)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		ctx := auditcontext.WithActor(c.Request.Context(), auditcontext.ActorTypeMerchant, id.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextMerchantKey, id)
		c.Next()
	}
}

func adminFromContext(c *gin.Context) (authorization.AdminUser, bool) {
	v, ok := c.Get(contextAdminKey)
	if !ok {
		return authorization.AdminUser{}, false
	}
	admin, ok := v.(authorization.AdminUser)
	return admin, ok
}

func merchantFromContext(c *gin.Context) snowflake.ID {
	v, ok := c.Get(contextMerchantKey)
	if !ok {
		return 0
	}
	id, _ := v.(snowflake.ID)
	return id
}

func headerID(c *gin.Context, header string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetHeader(header))
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
