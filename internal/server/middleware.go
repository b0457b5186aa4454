package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/redress/internal/accountcontext"
	"github.com/smallbiznis/redress/internal/auth"
	obscontext "github.com/smallbiznis/redress/internal/observability/context"
)

const (
	contextAccountIDKey = "account_id"
	actorTypeAccount    = "account"
)

// AuthRequired verifies the bearer token and binds the account to the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.FromHeader(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		accountID, err := s.verifier.Verify(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := accountcontext.WithAccountID(c.Request.Context(), accountID)
		ctx = obscontext.WithAccountID(ctx, accountID.String())
		ctx = obscontext.WithActor(ctx, actorTypeAccount, accountID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextAccountIDKey, accountID.String())
		c.Next()
	}
}

func (s *Server) accountIDFromRequest(c *gin.Context) (snowflake.ID, error) {
	accountID, ok := accountcontext.AccountIDFromContext(c.Request.Context())
	if !ok {
		return 0, ErrUnauthorized
	}
	return accountID, nil
}
