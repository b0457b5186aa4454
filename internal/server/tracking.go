package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	"go.uber.org/zap"
)

// TrackOpen serves the tracking pixel. The response never reveals whether the id matched.
func (s *Server) TrackOpen(c *gin.Context) {
	trackingID := strings.TrimSpace(c.Param("trackingID"))
	if err := s.dispatchSvc.RecordOpen(c.Request.Context(), trackingID); err != nil {
		s.log.Debug("tracking open not recorded", zap.String("tracking_id", trackingID), zap.Error(err))
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "image/gif", dispatchdomain.Pixel())
}
