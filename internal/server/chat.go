package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	chatdomain "github.com/smallbiznis/redress/internal/chat/domain"
	"go.uber.org/zap"
)

type chatDelta struct {
	Delta string `json:"delta"`
}

// StreamChat answers over server-sent events. Failures before the first chunk are
// ordinary JSON errors; later failures arrive as an "error" event.
func (s *Server) StreamChat(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req chatdomain.StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		headers := writer.Header()
		headers.Set("Content-Type", "text/event-stream")
		headers.Set("Cache-Control", "no-cache")
		headers.Set("Connection", "keep-alive")
		headers.Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	err = s.chatSvc.Stream(c.Request.Context(), accountID, caseID, req.Messages, func(chunk string) error {
		start()
		if err := writeChatDelta(writer, chunk); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err != nil && !started {
		AbortWithError(c, err)
		return
	}

	start()
	if err != nil {
		s.log.Warn("chat stream failed", zap.String("case_id", caseID.String()), zap.Error(err))
		_, payload := mapError(err)
		if writeErr := writeChatEvent(writer, "error", errorResponse{Error: payload}); writeErr != nil {
			return
		}
		flusher.Flush()
		return
	}

	if err := writeChatEvent(writer, "done", struct{}{}); err != nil {
		return
	}
	flusher.Flush()
}

func writeChatDelta(w io.Writer, chunk string) error {
	data, err := json.Marshal(chatDelta{Delta: chunk})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func writeChatEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
