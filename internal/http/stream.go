package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/rag"
)

// StreamEvent is one server-sent event on POST /v1/query/stream. Content
// grows monotonically across events; the final event has Done set and
// carries the error, if any.
type StreamEvent struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleQueryStream answers a question as a server-sent event stream.
func (s *Server) handleQueryStream(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	writeEvent := func(event StreamEvent) {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Fprintf(res, "data: %s\n\n", payload)
		res.Flush()
	}

	err := s.orchestrator.StreamQuery(c.Request().Context(), req.Question, func(chunk rag.StreamChunk) {
		event := StreamEvent{Content: chunk.Content, Done: chunk.Done}
		if chunk.Err != nil {
			event.Error = chunk.Err.Error()
		}
		writeEvent(event)
	})
	if err != nil {
		// Headers are already sent; the error has to travel in-band.
		s.logger.Error("stream query failed", zap.Error(err))
		writeEvent(StreamEvent{Done: true, Error: err.Error()})
	}
	return nil
}
