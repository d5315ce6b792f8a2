package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketMessage is the envelope every message over the socket uses.
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// documentUploadMessage is the client's opening message: raw file bytes
// plus a filename used to pick the MIME type.
type documentUploadMessage struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// documentWebSocketHandler accepts a single document upload over the
// socket and streams status messages back: "processing" on receipt,
// then "completed" with the InvoiceCard or "error" with a message.
//
// Pipeline.ProcessDocument's ProgressCallback is configured once at
// Builder.Build() time and shared across every document the pipeline
// processes, so per-connection progress percentages aren't threaded
// through here; a connection gets start/finish framing rather than a
// live per-page progress bar.
func (s *Server) documentWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection to websocket", "error", err)
		return
	}
	defer conn.Close()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("websocket connection established", "remote_addr", r.RemoteAddr)

	_, raw, err := conn.ReadMessage()
	if err != nil {
		if err != io.EOF {
			slog.Warn("websocket read failed", "error", err)
		}
		return
	}
	websocketMessagesTotal.WithLabelValues("received").Inc()

	var upload documentUploadMessage
	if err := json.Unmarshal(raw, &upload); err != nil {
		s.sendWS(conn, "error", map[string]string{"message": "invalid upload message"})
		return
	}

	s.sendWS(conn, "processing", nil)

	doc, cleanup, err := s.stageUpload(bytes.NewReader(upload.Data), upload.Filename)
	if err != nil {
		s.sendWS(conn, "error", map[string]string{"message": "failed to stage upload: " + err.Error()})
		return
	}
	defer cleanup()

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result, err := s.pipeline.ProcessDocument(ctx, doc)
	documentProcessingDuration.WithLabelValues(doc.MIME).Observe(time.Since(start).Seconds())
	if err != nil {
		documentRequestsTotal.WithLabelValues(doc.MIME, "error").Inc()
		s.sendWS(conn, "error", map[string]string{"message": err.Error()})
		return
	}

	documentRequestsTotal.WithLabelValues(doc.MIME, "ok").Inc()
	s.sendWS(conn, "completed", result)
}

func (s *Server) sendWS(conn *websocket.Conn, msgType string, payload interface{}) {
	msg := WebSocketMessage{Type: msgType, Payload: payload}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal websocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		slog.Warn("websocket write failed", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
