package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/i18n"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 64 << 20
)

// WebSocket message types.
const (
	wsTypeProgress = "progress"
	wsTypeResult   = "result"
	wsTypeError    = "error"
)

// WebSocket statuses.
const (
	wsStatusProcessing = "processing"
	wsStatusCompleted  = "completed"
	wsStatusError      = "error"
)

// WebSocketAnalyzeRequest is one analysis request sent by the client.
// Image carries the encoded plan (base64 in JSON).
type WebSocketAnalyzeRequest struct {
	Mode     string              `json:"mode,omitempty"`
	Image    []byte              `json:"image,omitempty"`
	MIMEType string              `json:"mime_type,omitempty"`
	Width    float64             `json:"width,omitempty"`
	Height   float64             `json:"height,omitempty"`
	Manual   *layout.ManualInput `json:"manual,omitempty"`
	Debug    bool                `json:"debug,omitempty"`
	Blocks   bool                `json:"blocks,omitempty"`
	Language string              `json:"language,omitempty"`
}

// WebSocketResponse is a progress event, the final result or an error.
type WebSocketResponse struct {
	Type       string           `json:"type"`
	Status     string           `json:"status"`
	RequestID  string           `json:"request_id,omitempty"`
	Step       pipeline.Step    `json:"step,omitempty"`
	DurationMs float64          `json:"duration_ms,omitempty"`
	Progress   float64          `json:"progress"`
	Result     *pipeline.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"` // error code
	Message    string           `json:"message,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// analyzeWebSocketHandler streams step progress and the result of each
// analysis request received on the connection.
func (s *Server) analyzeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	// The handshake is written on the hijacked connection, so headers set on
	// w by middleware must be passed explicitly.
	var header http.Header
	if id := w.Header().Get(RequestIDHeader); id != "" {
		header = http.Header{RequestIDHeader: {id}}
	}
	conn, err := up.Upgrade(w, r, header)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "request_id", RequestID(r.Context()))
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection reads requests until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket closed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

// handleWebSocketMessage runs one analysis and reports each finished step.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	requestID := uuid.NewString()

	var req WebSocketAnalyzeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, requestID, "en",
			errs.Wrap(errs.CodeInvalidInput, err, "failed to parse request"))
		return
	}
	lang := i18n.Match(req.Language).String()

	in := pipeline.Input{
		Mode:     req.Mode,
		Data:     req.Image,
		MIMEType: req.MIMEType,
		Manual:   req.Manual,
		Debug:    req.Debug,
		Blocks:   req.Blocks,
	}
	if req.Width != 0 || req.Height != 0 {
		in.Calibration = &layout.Calibration{Width: req.Width, Height: req.Height}
	}

	expected := expectedSteps(in)
	done := 0
	in.Progress = func(step pipeline.Step, d time.Duration) {
		done++
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:       wsTypeProgress,
			Status:     wsStatusProcessing,
			RequestID:  requestID,
			Step:       step,
			DurationMs: float64(d) / float64(time.Millisecond),
			Progress:   min(float64(done)/float64(expected), 0.99),
		})
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeProgress,
		Status:    wsStatusProcessing,
		RequestID: requestID,
	})

	res, err := s.analyze(ctx, in)
	if err != nil {
		s.sendWebSocketError(conn, requestID, lang, err)
		return
	}
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeResult,
		Status:    wsStatusCompleted,
		RequestID: requestID,
		Progress:  1,
		Result:    res,
	})
}

// expectedSteps estimates how many steps in will report. Dimension
// scraping may add one more; progress stays below 1 until the result.
func expectedSteps(in pipeline.Input) int {
	n := 1
	if mode, _ := pipeline.ResolveMode(in); mode == pipeline.ModeAuto {
		n = 4 // preprocess, detect, select, map
		if in.Image == nil {
			n++ // load
		}
	}
	if in.Blocks {
		n++
	}
	return n
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError reports a failed request with a localized message.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, lang string, err error) {
	code := errs.GetCode(err)
	if code == "" {
		code = errs.CodeInternal
	}
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeError,
		Status:    wsStatusError,
		RequestID: requestID,
		Error:     string(code),
		Message:   i18n.Error(lang, err),
	})
}
