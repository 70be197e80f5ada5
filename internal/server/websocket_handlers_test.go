package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
)

// mockWebSocketConn records written messages.
type mockWebSocketConn struct {
	sentMessages []sentMessage
}

type sentMessage struct {
	messageType int
	data        []byte
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.sentMessages = append(m.sentMessages, sentMessage{messageType: messageType, data: data})
	return nil
}

func (m *mockWebSocketConn) responses(t *testing.T) []WebSocketResponse {
	t.Helper()
	out := make([]WebSocketResponse, len(m.sentMessages))
	for i, msg := range m.sentMessages {
		assert.Equal(t, websocket.TextMessage, msg.messageType)
		require.NoError(t, json.Unmarshal(msg.data, &out[i]))
	}
	return out
}

func TestServer_HandleWebSocketMessage_Auto(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &mockWebSocketConn{}

	req, err := json.Marshal(WebSocketAnalyzeRequest{Image: planPNG(t), Width: 560, Height: 320})
	require.NoError(t, err)
	s.handleWebSocketMessage(context.Background(), conn, req)

	resp := conn.responses(t)
	require.Len(t, resp, 7) // start, five steps, result

	var steps []pipeline.Step
	for _, r := range resp[1:6] {
		assert.Equal(t, wsTypeProgress, r.Type)
		assert.Equal(t, wsStatusProcessing, r.Status)
		assert.Less(t, r.Progress, 1.0)
		steps = append(steps, r.Step)
	}
	assert.Equal(t, []pipeline.Step{
		pipeline.StepLoad, pipeline.StepPreprocess, pipeline.StepDetect, pipeline.StepSelect, pipeline.StepMap,
	}, steps)
	for i := 2; i < 6; i++ {
		assert.GreaterOrEqual(t, resp[i].Progress, resp[i-1].Progress)
	}

	last := resp[6]
	assert.Equal(t, wsTypeResult, last.Type)
	assert.Equal(t, wsStatusCompleted, last.Status)
	assert.InDelta(t, 1.0, last.Progress, 1e-9)
	require.NotNil(t, last.Result)
	assert.Len(t, last.Result.Layout.Openings, 2)
	assert.Equal(t, layout.OriginBottomLeft, last.Result.Layout.Origin)

	for _, r := range resp {
		assert.Equal(t, resp[0].RequestID, r.RequestID)
	}
}

func TestServer_HandleWebSocketMessage_Manual(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &mockWebSocketConn{}

	req := `{"mode":"ručni","manual":{"width":600,"height":300,"openings":[]},"blocks":true}`
	s.handleWebSocketMessage(context.Background(), conn, []byte(req))

	resp := conn.responses(t)
	require.Len(t, resp, 4)
	assert.Equal(t, pipeline.StepManual, resp[1].Step)
	assert.InDelta(t, 0.5, resp[1].Progress, 1e-9)
	assert.Equal(t, pipeline.StepBlocks, resp[2].Step)
	require.NotNil(t, resp[3].Result)
	assert.Equal(t, pipeline.ModeManual, resp[3].Result.Mode)
	assert.NotEmpty(t, resp[3].Result.Layout.Blocks)
}

func TestServer_HandleWebSocketMessage_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("invalid json", func(t *testing.T) {
		conn := &mockWebSocketConn{}
		s.handleWebSocketMessage(context.Background(), conn, []byte("{not json"))

		resp := conn.responses(t)
		require.Len(t, resp, 1)
		assert.Equal(t, wsTypeError, resp[0].Type)
		assert.Equal(t, wsStatusError, resp[0].Status)
		assert.Equal(t, string(errs.CodeInvalidInput), resp[0].Error)
	})

	t.Run("localized out of bounds", func(t *testing.T) {
		conn := &mockWebSocketConn{}
		req := `{"mode":"manual","language":"sr","manual":{"width":100,"height":100,"openings":[{"x":0,"y":0,"w":150,"h":10}]}}`
		s.handleWebSocketMessage(context.Background(), conn, []byte(req))

		resp := conn.responses(t)
		require.Len(t, resp, 2)
		assert.Equal(t, string(errs.CodeOutOfBounds), resp[1].Error)
		assert.Contains(t, resp[1].Message, "prelazi")
	})

	t.Run("half calibration", func(t *testing.T) {
		conn := &mockWebSocketConn{}
		req, err := json.Marshal(WebSocketAnalyzeRequest{Image: planPNG(t), Width: 560})
		require.NoError(t, err)
		s.handleWebSocketMessage(context.Background(), conn, req)

		resp := conn.responses(t)
		last := resp[len(resp)-1]
		assert.Equal(t, wsTypeError, last.Type)
		assert.Equal(t, string(errs.CodeInvalidDimensions), last.Error)
	})
}

func TestExpectedSteps(t *testing.T) {
	assert.Equal(t, 1, expectedSteps(pipeline.Input{Mode: "manual"}))
	assert.Equal(t, 2, expectedSteps(pipeline.Input{Mode: "manual", Blocks: true}))
	assert.Equal(t, 5, expectedSteps(pipeline.Input{Data: []byte{1}}))
	assert.Equal(t, 6, expectedSteps(pipeline.Input{Data: []byte{1}, Blocks: true}))
}

func TestServer_AnalyzeWebSocket_EndToEnd(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws/analyze"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	require.NoError(t, conn.WriteJSON(WebSocketAnalyzeRequest{
		Mode:   "manual",
		Manual: &layout.ManualInput{Width: 400, Height: 250},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got []WebSocketResponse
	for {
		var msg WebSocketResponse
		require.NoError(t, conn.ReadJSON(&msg))
		got = append(got, msg)
		if msg.Status != wsStatusProcessing {
			break
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, wsStatusCompleted, got[2].Status)
	assert.InDelta(t, 400, got[2].Result.Layout.Wall.W, 1e-9)
}

func TestServer_AnalyzeWebSocket_EchoesRequestID(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws/analyze"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{RequestIDHeader: []string{"trace-ws-7"}})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Equal(t, "trace-ws-7", resp.Header.Get(RequestIDHeader))
}

func TestServer_AnalyzeWebSocket_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.CORSOrigin = "https://plans.example" })
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws/analyze"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
