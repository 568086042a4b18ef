package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/triscribe/triscribe/internal/observe"
	"github.com/triscribe/triscribe/internal/relay"
	"github.com/triscribe/triscribe/pkg/stt"
)

const (
	// wsWriteTimeout bounds a single outbound websocket write.
	wsWriteTimeout = 10 * time.Second

	// outboundBuffer is the depth of the per-connection outbound queue.
	outboundBuffer = 64
)

// streamConn is the per-connection state of one /ws client. The read loop is
// the only goroutine touching relay; outbound messages from any goroutine go
// through the out channel, which the write pump serializes onto the socket.
type streamConn struct {
	srv  *Server
	conn *websocket.Conn
	log  *slog.Logger

	out   chan any
	relay *relay.Relay
}

// handleStream upgrades the request to a websocket and runs the realtime
// control channel: JSON text frames carry control messages, binary frames
// carry PCM audio for the open stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept", "err", err)
		return
	}

	connID := uuid.NewString()
	ctx, span := observe.StartSpan(r.Context(), "ws.session",
		trace.WithAttributes(attribute.String("conn.id", connID)),
	)
	defer span.End()

	c := &streamConn{
		srv:  s,
		conn: conn,
		log:  observe.Logger(ctx).With("conn_id", connID),
		out:  make(chan any, outboundBuffer),
	}
	c.serve(ctx)
}

// serve runs the read loop until the client disconnects, then tears the
// stream down. Teardown always closes every provider session.
func (c *streamConn) serve(ctx context.Context) {
	c.log.Info("client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			c.log.Info("client disconnected", "err", err)
			break
		}
		switch typ {
		case websocket.MessageText:
			c.handleControl(ctx, data)
		case websocket.MessageBinary:
			if c.relay != nil {
				c.relay.Forward(data)
			}
		}
	}

	if c.relay != nil {
		c.relay.Close()
		c.relay = nil
	}
	close(c.out)
	<-writerDone
	c.conn.Close(websocket.StatusNormalClosure, "connection closed")
}

// writeLoop drains the outbound queue onto the socket. One writer per
// connection keeps concurrent result pumps from interleaving frames.
func (c *streamConn) writeLoop(ctx context.Context) {
	for msg := range c.out {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := wsjson.Write(wctx, c.conn, msg)
		cancel()
		if err != nil {
			c.log.Debug("websocket write failed", "err", err)
		}
	}
}

// send queues one outbound message. Blocks when the queue is full; the write
// pump keeps draining until the connection tears down, so senders always
// unblock.
func (c *streamConn) send(msg any) {
	c.out <- msg
}

func (c *streamConn) handleControl(ctx context.Context, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.send(streamErrorMessage{Type: msgStreamError, Message: "malformed control message"})
		return
	}

	switch msg.Type {
	case msgStartStream:
		c.startStream(ctx, msg)
	case msgEndStream:
		c.endStream()
	default:
		c.send(streamErrorMessage{Type: msgStreamError, Message: "unknown message type: " + msg.Type})
	}
}

// startStream establishes provider sessions for the requested vendors and
// acknowledges with the ones that came up. Unknown or unconfigured vendors
// are skipped; only a fully failed establishment is a stream error.
func (c *streamConn) startStream(ctx context.Context, msg clientMessage) {
	if c.relay != nil {
		c.send(streamErrorMessage{Type: msgStreamError, Message: "stream already started"})
		return
	}
	if len(msg.Providers) == 0 {
		c.send(streamErrorMessage{Type: msgStreamError, Message: "no providers selected"})
		return
	}

	cfg := stt.StreamConfig{
		SampleRate: msg.SampleRate,
		Channels:   msg.Channels,
		Encoding:   msg.Encoding,
		Language:   msg.Language,
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = c.srv.cfg.Audio.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = c.srv.cfg.Audio.Channels
	}

	rl := relay.New(c.srv.providers, c.srv.metrics, c.onResult, c.onError)
	established, err := rl.Start(ctx, msg.Providers, cfg)
	if err != nil {
		c.send(streamErrorMessage{Type: msgStreamError, Message: err.Error()})
		return
	}

	c.relay = rl
	c.log.Info("stream started", "providers", established)
	c.send(streamReadyMessage{Type: msgStreamReady, Providers: established})
}

// endStream closes all provider sessions and acknowledges. Safe when no
// stream is open.
func (c *streamConn) endStream() {
	if c.relay != nil {
		c.relay.Close()
		c.relay = nil
		c.log.Info("stream ended")
	}
	c.send(streamEndedMessage{Type: msgStreamEnded})
}

// onResult delivers one normalized transcript to the client. Called from the
// relay's per-session pump goroutines.
func (c *streamConn) onResult(provider, text string, isFinal bool, latency time.Duration) {
	c.send(transcriptResultMessage{
		Type:       msgTranscriptResult,
		Provider:   provider,
		Transcript: text,
		IsFinal:    isFinal,
		LatencyMs:  latency.Milliseconds(),
	})
}

// onError delivers one provider-scoped failure to the client.
func (c *streamConn) onError(provider string, err error) {
	c.log.Warn("provider error", "provider", provider, "err", err)
	c.send(serviceErrorMessage{
		Type:     msgServiceError,
		Provider: provider,
		Message:  err.Error(),
	})
}
