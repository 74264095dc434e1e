package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"ws-live-server/transcoder"
)

// readPump handles incoming WebSocket messages from the client. Payloads
// are ignored; the pump exists to notice when the peer goes away.
func (c *Client) readPump() {
	defer c.requestClose(nil)

	c.conn.SetReadLimit(WebSocketReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketReadDeadline))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.manager.log.Debug("websocket read error", "client", c.id, "error", err)
			}
			return
		}
	}
}

// requestClose wakes the relay. reason is the close frame the server should
// send, or nil when the peer is already gone.
func (c *Client) requestClose(reason *closeReason) {
	c.closeOnce.Do(func() {
		c.shutdown = reason
		close(c.closing)
	})
}

// relay is the client's event loop: a re-armed timer drains the session
// with Poll and writes each chunk as a binary frame.
func (c *Client) relay() {
	opts := c.manager.opts
	timer := time.NewTimer(opts.InitialDelay)
	ping := time.NewTicker(WebSocketPingInterval)

	defer func() {
		timer.Stop()
		ping.Stop()
		c.session.Stop()
		c.manager.RemoveClient(c)
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case <-c.closing:
			if c.shutdown != nil {
				c.writeClose(*c.shutdown)
			} else {
				c.recordClose("client_gone")
			}
			return

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.recordClose("write_failed")
				return
			}

		case <-timer.C:
			delay, finished := c.drain()
			if finished {
				return
			}
			timer.Reset(delay)
		}
	}
}

// drain relays up to MaxPollsPerTick responses. It returns the delay until
// the next tick, or finished once the connection has been closed.
func (c *Client) drain() (time.Duration, bool) {
	opts := c.manager.opts
	log := c.manager.log

	sawData := false
	for i := 0; i < opts.MaxPollsPerTick; i++ {
		r, err := c.session.Poll()
		switch {
		case errors.Is(err, transcoder.ErrEmpty):
			if sawData {
				return opts.ActiveDelay, false
			}
			return opts.IdleDelay, false
		case errors.Is(err, transcoder.ErrDisconnected):
			log.Warn("transcoder exited without end of stream", "client", c.id, "source", c.source)
			c.writeClose(c.endReason().withText("transcoder exited"))
			return 0, true
		case err != nil:
			log.Error("session poll failed", "client", c.id, "error", err)
			c.writeClose(reasonError.withText(err.Error()))
			return 0, true
		}

		switch r.Kind {
		case transcoder.KindData:
			if !c.writeFrame(r.Data) {
				return 0, true
			}
			sawData = true
		case transcoder.KindEndOfStream:
			log.Info("transcoder finished", "client", c.id, "bytes_sent", c.bytesSent.Load())
			c.writeClose(c.endReason())
			return 0, true
		case transcoder.KindError:
			log.Error("transcoding failed", "client", c.id, "source", c.source, "error", r.Err)
			c.writeClose(reasonError.withText(r.Err.Error()))
			return 0, true
		}
	}
	return opts.ActiveDelay, false
}

func (c *Client) writeFrame(data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteDeadline))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.manager.log.Debug("write error", "client", c.id, "error", err)
		c.recordClose("write_failed")
		return false
	}
	c.bytesSent.Add(int64(len(data)))
	c.framesSent.Add(1)
	if c.manager.metrics != nil {
		c.manager.metrics.AddFrameSent(len(data))
	}
	return true
}

// endReason is the close code for a finished stream: normal, or empty when
// the transcoder never produced a byte.
func (c *Client) endReason() closeReason {
	if c.bytesSent.Load() == 0 {
		return reasonEmpty
	}
	return reasonNormal
}

func (c *Client) writeClose(reason closeReason) {
	writeClose(c.conn, reason)
	c.recordClose(reason.label)
}

func (c *Client) recordClose(label string) {
	if c.manager.metrics != nil {
		c.manager.metrics.IncConnectionsClosed(label)
	}
}

// writeClose sends a close frame; errors mean the peer is already gone.
func writeClose(conn *websocket.Conn, reason closeReason) {
	_ = conn.WriteControl(websocket.CloseMessage, reason.payload(), time.Now().Add(WebSocketWriteDeadline))
}

func (c *Client) stats() ClientStats {
	return ClientStats{
		ID:          c.id,
		Source:      c.source,
		State:       c.session.State().String(),
		Pid:         c.session.Pid(),
		BytesRead:   c.session.BytesRead(),
		BytesSent:   c.bytesSent.Load(),
		FramesSent:  c.framesSent.Load(),
		Pending:     c.session.Pending(),
		ConnectedAt: c.connectedAt,
		Uptime:      time.Since(c.connectedAt).Seconds(),
	}
}
