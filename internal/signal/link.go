// Package signal owns the WebSocket connection to the signaling relay and
// the reconnect policy around it. One physical connection multiplexes voice
// negotiation, room registration and presence/profile gossip.
package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/core"
	"github.com/hearthchat/hearth/internal/protocol"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Handler consumes decoded envelopes. Dispatch is strictly sequential in
// arrival order for one link; handlers must not assume any cross-peer
// ordering beyond that.
type Handler interface {
	HandleMessage(v any)
}

// Link is one live signaling connection. Outbound messages go through a
// buffered write pump; inbound messages are decoded and dispatched from a
// single read loop.
type Link struct {
	conn *websocket.Conn
	send chan core.Frame
	once sync.Once
	done chan struct{}
}

var _ core.SignalSender = (*Link)(nil)

// Dial connects to the signaling relay.
func Dial(ctx context.Context, url string) (*Link, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling: %w", err)
	}
	return &Link{
		conn: conn,
		send: make(chan core.Frame, sendBuffer),
		done: make(chan struct{}),
	}, nil
}

// TrySend encodes v and queues it. Fire-and-forget: a full queue or a
// closed link returns an error and the message is dropped.
func (l *Link) TrySend(v any) error {
	b, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	select {
	case <-l.done:
		return fmt.Errorf("link closed")
	default:
	}
	select {
	case l.send <- b:
		return nil
	default:
		return fmt.Errorf("link backpressure")
	}
}

// Close tears the socket down. Idempotent.
func (l *Link) Close() {
	l.once.Do(func() {
		close(l.done)
		_ = l.conn.Close()
	})
}

// Done is closed once the link is finished for any reason.
func (l *Link) Done() <-chan struct{} { return l.done }

// Run services the link until the socket closes or ctx is canceled. It
// returns after the read loop exits; the caller decides whether to
// reconnect.
func (l *Link) Run(ctx context.Context, h Handler) {
	go l.writePump(ctx)
	l.readPump(ctx, h)
}

func (l *Link) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case data := <-l.send:
			if err := l.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				l.Close()
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				l.Close()
				return
			}
		}
	}
}

func (l *Link) readPump(ctx context.Context, h Handler) {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "signal").Msg("readPump closing")
			return
		}
		v, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Msg("dropping undecodable envelope")
			continue
		}
		h.HandleMessage(v)
	}
}
