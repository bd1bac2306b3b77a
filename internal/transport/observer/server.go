package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"scrapbot.ai/internal/bot"
	"scrapbot.ai/internal/observerproto"
)

// RunInfo identifies the run being streamed.
type RunInfo struct {
	RunID string
	Map   string
	Size  int
}

// Server fans agent snapshots out to websocket subscribers. It is a
// bot.Observer; slow subscribers lose snapshots instead of blocking the agent.
type Server struct {
	info RunInfo
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu   sync.Mutex
	subs map[string]*session
	last *bot.Snapshot
}

type session struct {
	id     string
	out    chan []byte
	every  int
	events bool
}

func NewServer(info RunInfo, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		info: info,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*session{},
	}
}

// Observe encodes s once per subscription shape and queues it.
func (s *Server) Observe(snap bot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := snap
	s.last = &cp
	if len(s.subs) == 0 {
		return
	}

	var full, bare []byte
	for _, sess := range s.subs {
		if sess.every > 1 && snap.Tick%uint64(sess.every) != 0 {
			continue
		}
		var b []byte
		if sess.events {
			if full == nil {
				full = s.encode(snap)
			}
			b = full
		} else {
			if bare == nil {
				stripped := snap
				stripped.Events = nil
				bare = s.encode(stripped)
			}
			b = bare
		}
		if b == nil {
			continue
		}
		select {
		case sess.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) encode(snap bot.Snapshot) []byte {
	b, err := json.Marshal(observerproto.SnapshotMsg{
		Type:            observerproto.TypeSnapshot,
		ProtocolVersion: observerproto.Version,
		RunID:           s.info.RunID,
		Snapshot:        snap,
	})
	if err != nil {
		s.log.Printf("encode snapshot tick=%d: %v", snap.Tick, err)
		return nil
	}
	return b
}

// Sessions is the number of connected subscribers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped counts snapshots not delivered because a subscriber was behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// StatusHandler serves the latest snapshot as JSON.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		if last == nil {
			http.Error(rw, "no snapshot yet", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(observerproto.SnapshotMsg{
			Type:            observerproto.TypeSnapshot,
			ProtocolVersion: observerproto.Version,
			RunID:           s.info.RunID,
			Snapshot:        *last,
		})
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		sess := &session{
			id:     fmt.Sprintf("O%d", s.nextID.Add(1)),
			out:    make(chan []byte, 64),
			every:  sub.Every,
			events: sub.Events,
		}

		hello, _ := json.Marshal(observerproto.HelloMsg{
			Type:            observerproto.TypeHello,
			ProtocolVersion: observerproto.Version,
			SessionID:       sess.id,
			RunID:           s.info.RunID,
			Map:             s.info.Map,
			Size:            s.info.Size,
		})
		// Join before HELLO so a client that saw HELLO gets every later snapshot.
		s.join(sess)
		defer s.leave(sess.id)

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			normalizeSubscribe(&sub)
			s.mu.Lock()
			sess.every = sub.Every
			sess.events = sub.Events
			s.mu.Unlock()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) join(sess *session) {
	s.mu.Lock()
	s.subs[sess.id] = sess
	n := len(s.subs)
	s.mu.Unlock()
	s.log.Printf("observer %s joined (every=%d sessions=%d)", sess.id, sess.every, n)
}

func (s *Server) leave(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	n := len(s.subs)
	s.mu.Unlock()
	s.log.Printf("observer %s left (sessions=%d)", id, n)
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.Every <= 0 {
		sub.Every = 1
	}
	if sub.Every > 1000 {
		sub.Every = 1000
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
