// Package server exposes the live preview over HTTP: a minimal HTML shell
// and a websocket that streams the controller's render-state events to the
// browser. The server is a transport for the typed event channel, not a
// presentation layer; everything it sends was already sanitized upstream.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"diaview/internal/logging"
	"diaview/internal/preview"
	"diaview/internal/types"
)

// writeWait is the time allowed to write a message to a peer.
const writeWait = 10 * time.Second

// wireEvent is the JSON shape pushed to the browser.
type wireEvent struct {
	State   string `json:"state"`
	Format  string `json:"format,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// client is one connected websocket peer.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// PreviewServer serves the preview page and fans events out to connected
// clients.
type PreviewServer struct {
	host   string
	port   int
	title  string
	logger logging.Logger

	mutex   sync.Mutex
	clients map[*client]struct{}
	latest  []byte
}

// New creates a preview server.
func New(host string, port int, title string, logger logging.Logger) *PreviewServer {
	return &PreviewServer{
		host:    host,
		port:    port,
		title:   title,
		logger:  logger.WithComponent("preview_server"),
		clients: make(map[*client]struct{}),
	}
}

// Addr returns the listen address.
func (s *PreviewServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Run serves until the context is cancelled, forwarding every controller
// event to all connected clients. New clients immediately receive the most
// recent event so a late-opening browser tab is not blank.
func (s *PreviewServer) Run(ctx context.Context, events <-chan preview.Event) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)

	httpServer := &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.broadcast(ctx, ev)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "preview server listening", "addr", s.Addr())

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// broadcast encodes one event and queues it on every client.
func (s *PreviewServer) broadcast(ctx context.Context, ev preview.Event) {
	payload, err := json.Marshal(encodeEvent(ev))
	if err != nil {
		s.logger.Error(ctx, err, "encoding preview event")
		return
	}

	s.mutex.Lock()
	s.latest = payload
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client: drop the event, it only needs the latest state.
		}
	}
	s.mutex.Unlock()
}

// encodeEvent maps a controller event to its wire shape. PNG payloads are
// base64-encoded; SVG travels as text.
func encodeEvent(ev preview.Event) wireEvent {
	wire := wireEvent{State: ev.State.String(), Message: ev.Message}
	if ev.State == preview.StateResult {
		wire.Format = string(ev.Format)
		if ev.Format == types.FormatPNG {
			wire.Content = base64.StdEncoding.EncodeToString(ev.Content)
		} else {
			wire.Content = string(ev.Content)
		}
	}
	return wire
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 16),
	}

	s.mutex.Lock()
	s.clients[c] = struct{}{}
	if s.latest != nil {
		c.send <- s.latest
	}
	count := len(s.clients)
	s.mutex.Unlock()

	s.logger.Debug(r.Context(), "client connected", "total", count)

	go s.writePump(c)
}

// writePump drains one client's queue; any write failure disconnects it.
func (s *PreviewServer) writePump(c *client) {
	ctx := c.conn.CloseRead(context.Background())
	defer s.disconnect(c)

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *PreviewServer) disconnect(c *client) {
	s.mutex.Lock()
	delete(s.clients, c)
	s.mutex.Unlock()
	c.conn.Close(websocket.StatusNormalClosure, "")
}

// checkOrigin validates the request origin for security.
func (s *PreviewServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	allowedOrigins := []string{
		s.Addr(),
		fmt.Sprintf("localhost:%d", s.port),
		fmt.Sprintf("127.0.0.1:%d", s.port),
	}

	for _, allowed := range allowedOrigins {
		if originURL.Host == allowed {
			return true
		}
	}

	return false
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexPage, s.title)
}

// indexPage is the preview shell: it renders the latest websocket event and
// reconnects when the connection drops.
const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { margin: 0; font-family: system-ui, sans-serif; }
#status { padding: 4px 12px; font-size: 12px; color: #666; border-bottom: 1px solid #eee; }
#diagram { padding: 16px; }
#diagram svg { max-width: 100%%; height: auto; }
.error { color: #b00020; white-space: pre-wrap; font-family: monospace; }
</style>
</head>
<body>
<div id="status">connecting…</div>
<div id="diagram"></div>
<script>
(function () {
  var status = document.getElementById('status');
  var diagram = document.getElementById('diagram');
  function connect() {
    var ws = new WebSocket('ws://' + location.host + '/ws');
    ws.onopen = function () { status.textContent = 'connected'; };
    ws.onclose = function () {
      status.textContent = 'disconnected, retrying…';
      setTimeout(connect, 1000);
    };
    ws.onmessage = function (msg) {
      var ev = JSON.parse(msg.data);
      if (ev.state === 'loading') {
        status.textContent = 'rendering…';
        return;
      }
      if (ev.state === 'error') {
        status.textContent = 'error';
        diagram.innerHTML = '';
        var pre = document.createElement('pre');
        pre.className = 'error';
        pre.textContent = ev.message;
        diagram.appendChild(pre);
        return;
      }
      status.textContent = 'rendered';
      if (ev.format === 'png') {
        diagram.innerHTML = '';
        var img = document.createElement('img');
        img.src = 'data:image/png;base64,' + ev.content;
        diagram.appendChild(img);
      } else {
        diagram.innerHTML = ev.content;
      }
    };
  }
  connect();
})();
</script>
</body>
</html>
`
