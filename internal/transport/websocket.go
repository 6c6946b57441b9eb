package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"mmv/internal/analysis"
	applog "mmv/internal/log"
)

// framePayload is the JSON shape sent to WebSocket clients.
type framePayload struct {
	Amplitude struct {
		Left  float64 `json:"left"`
		Right float64 `json:"right"`
		Mono  float64 `json:"mono"`
	} `json:"amplitude"`
	StdDev struct {
		Left  float64 `json:"left"`
		Right float64 `json:"right"`
		Mono  float64 `json:"mono"`
	} `json:"std_dev"`
	FFT []float32 `json:"fft"`
}

func newFramePayload(frame analysis.FeatureFrame) framePayload {
	var p framePayload
	p.Amplitude.Left = frame.AverageAmplitude.Left
	p.Amplitude.Right = frame.AverageAmplitude.Right
	p.Amplitude.Mono = frame.AverageAmplitude.Mono
	p.StdDev.Left = frame.StandardDeviation.Left
	p.StdDev.Right = frame.StandardDeviation.Right
	p.StdDev.Mono = frame.StandardDeviation.Mono
	p.FFT = frame.FFT
	return p
}

// WebSocketTransport serves /ws and fans each frame out to every
// connected client. Frames are queued on a bounded channel; when the
// queue is full the frame is dropped rather than stalling the caller.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan framePayload
	server    *http.Server
}

// NewWebSocketTransport starts the server on addr immediately.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	t := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Visualizer pages are served from anywhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan framePayload, 256),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", t.handleWebSocket)
	t.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		applog.Infof("transport: websocket listening on %s", addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("transport: websocket server: %v", err)
		}
	}()
	go t.handleBroadcasts()

	return t
}

func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("transport: websocket upgrade: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMu.Unlock()
	applog.Infof("transport: websocket client connected, total %d", total)

	go func() {
		// Block until the client goes away.
		if _, _, err := conn.ReadMessage(); err != nil {
			t.clientsMu.Lock()
			delete(t.clients, conn)
			t.clientsMu.Unlock()
			conn.Close()
			applog.Infof("transport: websocket client disconnected")
		}
	}()
}

func (t *WebSocketTransport) handleBroadcasts() {
	for payload := range t.broadcast {
		t.clientsMu.Lock()
		for client := range t.clients {
			if err := client.WriteJSON(payload); err != nil {
				applog.Warnf("transport: dropping websocket client: %v", err)
				client.Close()
				delete(t.clients, client)
			}
		}
		t.clientsMu.Unlock()
	}
}

// Send queues the frame for broadcast, dropping it if the queue is
// full.
func (t *WebSocketTransport) Send(frame analysis.FeatureFrame) error {
	select {
	case t.broadcast <- newFramePayload(frame):
	default:
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (t *WebSocketTransport) Close() error {
	t.clientsMu.Lock()
	for client := range t.clients {
		client.Close()
	}
	t.clients = make(map[*websocket.Conn]bool)
	t.clientsMu.Unlock()

	if t.server != nil {
		return t.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)
