package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"fireflies/astar"
)

const writeWait = 2 * time.Second

// wsClient represents a connected client
type wsClient struct {
	conn *websocket.Conn
	id   string

	// mu serializes writes and guards params
	mu     sync.Mutex
	params ClientParams
}

// Server exposes a Simulation over HTTP and websockets.
type Server struct {
	sim      *Simulation
	cfg      Config
	upgrader websocket.Upgrader

	clients   map[string]*wsClient
	clientsMu sync.RWMutex
	nextID    atomic.Int64
}

func NewServer(sim *Simulation) *Server {
	return &Server{
		sim:     sim,
		cfg:     sim.cfg,
		clients: make(map[string]*wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}
}

// Routes registers the API and websocket handlers.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/nearby", s.handleNearby)
	mux.HandleFunc("/api/path", s.handlePath)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/ws", s.HandleWebSocket)
	return mux
}

// Run drives the simulation until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	tick := time.NewTicker(s.cfg.TickInterval)
	broadcast := time.NewTicker(s.cfg.BroadcastInterval)
	stats := time.NewTicker(s.cfg.StatsInterval)
	defer tick.Stop()
	defer broadcast.Stop()
	defer stats.Stop()

	dt := s.cfg.TickInterval.Seconds()
	log.Printf("Starting firefly simulation with %d fireflies", s.sim.swarm.Len())
	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping simulation...")
			return
		case <-tick.C:
			if err := s.sim.Step(dt); err != nil {
				log.Printf("step: %v", err)
			}
		case <-broadcast.C:
			s.Broadcast()
		case <-stats.C:
			s.sim.LogStats()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*") // Allow CORS
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// floatParam reads a float query parameter, using def when it is absent.
func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return v, nil
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	x, errX := floatParam(r, "x", s.cfg.WorldWidth/2)
	y, errY := floatParam(r, "y", s.cfg.WorldHeight/2)
	radius, errR := floatParam(r, "radius", s.cfg.NeighborRadius)
	if err := errors.Join(errX, errY, errR); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if radius < 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "radius must not be negative"})
		return
	}

	views := s.sim.Nearby(x, y, radius)
	writeJSON(w, http.StatusOK, NearbyResponse{
		Center:    Point{X: x, Y: y},
		Radius:    radius,
		Count:     len(views),
		Fireflies: views,
	})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	sx, err1 := intParam(r, "sx", 0)
	sy, err2 := intParam(r, "sy", 0)
	gx, err3 := intParam(r, "gx", s.cfg.PathCols-1)
	gy, err4 := intParam(r, "gy", s.cfg.PathRows-1)
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	start, goal := astar.Cell{X: sx, Y: sy}, astar.Cell{X: gx, Y: gy}
	res, err := s.sim.Path(start, goal)
	resp := PathResponse{
		Start:    start,
		Goal:     goal,
		Expanded: res.Expanded,
		Length:   len(res.Path),
		Path:     res.Path,
	}
	switch {
	case err == nil:
		resp.Status = PathOK
	case errors.Is(err, astar.ErrNoPath):
		resp.Status = PathNoPath
	case errors.Is(err, astar.ErrIterationLimit):
		resp.Status = PathIterationLimit
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Stats())
}

// HandleWebSocket handles WebSocket connections
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	client := &wsClient{
		conn: conn,
		id:   fmt.Sprintf("client-%d", s.nextID.Add(1)),
		params: ClientParams{
			X:        s.cfg.WorldWidth / 2,
			Y:        s.cfg.WorldHeight / 2,
			Radius:   s.cfg.NeighborRadius * 4,
			Encoding: EncodingJSON,
		},
	}

	s.clientsMu.Lock()
	s.clients[client.id] = client
	s.clientsMu.Unlock()
	log.Printf("New WebSocket client connected: %s", client.id)

	defer func() {
		conn.Close()
		s.clientsMu.Lock()
		delete(s.clients, client.id)
		s.clientsMu.Unlock()
		log.Printf("WebSocket client disconnected: %s", client.id)
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var params ClientParams
		if err := json.Unmarshal(message, &params); err != nil || params.Type != MsgClientParams {
			s.sendError(client, "expected client_params message")
			continue
		}
		if params.Radius <= 0 {
			params.Radius = s.cfg.NeighborRadius
		}
		if params.Encoding != EncodingMsgpack {
			params.Encoding = EncodingJSON
		}

		client.mu.Lock()
		client.params = params
		client.mu.Unlock()
		log.Printf("Updated client %s parameters: x=%.2f, y=%.2f, radius=%.2f, encoding=%s",
			client.id, params.X, params.Y, params.Radius, params.Encoding)

		// Send immediate update with the new parameters
		s.sendFrame(client)
	}
}

// encodeFrame serializes f for the requested encoding.
func encodeFrame(f Frame, encoding string) (int, []byte, error) {
	if encoding == EncodingMsgpack {
		data, err := msgpack.Marshal(f)
		return websocket.BinaryMessage, data, err
	}
	data, err := json.Marshal(f)
	return websocket.TextMessage, data, err
}

func (s *Server) sendFrame(c *wsClient) {
	c.mu.Lock()
	params := c.params
	c.mu.Unlock()

	views := s.sim.Nearby(params.X, params.Y, params.Radius)
	frame := Frame{
		Type:      MsgFrame,
		Tick:      s.sim.Stats().Ticks,
		Center:    Point{X: params.X, Y: params.Y},
		Radius:    params.Radius,
		Count:     len(views),
		Fireflies: views,
		Time:      time.Now().UnixMilli(),
	}
	msgType, data, err := encodeFrame(frame, params.Encoding)
	if err != nil {
		log.Printf("Error encoding frame for client %s: %v", c.id, err)
		return
	}
	s.write(c, msgType, data)
}

func (s *Server) sendError(c *wsClient, msg string) {
	data, err := json.Marshal(ErrorResponse{Type: MsgError, Error: msg})
	if err != nil {
		return
	}
	s.write(c, websocket.TextMessage, data)
}

func (s *Server) write(c *wsClient, msgType int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		log.Printf("Error sending to client %s: %v", c.id, err)
	}
}

// Broadcast sends a frame to every connected client
func (s *Server) Broadcast() {
	s.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		s.sendFrame(c)
	}
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
