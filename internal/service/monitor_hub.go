package service

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"exam_platform_backend/pkg/logger"
	"exam_platform_backend/pkg/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	boardInterval  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WatchEvent is one message pushed to invigilation watchers.
type WatchEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Watcher is one invigilator's live view of one exam.
type Watcher struct {
	Hub    *MonitorHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
	ExamID uint
}

// readPump drains the connection. Watchers are read-only; inbound frames
// only feed the keepalive.
func (w *Watcher) readPump() {
	defer func() {
		w.Hub.unregister <- w
		w.Conn.Close()
	}()
	w.Conn.SetReadLimit(maxMessageSize)
	w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	w.Conn.SetPongHandler(func(string) error {
		w.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := w.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("monitor socket closed unexpectedly", zap.Error(err), zap.Uint("user_id", w.UserID))
			}
			break
		}
	}
}

func (w *Watcher) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-w.Send:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				w.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// MonitorHub fans the invigilation board out to connected watchers. Every
// exam with at least one watcher gets a fresh board on a fixed tick, and
// service-side events (flags, terminations) are pushed as they happen.
type MonitorHub struct {
	mu       sync.RWMutex
	watchers map[uint]map[*Watcher]struct{}

	register   chan *Watcher
	unregister chan *Watcher
	events     chan queuedEvent
	done       chan struct{}

	board func(examID uint) (*InvigilationBoard, error)
}

type queuedEvent struct {
	examID  uint
	payload []byte
}

func NewMonitorHub(board func(examID uint) (*InvigilationBoard, error)) *MonitorHub {
	return &MonitorHub{
		watchers:   make(map[uint]map[*Watcher]struct{}),
		register:   make(chan *Watcher),
		unregister: make(chan *Watcher),
		events:     make(chan queuedEvent, 64),
		done:       make(chan struct{}),
		board:      board,
	}
}

func (h *MonitorHub) Run() {
	ticker := time.NewTicker(boardInterval)
	defer ticker.Stop()

	for {
		select {
		case watcher := <-h.register:
			h.mu.Lock()
			if h.watchers[watcher.ExamID] == nil {
				h.watchers[watcher.ExamID] = make(map[*Watcher]struct{})
			}
			h.watchers[watcher.ExamID][watcher] = struct{}{}
			h.mu.Unlock()
			monitoring.MonitorWatchers.Inc()
			h.pushBoard(watcher.ExamID)

		case watcher := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.watchers[watcher.ExamID]; ok {
				if _, ok := set[watcher]; ok {
					delete(set, watcher)
					close(watcher.Send)
					monitoring.MonitorWatchers.Dec()
				}
				if len(set) == 0 {
					delete(h.watchers, watcher.ExamID)
				}
			}
			h.mu.Unlock()

		case ev := <-h.events:
			h.push(ev.examID, ev.payload)

		case <-ticker.C:
			for _, examID := range h.watchedExams() {
				h.pushBoard(examID)
			}

		case <-h.done:
			return
		}
	}
}

// Broadcast queues an event for every watcher of the exam. Never blocks the
// caller.
func (h *MonitorHub) Broadcast(examID uint, event WatchEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case h.events <- queuedEvent{examID: examID, payload: payload}:
	default:
	}
}

func (h *MonitorHub) Stop() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	closed := 0
	for examID, set := range h.watchers {
		for watcher := range set {
			close(watcher.Send)
			closed++
		}
		delete(h.watchers, examID)
	}
	monitoring.MonitorWatchers.Set(0)
	logger.Log.Info("monitor hub stopped", zap.Int("closed_connections", closed))
}

func (h *MonitorHub) watchedExams() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint, 0, len(h.watchers))
	for examID := range h.watchers {
		ids = append(ids, examID)
	}
	return ids
}

func (h *MonitorHub) pushBoard(examID uint) {
	if h.board == nil {
		return
	}
	board, err := h.board(examID)
	if err != nil {
		logger.Log.Error("monitor board build failed", zap.Uint("exam_id", examID), zap.Error(err))
		return
	}
	payload, err := json.Marshal(WatchEvent{Type: "BOARD", Data: board})
	if err != nil {
		return
	}
	h.push(examID, payload)
}

func (h *MonitorHub) push(examID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for watcher := range h.watchers[examID] {
		select {
		case watcher.Send <- payload:
		default:
		}
	}
}

// ServeMonitorWs upgrades the connection and attaches the watcher to the
// exam's board feed.
func ServeMonitorWs(hub *MonitorHub, w http.ResponseWriter, r *http.Request, userID, examID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("monitor socket upgrade failed", zap.Error(err), zap.Uint("user_id", userID))
		return
	}
	watcher := &Watcher{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		UserID: userID,
		ExamID: examID,
	}
	hub.register <- watcher

	go watcher.writePump()
	go watcher.readPump()
}
