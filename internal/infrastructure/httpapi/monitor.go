package httpapi

import (
    "encoding/json"
    "net/http"
    "strings"
    "sync"
    "sync/atomic"
    "time"

    "github.com/gorilla/websocket"
    "github.com/rs/zerolog"

    "github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

// DefaultMonitorQueue bounds the events waiting for the broadcaster.
const DefaultMonitorQueue = 1024

// MonitorHub fans ChangeEvents out to websocket clients. It implements
// usecase.EventSink: Publish only enqueues, and a single broadcaster
// goroutine does the websocket writes.
type MonitorHub struct {
    logger   *zerolog.Logger
    mu       sync.RWMutex
    clients  map[*websocket.Conn]eventFilter
    upgrader websocket.Upgrader
    wmu      sync.Mutex

    events  chan domain.ChangeEvent
    quit    chan struct{}
    done    chan struct{}
    once    sync.Once
    dropped atomic.Int64
}

func NewMonitorHub(logger *zerolog.Logger) *MonitorHub {
    return newMonitorHub(logger, DefaultMonitorQueue)
}

func newMonitorHub(logger *zerolog.Logger, queue int) *MonitorHub {
    if logger == nil {
        nop := zerolog.Nop()
        logger = &nop
    }
    h := &MonitorHub{
        logger:   logger,
        clients:  make(map[*websocket.Conn]eventFilter),
        upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
        events:   make(chan domain.ChangeEvent, queue),
        quit:     make(chan struct{}),
        done:     make(chan struct{}),
    }
    go h.broadcast()
    return h
}

// eventFilter restricts a client to some event types; nil passes everything.
type eventFilter map[domain.EventType]struct{}

func (f eventFilter) allows(t domain.EventType) bool {
    if f == nil { return true }
    _, ok := f[t]
    return ok
}

// parseEventFilter reads ?types=transaction_added,transaction_updated.
func parseEventFilter(raw string) eventFilter {
    if strings.TrimSpace(raw) == "" { return nil }
    f := eventFilter{}
    for _, t := range strings.Split(raw, ",") {
        if t = strings.TrimSpace(t); t != "" {
            f[domain.EventType(t)] = struct{}{}
        }
    }
    return f
}

// HandleWS streams ChangeEvents as JSON text frames until the client goes away.
func (h *MonitorHub) HandleWS(w http.ResponseWriter, r *http.Request) {
    filter := parseEventFilter(r.URL.Query().Get("types"))
    c, err := h.upgrader.Upgrade(w, r, nil)
    if err != nil {
        h.logger.Debug().Err(err).Msg("monitor upgrade failed")
        return
    }
    h.mu.Lock()
    h.clients[c] = filter
    n := len(h.clients)
    h.mu.Unlock()
    h.logger.Debug().Int("clients", n).Msg("monitor client connected")
    _ = c.SetReadDeadline(time.Time{})
    for {
        // keepalive reads to detect client close
        if _, _, err := c.ReadMessage(); err != nil {
            break
        }
    }
    h.drop(c)
}

func (h *MonitorHub) drop(c *websocket.Conn) {
    h.mu.Lock()
    _, ok := h.clients[c]
    delete(h.clients, c)
    h.mu.Unlock()
    if ok {
        _ = c.Close()
    }
}

// Clients returns the number of connected websocket clients.
func (h *MonitorHub) Clients() int {
    h.mu.RLock()
    defer h.mu.RUnlock()
    return len(h.clients)
}

// Publish never blocks. An event that finds the queue full is dropped and
// counted.
func (h *MonitorHub) Publish(ev domain.ChangeEvent) {
    select {
    case <-h.quit:
        return
    default:
    }
    select {
    case h.events <- ev:
    default:
        if n := h.dropped.Add(1); n == 1 || n%1000 == 0 {
            h.logger.Warn().Int64("dropped", n).Msg("monitor queue full, events dropped")
        }
    }
}

// Dropped returns how many events were discarded because the queue was full.
func (h *MonitorHub) Dropped() int64 {
    return h.dropped.Load()
}

func (h *MonitorHub) broadcast() {
    defer close(h.done)
    for {
        select {
        case <-h.quit:
            return
        case ev := <-h.events:
            h.send(ev)
        }
    }
}

func (h *MonitorHub) send(ev domain.ChangeEvent) {
    data, err := json.Marshal(ev)
    if err != nil {
        return
    }
    // snapshot matching clients to avoid holding read lock during writes
    h.mu.RLock()
    clients := make([]*websocket.Conn, 0, len(h.clients))
    for c, f := range h.clients {
        if f.allows(ev.Type) { clients = append(clients, c) }
    }
    h.mu.RUnlock()

    // serialize writes to prevent concurrent writes to same conn
    var dead []*websocket.Conn
    h.wmu.Lock()
    for _, c := range clients {
        _ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
        if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
            dead = append(dead, c)
        }
    }
    h.wmu.Unlock()
    for _, c := range dead {
        h.drop(c)
    }
}

// Close stops the broadcaster and disconnects every websocket client.
// Events still queued are discarded.
func (h *MonitorHub) Close() {
    h.once.Do(func() {
        close(h.quit)
        <-h.done
    })
    h.mu.Lock()
    clients := h.clients
    h.clients = make(map[*websocket.Conn]eventFilter)
    h.mu.Unlock()
    h.wmu.Lock()
    for c := range clients {
        _ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(time.Second))
        _ = c.Close()
    }
    h.wmu.Unlock()
}
