package http

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// outbound is the envelope for every server-to-client message.
type outbound struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// client is one websocket connection bound to a lobby and, for players, a
// player identity. All writes go through the buffered send channel so a
// single writer goroutine owns the connection.
type client struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	send     chan outbound
	closed   bool
	lobbyID  string
	playerID string
	isMaster bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan outbound, 16),
	}
}

// writePump drains the send channel onto the websocket until the channel is
// closed or a write fails.
func (c *client) writePump(log *logrus.Logger) {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.WithError(err).Debug("ws write failed")
			return
		}
	}
}

// write queues a message, dropping it if the client's buffer is full so one
// slow connection never stalls a lobby. Writes after close are ignored; room
// broadcasts may still hold a reference to a connection that just went away.
func (c *client) write(msg outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// close stops the write pump. Idempotent.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writeError(message string) {
	c.write(outbound{Type: "error", Payload: map[string]string{"message": message}})
}

// room groups the connections of one lobby: at most one game master plus any
// number of players. It also tracks the per-question router state: which
// "everyone is done" signals were already emitted, and the ID assigned to the
// true answer of the current custom-answers pool.
type room struct {
	mu              sync.Mutex
	lobbyID         string
	master          *client
	players         map[string]*client
	signaled        map[string]bool
	correctAnswerID string
}

func newRoom(lobbyID string) *room {
	return &room{
		lobbyID:  lobbyID,
		players:  make(map[string]*client),
		signaled: make(map[string]bool),
	}
}

func (r *room) setMaster(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.master = c
}

func (r *room) addPlayer(playerID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[playerID] = c
}

// drop detaches the connection from the room without touching lobby state.
func (r *room) drop(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.master == c {
		r.master = nil
	}
	if c.playerID != "" && r.players[c.playerID] == c {
		delete(r.players, c.playerID)
	}
}

func (r *room) removePlayer(playerID string) *client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.players[playerID]
	delete(r.players, playerID)
	return c
}

// broadcast sends to every connection in the room, master included.
func (r *room) broadcast(msg outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.master != nil {
		r.master.write(msg)
	}
	for _, c := range r.players {
		c.write(msg)
	}
}

// toMaster sends a master-only notification, e.g. live answer progress.
func (r *room) toMaster(msg outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.master != nil {
		r.master.write(msg)
	}
}

// signalOnce emits the given readiness signal at most once per question. The
// underlying predicates stay true until the next question transition, so
// without this guard every late poll would re-announce completion.
func (r *room) signalOnce(kind string, msg outbound) {
	r.mu.Lock()
	if r.signaled[kind] {
		r.mu.Unlock()
		return
	}
	r.signaled[kind] = true
	r.mu.Unlock()
	r.broadcast(msg)
}

// resetQuestionState clears the once-flags and the pooled correct-answer ID
// when a new question begins.
func (r *room) resetQuestionState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signaled = make(map[string]bool)
	r.correctAnswerID = ""
}

// correctID returns the ID bound to the true answer of the current
// custom-answers pool, assigning it on first use so repeat fetches reuse the
// same ID.
func (r *room) correctID(generate func() string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.correctAnswerID == "" {
		r.correctAnswerID = generate()
	}
	return r.correctAnswerID
}

// roomRegistry maps lobby IDs to their rooms.
type roomRegistry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{rooms: make(map[string]*room)}
}

func (reg *roomRegistry) getOrCreate(lobbyID string) *room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[lobbyID]; ok {
		return r
	}
	r := newRoom(lobbyID)
	reg.rooms[lobbyID] = r
	return r
}

func (reg *roomRegistry) get(lobbyID string) (*room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[lobbyID]
	return r, ok
}

func (reg *roomRegistry) delete(lobbyID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, lobbyID)
}
