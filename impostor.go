// Impostor web shell
//
// Serves the pass-the-device game to a browser on the shared device.
// The browser only renders; every game decision is made server-side by an
// impostor.Controller owned by a per-game Hub goroutine.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - Several tabs may watch the same game; all of them get the same state
// - Secret word and role are only sent while a role is being revealed
// - Word draw runs off the hub goroutine so the FETCHING state is pushed immediately
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - Devices identified by a UUID cookie
// - QR code of the game URL, to open it on the phone that gets passed around

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/impostor/games/impostor"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "set_player_count", "start_game", "reveal_role", "finish_turn", "reset_game"
	Delta int    `json:"delta,omitempty"` // set_player_count
}

// StateMessage is everything the page needs to draw the current stage.
type StateMessage struct {
	Type          string         `json:"type"` // "state"
	Stage         impostor.Stage `json:"stage"`
	PlayerCount   int            `json:"player_count"`
	MinPlayers    int            `json:"min_players"`
	MaxPlayers    int            `json:"max_players"`
	CurrentPlayer int            `json:"current_player,omitempty"` // 1-based player ID holding the device
	TotalPlayers  int            `json:"total_players,omitempty"`
	IsImpostor    bool           `json:"is_impostor,omitempty"` // REVEAL_ROLE only
	Word          string         `json:"word,omitempty"`        // REVEAL_ROLE only, never for the impostor
	Category      string         `json:"category,omitempty"`    // REVEAL_ROLE only, never for the impostor
	Error         string         `json:"error,omitempty"`
}

// Notices sent to a single client when its command is rejected.
const (
	noticeUnavailable     = "Esa acción no está disponible ahora."
	noticeAlreadyStarting = "Ya se está preparando una partida."
)

// SimpleMessage is for notifications sent to a single client ("error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newStateMessage(snap impostor.Snapshot) StateMessage {
	msg := StateMessage{
		Type:        "state",
		Stage:       snap.Stage,
		PlayerCount: snap.PlayerCount,
		MinPlayers:  impostor.MinPlayers,
		MaxPlayers:  impostor.MaxPlayers,
		Error:       snap.Error,
	}

	switch snap.Stage {
	case impostor.StagePassDevice, impostor.StageRevealRole:
		player, ok := snap.CurrentPlayer()
		if !ok {
			break
		}

		msg.CurrentPlayer = player.ID
		msg.TotalPlayers = len(snap.Players)

		if snap.Stage != impostor.StageRevealRole {
			break
		}

		msg.IsImpostor = player.IsImpostor
		if !player.IsImpostor && snap.SecretWord != nil {
			msg.Word = snap.SecretWord.Word
			msg.Category = snap.SecretWord.Category
		}
	case impostor.StageGameStart:
		msg.TotalPlayers = len(snap.Players)
	}

	return msg
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	deviceID string
}

type command struct {
	client *Client
	msg    ClientMessage
}

type fetchResult struct {
	client *Client
	err    error
}

type Hub struct {
	id   string
	game *impostor.Controller

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan command
	fetching chan impostor.Snapshot
	fetched  chan fetchResult
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, gameID string, provider impostor.WordProvider) *Hub {
	now := time.Now()

	h := &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		fetching:   make(chan impostor.Snapshot),
		fetched:    make(chan fetchResult),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	h.game = impostor.NewController(h.announcing(provider), impostor.WithPlayerCount(cfg.players))

	return h
}

// announcing wraps p so that the hub hears about a draw as soon as the
// controller has entered FETCHING, and can push that stage right away.
// The snapshot is taken here, before the draw can settle.
func (h *Hub) announcing(p impostor.WordProvider) impostor.WordProvider {
	return impostor.ProviderFunc(func(ctx context.Context) (impostor.WordEntry, error) {
		select {
		case h.fetching <- h.game.Snapshot():
		case <-h.done:
		case <-ctx.Done():
			return impostor.WordEntry{}, ctx.Err()
		}

		return p.FetchWord(ctx)
	})
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) run(ctx context.Context, cfg *Config) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case <-h.done:
			return

		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.sendTo(c, newStateMessage(h.game.Snapshot()))

		case c := <-h.unreg:
			h.touch()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case cmd := <-h.commands:
			h.touch()
			h.handleCommand(ctx, cfg, cmd)

		case snap := <-h.fetching:
			h.broadcast(newStateMessage(snap))

		case res := <-h.fetched:
			h.touch()
			h.handleFetched(cfg, res)
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, cfg *Config, cmd command) {
	var err error

	switch cmd.msg.Type {
	case "set_player_count":
		err = h.game.SetPlayerCount(cmd.msg.Delta)
	case "start_game":
		go h.startGame(ctx, cmd.client)

		return
	case "reveal_role":
		err = h.game.RevealRole()
	case "finish_turn":
		err = h.game.FinishTurn()
	case "reset_game":
		err = h.game.ResetGame()
	default:
		return
	}

	if err != nil {
		logf(cfg, "GAMES: Rejected %q in %s: %v", cmd.msg.Type, h.id, err)
		h.sendTo(cmd.client, SimpleMessage{
			Type:    "error",
			Message: noticeUnavailable,
		})

		return
	}

	if cmd.msg.Type == "reset_game" {
		logf(cfg, "GAMES: Reset %s", h.id)
	}

	h.broadcastState()
}

// startGame runs the draw outside the hub goroutine and reports back.
func (h *Hub) startGame(ctx context.Context, c *Client) {
	err := h.game.StartGame(ctx)

	select {
	case h.fetched <- fetchResult{client: c, err: err}:
	case <-h.done:
	case <-ctx.Done():
	}
}

func (h *Hub) handleFetched(cfg *Config, res fetchResult) {
	switch {
	case errors.Is(res.err, impostor.ErrInvalidStage):
		notice := noticeUnavailable
		if h.game.Stage() == impostor.StageFetching {
			notice = noticeAlreadyStarting
		}

		h.sendTo(res.client, SimpleMessage{
			Type:    "error",
			Message: notice,
		})

		return
	case res.err != nil:
		logf(cfg, "GAMES: Failed to start %s: %v", h.id, res.err)
	default:
		logf(cfg, "GAMES: Started %s with %d players", h.id, h.game.Snapshot().PlayerCount)
	}

	h.broadcastState()
}

// sendTo must only be called from the hub goroutine.
func (h *Hub) sendTo(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastState() {
	h.broadcast(newStateMessage(h.game.Snapshot()))
}

func (h *Hub) broadcast(msg any) {
	for client := range h.clients {
		h.sendTo(client, msg)
	}
}

// closeAll disconnects all clients of this hub.
func (h *Hub) closeAll() {
	h.stop()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const deviceCookieName = "impostor_id"

func getOrSetDeviceID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(deviceCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     deviceCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	provider    impostor.WordProvider

	ctx context.Context
	cfg *Config
}

func newGameManager(ctx context.Context, cfg *Config, provider impostor.WordProvider) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		provider:    provider,
		ctx:         ctx,
		cfg:         cfg,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gm.cfg, gameID, gm.provider)
	gm.hubs[gameID] = hub
	go hub.run(gm.ctx, gm.cfg)
	return hub
}

func (gm *GameManager) count() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.hubs)
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap removes hubs that have been idle since before cutoff.
func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		if hub.idleSince().Before(cutoff) {
			delete(gm.hubs, id)
			hub.stop()
			logf(gm.cfg, "GAMES: Reaped idle game %s after %s", id, time.Since(hub.createdAt).Round(time.Second))
		}
	}
}

func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.ctx.Done():
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		deviceID := getOrSetDeviceID(w, r)

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(gm.cfg, "ERROR: Websocket upgrade for %s failed: %v", gameID, err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			deviceID: deviceID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(gm.cfg, "GAMES: Device %s connected to %s from %s", deviceID, gameID, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "set_player_count", "start_game", "reveal_role", "finish_turn", "reset_game":
			select {
			case h.commands <- command{client: c, msg: msg}:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/impostor/index.html")
		if err != nil {
			http.Error(w, "missing page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetDeviceID(w, r)

		_, _ = w.Write(data)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerImpostorGame loads the word catalog and mounts the game at path.
func registerImpostorGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router) error {
	catalog, err := cfg.catalog()
	if err != nil {
		return err
	}

	logf(cfg, "START: Loaded %d words in %d categories", len(catalog), len(catalog.Categories()))

	gm := newGameManager(ctx, cfg, impostor.NewCatalogProvider(catalog, cfg.fetchDelay))

	registerImpostorRoutes(cfg, path, mux, gm)

	return nil
}

// registerImpostorRoutes sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerImpostorRoutes(cfg *Config, path string, mux *httprouter.Router, gm *GameManager) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
