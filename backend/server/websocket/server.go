package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/adraglia/smashparty/backend/model"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 4096
	defaultWebsocketWriteBufferSize    = 4096
	defaultWebSocketMaxMessageSize     = 4096
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second

	// how long a fresh connection gets to send its join intent
	defaultJoinDeadline = 10 * time.Second

	// per-connection intent budget; a vote spammer gets dropped messages,
	// not a dropped connection
	intentRatePerSecond = 20
	intentBurst         = 40
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// GameService is the intent boundary of the core: the transport hands in
	// opaque per-connection identities and envelopes, and gets rejections
	// back for the caller only.
	GameService interface {
		JoinRoom(roomID, playerID, name string, wire model.Wire) error
		LeaveRoom(roomID, playerID string)
		HandleIntent(roomID, playerID string, env model.IntentEnvelope) error
	}

	Config struct {
		Logger      *zerolog.Logger
		GameService GameService
		ListenAddr  string
	}

	Server struct {
		svc GameService
		ws  *websocket.Upgrader
		*http.Server

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:    cfg.GameService,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/room/{roomID}", srv.play)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

func (srv *Server) play(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	if roomID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	go srv.handleSession(conn, roomID)
}

// handleSession owns one player connection: it waits for the join intent,
// attaches the wire, runs the receiver and sender pumps, and turns the
// connection ending (either way) into a leave.
func (srv *Server) handleSession(conn *websocket.Conn, roomID string) {
	playerID := uuid.NewString()
	logger := srv.logger.With().
		Str("roomID", roomID).
		Str("playerID", playerID).
		Logger()

	name, err := awaitJoin(conn)
	if err != nil {
		logger.Warn().Err(err).Msg("connection did not join")
		webSocketCloser(conn, &logger)
		return
	}

	wire := model.NewWire()
	if err = srv.svc.JoinRoom(roomID, playerID, name, wire); err != nil {
		logger.Warn().Err(err).Msg("join refused")
		closeWithReason(conn, err.Error(), &logger)
		return
	}
	logger.Debug().Str("name", name).Msg("session started")

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	wg.Add(2)
	go func() {
		srv.receiver(ctx, wg, conn, roomID, playerID, &logger)
		cancel()
	}()
	go func() {
		sender(ctx, wg, conn, wire.TX, &logger)
		cancel()
	}()

	wg.Wait()
	webSocketCloser(conn, &logger)
	srv.svc.LeaveRoom(roomID, playerID)
	logger.Debug().Msg("session ended")
}

// awaitJoin reads the first message of a fresh connection, which must be a
// join intent carrying the display name.
func awaitJoin(conn *websocket.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(defaultJoinDeadline)); err != nil {
		return "", err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}

	var env model.IntentEnvelope
	if err = json.Unmarshal(msg, &env); err != nil {
		return "", err
	}
	if env.Type != model.IntentJoin {
		return "", errors.New("first message must be a join intent")
	}
	var join model.JoinIntent
	if err = json.Unmarshal(env.Payload, &join); err != nil {
		return "", err
	}
	if join.Name == "" {
		return "", errors.New("join intent without a name")
	}
	return join.Name, nil
}

func (srv *Server) receiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	roomID string,
	playerID string,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	limiter := rate.NewLimiter(rate.Limit(intentRatePerSecond), intentBurst)

	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	if err := readDeadLineFunc(defaultPongWait); err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

RecvLoop:
	for {
		select {
		case <-ctx.Done():
			break RecvLoop
		default:
			_, msg, wsErr := conn.ReadMessage()
			if wsErr != nil {
				if websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					logger.Debug().Err(wsErr).Msg("connection closed")
				} else {
					logger.Warn().Err(wsErr).Msg("unexpected error during receive")
				}
				break RecvLoop
			}

			if !limiter.Allow() {
				logger.Warn().Msg("intent rate exceeded, message dropped")
				continue
			}

			var env model.IntentEnvelope
			if wsErr = json.Unmarshal(msg, &env); wsErr != nil {
				logger.Warn().Err(wsErr).Msg("failed to unmarshall incoming intent")
				continue
			}
			// rejections are unicast back on the wire by the service
			_ = srv.svc.HandleIntent(roomID, playerID, env)
		}
	}
}

func sender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	tx <-chan model.Event,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
			}
			logger.Trace().Msg("ping sent")

		case event, ok := <-tx:
			if !ok {
				break SendLoop
			}

			b, wsErr := json.Marshal(&event)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to marshall outgoing event")
				break SendLoop
			}

			wsErr = conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			if wsErr = conn.WriteMessage(websocket.TextMessage, b); wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing event")
				break SendLoop
			}
		}
	}
}

func closeWithReason(conn *websocket.Conn, reason string, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr == nil {
		wsErr = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	}
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to send close reason")
	}
	if wsErr = conn.Close(); wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage, []byte{})
		if wsErr != nil {
			logger.Error().Err(wsErr).Msg("failed to close websocket connection")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}
