package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"

	"rankit/domain"
	"rankit/shared/logger"
)

const joinReplyTimeout = time.Second * 5

// LobbyService is what the handlers need from the lobby actor.
type LobbyService interface {
	CreateRoom(ctx context.Context, playerId, nickname string, overrides domain.RoomConfigPatch, private bool, session NetworkSession) string
	ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest)
	GetPublicGames(ctx context.Context) []roomDescription
}

// TokenManager mints and checks the per-player reconnect tokens.
type TokenManager interface {
	Generate(id string, now time.Time) (string, error)
	Verify(token string) (string, error)
}

type GameHandler struct {
	lobby     LobbyService
	tokens    TokenManager
	publicURL string
	upgrader  websocket.Upgrader
}

func NewGameHandler(lobby LobbyService, tokens TokenManager, publicURL string) *GameHandler {
	return &GameHandler{
		lobby:     lobby,
		tokens:    tokens,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // origin gate runs in middleware
		},
	}
}

type publicGameResponse struct {
	Id           string `json:"id"`
	PlayersCount int    `json:"playersCount"`
	ItemsCount   int    `json:"itemsCount"`
	ItemsPerGame int    `json:"itemsPerGame"`
	Started      bool   `json:"started"`
}

func (h *GameHandler) GetPublicGamesHandler(ctx *gin.Context) {
	descs := h.lobby.GetPublicGames(ctx.Request.Context())
	resp := make([]publicGameResponse, 0, len(descs))
	for _, d := range descs {
		resp = append(resp, publicGameResponse{
			Id:           d.id,
			PlayersCount: d.playersCount,
			ItemsCount:   d.itemsCount,
			ItemsPerGame: d.itemsPerGame,
			Started:      d.started,
		})
	}
	ctx.JSON(http.StatusOK, resp)
}

// CreateGameHandler upgrades the connection and spins up a room with
// the caller as host. Room config comes from query parameters so the
// websocket handshake stays a plain GET.
func (h *GameHandler) CreateGameHandler(ctx *gin.Context) {
	nickname, ok := validNickname(ctx.Query("nickname"))
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-nickname"})
		return
	}
	overrides, err := configOverridesFromQuery(ctx)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	private := ctx.Query("private") == "true"

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warningf("[Handlers] WS upgrade failed: %v", err)
		return
	}
	session := NewWebsocketConnection(conn)

	playerId := uuid.NewString()
	if !h.sendSession(session, playerId) {
		return
	}

	roomId := h.lobby.CreateRoom(ctx.Request.Context(), playerId, nickname, overrides, private, session)
	if roomId == "" {
		session.Close("server-shutting-down")
	}
}

// JoinGameHandler upgrades the connection and routes it into an
// existing room, either as a fresh player (nickname required) or as a
// reconnecting one (token required).
func (h *GameHandler) JoinGameHandler(ctx *gin.Context) {
	roomId := strings.ToUpper(ctx.Param("roomid"))

	var playerId, nickname string
	if token := ctx.Query("token"); token != "" {
		id, err := h.tokens.Verify(token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrorCode(err)})
			return
		}
		playerId = id
	} else {
		var ok bool
		nickname, ok = validNickname(ctx.Query("nickname"))
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-nickname"})
			return
		}
		playerId = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warningf("[Handlers] WS upgrade failed: %v", err)
		return
	}
	session := NewWebsocketConnection(conn)

	if !h.sendSession(session, playerId) {
		return
	}

	jreq := roomJoinRequest{
		roomId:   roomId,
		playerId: playerId,
		nickname: nickname,
		session:  session,
		errChan:  make(chan error, 1),
	}
	h.lobby.ForwardPlayerJoinRequestToRoom(ctx.Request.Context(), jreq)

	select {
	case joinErr, pending := <-jreq.errChan:
		if pending && joinErr != nil {
			h.sendErrorAndClose(session, joinErr)
		}
	case <-time.After(joinReplyTimeout):
		h.sendErrorAndClose(session, domain.ErrRoomNotFound)
	}
}

// QRCodeHandler renders the join link for a room as a PNG so the host
// can put it on a shared screen.
func (h *GameHandler) QRCodeHandler(ctx *gin.Context) {
	roomId := strings.ToUpper(ctx.Param("roomid"))
	if len(roomId) != roomCodeLength {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-room-code"})
		return
	}
	png, err := qrcode.Encode(fmt.Sprintf("%s/join/%s", h.publicURL, roomId), qrcode.Medium, 256)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

// sendSession writes the identity frame directly; the connection has no
// pumps yet, so this is the only writer. Reports whether the socket is
// still usable.
func (h *GameHandler) sendSession(session NetworkSession, playerId string) bool {
	token, err := h.tokens.Generate(playerId, time.Now())
	if err != nil {
		logger.Criticalf("[Handlers] Token generation failed: %v", err)
		session.Close("unknown-error")
		return false
	}
	data, err := json.Marshal(domain.Event{Type: domain.EventSession, Payload: domain.SessionPayload{
		PlayerId: playerId,
		Token:    token,
	}})
	if err != nil {
		session.Close("unknown-error")
		return false
	}
	if err := session.Write(data); err != nil {
		session.Close("")
		return false
	}
	return true
}

func (h *GameHandler) sendErrorAndClose(session NetworkSession, err error) {
	code := domain.ErrorCode(err)
	data, merr := json.Marshal(domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{
		Message: err.Error(),
		Code:    code,
	}})
	if merr == nil {
		session.Write(data)
	}
	session.Close(code)
}

func validNickname(raw string) (string, bool) {
	nickname := strings.TrimSpace(raw)
	if nickname == "" || len([]rune(nickname)) > 24 {
		return "", false
	}
	return nickname, true
}

func configOverridesFromQuery(ctx *gin.Context) (domain.RoomConfigPatch, error) {
	var patch domain.RoomConfigPatch

	if raw := ctx.Query("submissionMode"); raw != "" {
		mode := domain.SubmissionMode(raw)
		if mode != domain.SubmissionRoundRobin && mode != domain.SubmissionHostOnly {
			return patch, fmt.Errorf("invalid-submission-mode")
		}
		patch.SubmissionMode = &mode
	}
	if raw := ctx.Query("timerEnabled"); raw != "" {
		enabled := raw == "true"
		patch.TimerEnabled = &enabled
	}

	bounded := []struct {
		name     string
		min, max int
		dest     **int
	}{
		{"timerDuration", 10, 300, &patch.TimerDuration},
		{"rankingTimeout", 5, 120, &patch.RankingTimeout},
		{"itemsPerGame", 3, 25, &patch.ItemsPerGame},
	}
	for _, b := range bounded {
		raw := ctx.Query(b.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < b.min || v > b.max {
			return patch, fmt.Errorf("%s must be between %d and %d", b.name, b.min, b.max)
		}
		*b.dest = &v
	}
	return patch, nil
}
