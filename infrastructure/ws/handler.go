package ws

import (
	"log/slog"
	"net/http"
	"strings"

	apperrors "sgchat/errors"
	"sgchat/services"
	"sgchat/sink"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client is served from another origin in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	log                  *slog.Logger
	auth                 services.IAuthService
	chat                 services.IChatService
	connectionBufferSize int
}

func NewHandler(log *slog.Logger, auth services.IAuthService,
	chat services.IChatService, connectionBufferSize int) *Handler {
	return &Handler{
		log:                  log,
		auth:                 auth,
		chat:                 chat,
		connectionBufferSize: connectionBufferSize,
	}
}

// RegisterRoutes binds the HTTP surface: two auth endpoints and the
// WebSocket upgrade.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.GET("/ws", h.ServeWS)
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  WireUser `json:"user"`
}

func (h *Handler) Register(gtx *gin.Context) {
	var req credentialsRequest
	if err := gtx.ShouldBindJSON(&req); err != nil {
		gtx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.auth.Register(req.Username, req.Password)
	if err != nil {
		h.log.Warn("registration rejected", slog.String("username", req.Username), slog.Any("error", err))
		gtx.JSON(httpStatus(err), errorBody(err))
		return
	}

	gtx.JSON(http.StatusCreated, authResponse{
		Token: string(token),
		User:  WireUser{ID: user.ID.String(), Username: user.Username},
	})
}

func (h *Handler) Login(gtx *gin.Context) {
	var req credentialsRequest
	if err := gtx.ShouldBindJSON(&req); err != nil {
		gtx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.log.Warn("login rejected", slog.String("username", req.Username), slog.Any("error", err))
		gtx.JSON(httpStatus(err), errorBody(err))
		return
	}

	gtx.JSON(http.StatusOK, authResponse{
		Token: string(token),
		User:  WireUser{ID: user.ID.String(), Username: user.Username},
	})
}

// ServeWS authenticates and registers the session BEFORE upgrading, so a
// bad token is refused with a plain HTTP status instead of a doomed
// WebSocket handshake. The connected frame with the user's room lists is
// always the first frame on the wire.
func (h *Handler) ServeWS(gtx *gin.Context) {
	token := bearerToken(gtx)
	if token == "" {
		gtx.JSON(http.StatusUnauthorized, errorBody(apperrors.ErrUnauthenticated))
		return
	}

	eventSink := sink.NewSessionSink(h.connectionBufferSize)

	session, connected, err := h.chat.Connect(token, eventSink)
	if err != nil {
		h.log.Warn("websocket connect rejected", slog.Any("error", err))
		gtx.JSON(httpStatus(err), errorBody(err))
		return
	}

	conn, err := upgrader.Upgrade(gtx.Writer, gtx.Request, nil)
	if err != nil {
		session.Disconnect()
		h.log.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := newClient(h.log, conn, session, eventSink)
	client.replies <- Frame{Type: FrameConnected, Payload: ConnectedPayload{
		JoinedRooms:    toWireRooms(connected.JoinedRooms),
		AvailableRooms: toWireRooms(connected.AvailableRooms),
	}}

	go client.writePump()
	go client.readPump()
}

// bearerToken accepts the token either as an Authorization header or as
// an access_token query parameter, since browsers cannot set headers on
// WebSocket handshakes.
func bearerToken(gtx *gin.Context) string {
	header := gtx.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return gtx.Query("access_token")
}

func httpStatus(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeRoomNotFound:
		return http.StatusNotFound
	case apperrors.CodeRoomAlreadyExists:
		return http.StatusConflict
	case apperrors.CodeUserHasNotJoinedRoom:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) gin.H {
	return gin.H{
		"code":  string(apperrors.CodeOf(err)),
		"error": err.Error(),
	}
}
