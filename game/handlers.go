package game

import (
	"api/domain"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	ErrInvalidRequestFormatStr = "bad-request-format"
	ErrInvalidRoomIdStr        = "invalid-room-id"
	ErrServerTimeoutStr        = "server-timeout"
	ErrUnknownStr              = "unknown-error"
)

type GameHandler struct {
	gameService *Service
	upgrader    websocket.Upgrader
}

func NewGameHandler(service *Service, allowedOrigins map[string]bool) *GameHandler {
	return &GameHandler{
		gameService: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigins[r.Header.Get("Origin")]
			},
		},
	}
}

func abortWithGameError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrRoundNotStarted):
		ctx.String(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotHost):
		ctx.String(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrWrongPhase),
		errors.Is(err, domain.ErrNoPlayers),
		errors.Is(err, domain.ErrAllRoundsPlayed),
		errors.Is(err, domain.ErrNoSuspect),
		errors.Is(err, domain.ErrNotInRoom),
		errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrInvalidChoice),
		errors.Is(err, domain.ErrTopicTooSmall):
		ctx.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)
	case errors.Is(err, context.Canceled):
		ctx.Status(499)
	default:
		slog.Error("game request failed with unexpected error", "error", err)
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
	}
	ctx.Abort()
}

func requesterId(ctx *gin.Context) (string, bool) {
	id := ctx.GetString("id")
	if id == "" {
		slog.Error("id not found in request context. What is the middleware doing?",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		ctx.Abort()
		return "", false
	}
	return id, true
}

func roomIdParam(ctx *gin.Context) (int64, bool) {
	roomId, err := strconv.ParseInt(ctx.Param("roomid"), 10, 64)
	if err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRoomIdStr)
		ctx.Abort()
		return 0, false
	}
	return roomId, true
}

func roomJSON(r domain.Room) gin.H {
	return gin.H{
		"roomID":       r.Id,
		"title":        r.Title,
		"hostID":       r.HostId,
		"hostName":     r.HostName,
		"playerCount":  r.PlayerCount,
		"currentRound": r.CurrentRound,
		"maxRounds":    r.MaxRounds,
		"phase":        r.Phase,
	}
}

func (h *GameHandler) CreateRoomHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		Title              string `json:"title" binding:"required"`
		ExplainTurnSeconds int    `json:"explainTurnSeconds"`
		DiscussionSeconds  int    `json:"discussionSeconds"`
		VotingSeconds      int    `json:"votingSeconds"`
		DefenseSeconds     int    `json:"defenseSeconds"`
		FinalVoteSeconds   int    `json:"finalVoteSeconds"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	configs := DefaultRoomConfigs()
	if req.ExplainTurnSeconds > 0 {
		configs.ExplainTurnDuration = time.Duration(req.ExplainTurnSeconds) * time.Second
	}
	if req.DiscussionSeconds > 0 {
		configs.DiscussionDuration = time.Duration(req.DiscussionSeconds) * time.Second
	}
	if req.VotingSeconds > 0 {
		configs.VotingDuration = time.Duration(req.VotingSeconds) * time.Second
	}
	if req.DefenseSeconds > 0 {
		configs.DefenseDuration = time.Duration(req.DefenseSeconds) * time.Second
	}
	if req.FinalVoteSeconds > 0 {
		configs.FinalVoteDuration = time.Duration(req.FinalVoteSeconds) * time.Second
	}

	room, err := h.gameService.CreateRoom(ctx.Request.Context(), id, req.Title, configs)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"roomID": room.Id})
}

func (h *GameHandler) ListRoomsHandler(ctx *gin.Context) {
	rooms, err := h.gameService.ListRooms(ctx.Request.Context())
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}

	out := make([]gin.H, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomJSON(r))
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (h *GameHandler) RoomDetailHandler(ctx *gin.Context) {
	roomId, ok := roomIdParam(ctx)
	if !ok {
		return
	}

	room, members, err := h.gameService.RoomDetail(ctx.Request.Context(), roomId)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}

	players := make([]gin.H, 0, len(members))
	for _, m := range members {
		players = append(players, gin.H{
			"userID":   m.Id,
			"username": m.Username,
			"score":    m.Score,
			"isHost":   m.Id == room.HostId,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"room": roomJSON(room), "players": players})
}

func (h *GameHandler) JoinRoomHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		RoomId int64 `json:"roomID" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	if err := h.gameService.JoinRoom(ctx.Request.Context(), req.RoomId, id); err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"roomID": req.RoomId})
}

func (h *GameHandler) LeaveRoomHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		RoomId int64 `json:"roomID" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	roomDeleted, err := h.gameService.LeaveRoom(ctx.Request.Context(), req.RoomId, id)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"roomDeleted": roomDeleted})
}

// StartRoundHandler deliberately returns round metadata only. Each
// player fetches their own word through RevealWordHandler, so the
// host's HTTP response never carries the liar's identity or the words.
func (h *GameHandler) StartRoundHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		RoomId int64 `json:"roomID" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	res, err := h.gameService.StartRound(ctx.Request.Context(), req.RoomId, id)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"currentRound": res.Round,
		"maxRounds":    res.MaxRounds,
		"topic":        res.Topic,
	})
}

func (h *GameHandler) RevealWordHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}
	roomId, ok := roomIdParam(ctx)
	if !ok {
		return
	}

	res, err := h.gameService.RevealWord(ctx.Request.Context(), roomId, id)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"isLiar":       res.IsLiar,
		"topic":        res.Topic,
		"word":         res.Word,
		"currentRound": res.Round,
		"maxRounds":    res.MaxRounds,
		"phase":        res.Phase,
	})
}

func (h *GameHandler) CastVoteHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		RoomId   int64  `json:"roomID" binding:"required"`
		TargetId string `json:"targetID" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	round, err := h.gameService.CastSuspicionVote(ctx.Request.Context(), req.RoomId, id, req.TargetId)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"round": round})
}

func (h *GameHandler) VoteResultHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		RoomId int64 `json:"roomID" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	res, err := h.gameService.SuspicionVoteResult(ctx.Request.Context(), req.RoomId, id)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}

	out := gin.H{"round": res.Round, "outcome": res.Outcome}
	if res.SuspectId != "" {
		out["suspectID"] = res.SuspectId
		out["suspectName"] = res.SuspectName
		out["votes"] = res.Votes
	}
	if res.LiarId != "" {
		out["liarID"] = res.LiarId
		out["liarName"] = res.LiarName
	}
	if res.GameOver {
		out["gameOver"] = true
		out["winners"] = scoreLines(res.Winners)
	}
	ctx.JSON(http.StatusOK, out)
}

func (h *GameHandler) CastFinalVoteHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		RoomId int64  `json:"roomID" binding:"required"`
		Choice string `json:"choice" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	round, err := h.gameService.CastFinalVote(ctx.Request.Context(), req.RoomId, id, req.Choice)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"round": round})
}

func (h *GameHandler) FinalVoteResultHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}

	var req struct {
		RoomId int64 `json:"roomID" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	res, err := h.gameService.FinalVoteResult(ctx.Request.Context(), req.RoomId, id)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}

	out := gin.H{
		"round":        res.Round,
		"outcome":      res.Outcome,
		"suspectID":    res.SuspectId,
		"suspectName":  res.SuspectName,
		"wasLiar":      res.WasLiar,
		"liarVotes":    res.LiarVotes,
		"notLiarVotes": res.NotLiarVotes,
	}
	if res.Outcome != "redoDiscussion" {
		out["liarID"] = res.LiarId
		out["liarName"] = res.LiarName
	}
	if res.GameOver {
		out["gameOver"] = true
		out["winners"] = scoreLines(res.Winners)
		out["totals"] = scoreLines(res.Totals)
	}
	ctx.JSON(http.StatusOK, out)
}

func (h *GameHandler) RankingHandler(ctx *gin.Context) {
	ranking, err := h.gameService.GlobalRanking(ctx.Request.Context())
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}

	out := make([]gin.H, 0, len(ranking))
	for i, r := range ranking {
		out = append(out, gin.H{
			"rank":     i + 1,
			"userID":   r.UserId,
			"username": r.Username,
			"score":    r.Score,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"ranking": out})
}

func (h *GameHandler) RoomScoresHandler(ctx *gin.Context) {
	roomId, ok := roomIdParam(ctx)
	if !ok {
		return
	}

	res, err := h.gameService.RoomScores(ctx.Request.Context(), roomId)
	if err != nil {
		abortWithGameError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func (h *GameHandler) WSHandler(ctx *gin.Context) {
	id, ok := requesterId(ctx)
	if !ok {
		return
	}
	roomId, ok := roomIdParam(ctx)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err, "ip", ctx.ClientIP())
		return
	}

	session := NewWebsocketConnection(conn)
	if err := h.gameService.AttachSocket(ctx.Request.Context(), roomId, id, session); err != nil {
		session.Close(err.Error())
	}
}
