package http

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/supportchat/internal/api/http/converter"
	"github.com/immxrtalbeast/supportchat/internal/api/middleware"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/internal/presence"
	"github.com/immxrtalbeast/supportchat/internal/ratelimit"
	"github.com/immxrtalbeast/supportchat/internal/service"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
)

// multipartOverhead leaves room for form fields next to the file itself.
const multipartOverhead = 1 << 20

type ChatController struct {
	chat           service.ChatInteractor
	presence       presence.Tracker
	limiter        *ratelimit.Pool
	maxUploadBytes int64
	log            *slog.Logger
}

func NewChatController(chat service.ChatInteractor, tracker presence.Tracker, limiter *ratelimit.Pool, maxUploadBytes int64, log *slog.Logger) *ChatController {
	return &ChatController{
		chat:           chat,
		presence:       tracker,
		limiter:        limiter,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

func (c *ChatController) Join(ctx *gin.Context) {
	type JoinRequest struct {
		Name     string `json:"name"`
		Contact  string `json:"contact"`
		Username string `json:"username"`
	}
	var req JoinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body")
		return
	}

	res, err := c.chat.Join(ctx.Request.Context(), domain.VisitorIdentity{
		Name:     req.Name,
		Contact:  req.Contact,
		Username: req.Username,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ctx.JSON(status, converter.JoinResponse{
		Visitor: converter.VisitorToApi(res.Visitor),
		Room:    converter.RoomToApi(res.Room),
		Created: res.Created,
	})
}

// SendMessage accepts a JSON body or a multipart form carrying a file.
func (c *ChatController) SendMessage(ctx *gin.Context) {
	const op = "api.http.chat.sendMessage"
	roomID := ctx.Param("roomID")

	type SendMessageRequest struct {
		Body      string `json:"body" form:"body"`
		VisitorID string `json:"visitor_id" form:"visitor_id"`
		IsStaff   bool   `json:"is_staff" form:"is_staff"`
	}
	var req SendMessageRequest
	var upload *domain.Upload

	if strings.HasPrefix(ctx.ContentType(), "multipart/") {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUploadBytes+multipartOverhead)
		if err := ctx.ShouldBind(&req); err != nil {
			badRequest(ctx, "invalid form")
			return
		}
		fh, err := ctx.FormFile("file")
		switch {
		case err == nil:
			f, err := fh.Open()
			if err != nil {
				badRequest(ctx, "cannot read file")
				return
			}
			defer f.Close()
			upload = uploadFrom(fh, f)
		case errors.Is(err, http.ErrMissingFile):
		default:
			badRequest(ctx, "invalid file")
			return
		}
	} else if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body")
		return
	}

	sender, ok := callerPrincipal(ctx, req.VisitorID)
	if !ok {
		writeError(ctx, domain.ErrUnauthorized)
		return
	}
	if !c.allow(ctx, sender) {
		return
	}

	msg, err := c.chat.SendMessage(ctx.Request.Context(), service.SendMessageInput{
		RoomID:     roomID,
		Sender:     sender,
		Body:       req.Body,
		Attachment: upload,
		IsStaff:    req.IsStaff,
	})
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			c.log.Error("failed to send message", slog.String("op", op), slog.String("room_id", roomID), sl.Err(err))
		}
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": domain.MessageToPayload(msg)})
}

func (c *ChatController) ListMessages(ctx *gin.Context) {
	actor, ok := callerPrincipal(ctx, ctx.Query("visitor_id"))
	if !ok {
		writeError(ctx, domain.ErrUnauthorized)
		return
	}

	messages, err := c.chat.ListMessages(ctx.Request.Context(), actor, ctx.Param("roomID"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": converter.MessagesToApi(messages)})
}

func (c *ChatController) ListRooms(ctx *gin.Context) {
	actor, _ := middleware.Principal(ctx)
	rooms, err := c.chat.ListOpenRooms(ctx.Request.Context(), actor)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": converter.RoomSummariesToApi(rooms)})
}

func (c *ChatController) MarkRead(ctx *gin.Context) {
	actor, _ := middleware.Principal(ctx)
	room, err := c.chat.MarkRead(ctx.Request.Context(), actor, ctx.Param("roomID"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *ChatController) SetStatus(ctx *gin.Context) {
	type StatusRequest struct {
		Status string `json:"status" binding:"required"`
	}
	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "status is required")
		return
	}

	actor, _ := middleware.Principal(ctx)
	room, err := c.chat.SetRoomStatus(ctx.Request.Context(), actor, ctx.Param("roomID"), req.Status)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room_id": room.ID, "status": room.Status})
}

func (c *ChatController) DeleteRoom(ctx *gin.Context) {
	actor, _ := middleware.Principal(ctx)
	if err := c.chat.DeleteRoom(ctx.Request.Context(), actor, ctx.Param("roomID")); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (c *ChatController) Online(ctx *gin.Context) {
	const op = "api.http.chat.online"
	roomID := ctx.Param("roomID")

	entries, err := c.presence.Online(ctx.Request.Context(), roomID)
	if err != nil {
		c.log.Error("failed to fetch presence", slog.String("op", op), slog.String("room_id", roomID), sl.Err(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": domain.CodeInternal, "error": "failed to fetch online users"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room_id": roomID, "count": len(entries), "users": entries})
}

func (c *ChatController) allow(ctx *gin.Context, p domain.Principal) bool {
	if c.limiter == nil {
		return true
	}
	key := p.ID
	if key == "" {
		key = ctx.ClientIP()
	}
	if c.limiter.Allow(key) {
		return true
	}
	ctx.Header("Retry-After", strconv.Itoa(1))
	ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": codeRateLimited, "error": "too many messages"})
	return false
}

// callerPrincipal prefers the authenticated staff principal and otherwise
// treats visitorID as the caller.
func callerPrincipal(ctx *gin.Context, visitorID string) (domain.Principal, bool) {
	if p, ok := middleware.Principal(ctx); ok {
		return p, true
	}
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return domain.Principal{}, false
	}
	return domain.Principal{ID: visitorID, Role: domain.RoleVisitor}, true
}

func uploadFrom(fh *multipart.FileHeader, f multipart.File) *domain.Upload {
	return &domain.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
	}
}
