package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/internal/repository"
	"github.com/avelin/quickmeet/internal/service"
)

type RoomController struct {
	rooms service.RoomInteractor
}

func NewRoomController(rooms service.RoomInteractor) *RoomController {
	return &RoomController{rooms: rooms}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	room, err := c.rooms.CreateRoom(ctx.Request.Context(), user.ID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room", "details": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, room)
}

func (c *RoomController) JoinRoom(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	type request struct {
		RoomID string `json:"roomId" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	room, err := c.rooms.JoinRoom(ctx.Request.Context(), req.RoomID, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room", "details": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, room)
}

func currentUser(ctx *gin.Context) *domain.User {
	v, ok := ctx.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}
