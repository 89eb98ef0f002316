package handler

import (
	"net/http"

	"watchparty/backend/internal/apperr"
	"watchparty/backend/internal/auth"
	"watchparty/backend/internal/party"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CreatePartyInput defines the structure for creating a party.
type CreatePartyInput struct {
	Name    string `json:"name" binding:"required,max=255" example:"Movie Night"`
	AdminID uint   `json:"adminId" binding:"required" example:"1"`
}

// PartyMemberInput identifies a user and a party for join and leave.
type PartyMemberInput struct {
	PartyCode string `json:"partyCode" binding:"required" example:"K3J9QZX"`
	UserID    uint   `json:"userId" binding:"required" example:"2"`
}

// endregion

type PartyHandler struct {
	parties *party.Service
}

func NewPartyHandler(parties *party.Service) *PartyHandler {
	return &PartyHandler{parties: parties}
}

// CreateParty godoc
// @Summary      Create a party
// @Description  Creates a party under a fresh 7-character code. The admin becomes its first member.
// @Tags         parties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreatePartyInput true "Party Info"
// @Success      201  {object}  models.Party
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /create-party [post]
func (h *PartyHandler) CreateParty(c *gin.Context) {
	var input CreatePartyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !actingAs(c, input.AdminID) {
		respondError(c, apperr.ErrForbidden)
		return
	}

	created, err := h.parties.CreateParty(c.Request.Context(), input.Name, input.AdminID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// JoinParty godoc
// @Summary      Join a party
// @Description  Adds the user to the party and pushes membersUpdate to the party's room. Joining twice is a no-op.
// @Tags         parties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body PartyMemberInput true "Join Info"
// @Success      201  {object}  models.Membership
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Party not found"
// @Failure      500  {object}  ErrorResponse
// @Router       /join-party [post]
func (h *PartyHandler) JoinParty(c *gin.Context) {
	var input PartyMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !actingAs(c, input.UserID) {
		respondError(c, apperr.ErrForbidden)
		return
	}

	membership, _, err := h.parties.JoinParty(c.Request.Context(), input.PartyCode, input.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, membership)
}

// LeaveParty godoc
// @Summary      Leave a party
// @Description  Removes the user from the party. When the admin leaves, the party is deleted and partyDeleted is pushed to its room.
// @Tags         parties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body PartyMemberInput true "Leave Info"
// @Success      200  {object}  MessageResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Party not found"
// @Failure      500  {object}  ErrorResponse
// @Router       /leave-party [post]
func (h *PartyHandler) LeaveParty(c *gin.Context) {
	var input PartyMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !actingAs(c, input.UserID) {
		respondError(c, apperr.ErrForbidden)
		return
	}

	outcome, err := h.parties.LeaveParty(c.Request.Context(), input.PartyCode, input.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if outcome.Dissolved {
		c.JSON(http.StatusOK, MessageResponse{Message: "Party deleted successfully"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Left the party successfully"})
}

// GetPartyMembers godoc
// @Summary      Get a party and its members
// @Tags         parties
// @Produce      json
// @Param        partyCode  path      string  true  "Party code (case-insensitive)"
// @Success      200  {object}  party.Details
// @Failure      404  {object}  ErrorResponse "Party not found"
// @Failure      500  {object}  ErrorResponse
// @Router       /party-members/{partyCode} [get]
func (h *PartyHandler) GetPartyMembers(c *gin.Context) {
	details, err := h.parties.MembersOf(c.Request.Context(), c.Param("partyCode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// actingAs reports whether the request may act for userID. Anonymous requests may;
// a bearer token must name the same user.
func actingAs(c *gin.Context, userID uint) bool {
	tokenUser, ok := auth.UserID(c)
	return !ok || tokenUser == userID
}
