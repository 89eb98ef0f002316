package handler

import (
	"net/http"

	"watchparty/backend/internal/auth"
	"watchparty/backend/internal/models"
	"watchparty/backend/internal/party"
	"watchparty/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CredentialsInput defines the structure for registration and login.
type CredentialsInput struct {
	Username string `json:"username" binding:"required,max=255" example:"testuser"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
}

// AuthResponse carries a fresh token and the user it belongs to.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// endregion

type UserHandler struct {
	accounts  *party.Accounts
	jwtSecret string
}

func NewUserHandler(accounts *party.Accounts, jwtSecret string) *UserHandler {
	return &UserHandler{accounts: accounts, jwtSecret: jwtSecret}
}

// RegisterUser godoc
// @Summary      Register a new user
// @Description  Creates a new user and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body CredentialsInput true "Registration Info"
// @Success      201  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /register [post]
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var input CredentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := jwt.GenerateToken(h.jwtSecret, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: *user})
}

// LoginUser godoc
// @Summary      Log in a user
// @Description  Authenticates a user with username and password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body CredentialsInput true "Login Info"
// @Success      200  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      500  {object}  ErrorResponse "Internal server error"
// @Router       /login [post]
func (h *UserHandler) LoginUser(c *gin.Context) {
	var input CredentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := jwt.GenerateToken(h.jwtSecret, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: *user})
}

// GetMe godoc
// @Summary      Get current user's info
// @Description  Retrieves the profile of the currently authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	user, err := h.accounts.User(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
