package handler

import (
	"net/http"

	"watchparty/backend/internal/auth"
	"watchparty/backend/internal/hub"
	"watchparty/backend/internal/party"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps is everything the HTTP surface needs. It is assembled in main.
type Deps struct {
	Parties   *party.Service
	Accounts  *party.Accounts
	Registry  *hub.Registry
	ServeWS   gin.HandlerFunc
	JWTSecret string
}

func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	router.GET("/stats", GetStats(d.Registry))

	if d.ServeWS != nil {
		router.GET("/ws", d.ServeWS)
	}

	users := NewUserHandler(d.Accounts, d.JWTSecret)
	router.POST("/register", users.RegisterUser)
	router.POST("/login", users.LoginUser)
	router.GET("/me", auth.AuthMiddleware(d.JWTSecret), users.GetMe)

	// Party routes stay open to anonymous callers; a token, when sent, must match the body.
	parties := NewPartyHandler(d.Parties)
	partyRoutes := router.Group("")
	partyRoutes.Use(auth.OptionalAuthMiddleware(d.JWTSecret))
	{
		partyRoutes.POST("/create-party", parties.CreateParty)
		partyRoutes.POST("/join-party", parties.JoinParty)
		partyRoutes.POST("/leave-party", parties.LeaveParty)
		partyRoutes.GET("/party-members/:partyCode", parties.GetPartyMembers)
	}

	return router
}

// GetStats godoc
// @Summary      Live connection counters
// @Tags         health
// @Produce      json
// @Success      200  {object}  hub.Stats
// @Router       /stats [get]
func GetStats(registry *hub.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.Stats())
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug().
			Str("module", "http").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("request")
	}
}
