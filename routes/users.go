package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eventsphere/middlewares"
	"eventsphere/models"
	"eventsphere/utils"
)

// POST /api/users/register
func (d *deps) registerUser(c *gin.Context) {
	in, _ := middlewares.Payload[models.UserInput](c)

	hashed, err := utils.HashPassword(in.Password, d.bcryptCost)
	if err != nil {
		_ = c.Error(err)
		return
	}

	u := models.User{
		Username: in.Username,
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: hashed,
		Role:     in.RoleOrDefault(),
	}
	ctx := c.Request.Context()
	if err := d.users.Create(ctx, &u); err != nil {
		_ = c.Error(err)
		return
	}

	zerolog.Ctx(ctx).Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{"message": "User created", "username": u.Username})
}

// POST /api/users/login
func (d *deps) login(c *gin.Context) {
	in, _ := middlewares.Payload[models.LoginInput](c)
	invalid := middlewares.NewAuthError("Invalid credentials", nil)

	user, err := d.users.GetByUsername(c.Request.Context(), in.Username)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		// same bcrypt cost as a real mismatch
		utils.CheckPasswordHash(in.Password, d.dummyHash)
		_ = c.Error(invalid)
		return
	case err != nil:
		_ = c.Error(err)
		return
	}
	if !utils.CheckPasswordHash(in.Password, user.Password) {
		_ = c.Error(invalid)
		return
	}

	token, err := d.tokens.Generate(models.Identity{UserID: user.ID, Username: user.Username, Role: user.Role})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": user.Role})
}
