package utils

import (
	"log"
	"os"
	"time"

	"tikiti/src/config"
	"tikiti/src/db"
	"tikiti/src/models"
	"tikiti/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

func NewAuthToken(user *models.User) (string, error) {
	claims := types.Claims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(config.TIME_PARSE_FORMAT, value)
}

// CurrentUser loads the authenticated user set by the auth middleware.
func CurrentUser(ctx *gin.Context) (*models.User, error) {
	uid, err := uuid.Parse(ctx.GetString("id"))
	if err != nil {
		return nil, err
	}
	d := db.GetDb()
	var user models.User
	if err := d.Where("id = ?", uid).First(&user).Error; err != nil {
		log.Printf("Could not load user %s: %s\n", uid, err.Error())
		return nil, err
	}
	return &user, nil
}
