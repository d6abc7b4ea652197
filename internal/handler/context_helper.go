package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-jadwal-mapel/internal/middleware"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/service"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// principalFromContext combines the validated claims with the bearer token.
func principalFromContext(c *gin.Context) (models.Principal, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Principal{}, appErrors.ErrUnauthorized
	}
	return service.PrincipalFromClaims(claims, c.GetString(middleware.ContextTokenKey)), nil
}

func rowIndexParam(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid row index")
	}
	return index, nil
}
