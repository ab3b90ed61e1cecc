package main

import (
	"log"
	"net/http"

	"tikiti/src/db"
	"tikiti/src/models"
	"tikiti/src/types"
	"tikiti/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func organizerHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/organizers", func(ctx *gin.Context) {
			var body types.CreateOrganizerRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			user, err := utils.CurrentUser(ctx)
			if err != nil {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			organizer := models.Organizer{
				ID:           uuid.New(),
				UserID:       user.ID,
				CompanyName:  body.CompanyName,
				ContactEmail: body.ContactEmail,
				ContactPhone: body.ContactPhone,
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.Create(&organizer).Error; err != nil {
					return err
				}
				return tx.Model(&models.User{}).
					Where("id = ?", user.ID).
					Update("role", types.ROLE_ORGANIZER).Error
			}); err != nil {
				log.Printf("Error creating organizer: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": organizer})
		}).
		GET("/organizers/me/events", func(ctx *gin.Context) {
			organizer, err := currentOrganizer(ctx)
			if err != nil {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "organizer profile required"})
				return
			}
			var events []models.Event
			db := db.GetDb()
			if err := db.
				Preload("TicketTypes").
				Where("organizer_id = ?", organizer.ID).
				Order("start_datetime desc").
				Find(&events).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		})
	return g
}
