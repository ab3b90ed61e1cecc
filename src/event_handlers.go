package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"tikiti/src/db"
	"tikiti/src/models"
	"tikiti/src/types"
	"tikiti/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			db := db.GetDb()
			q := db.Preload("TicketTypes").Preload("Categories").Order("start_datetime asc")
			if cat := ctx.Query("category"); cat != "" {
				q = q.Joins("JOIN event_categories ec ON ec.event_id = events.id").
					Joins("JOIN categories c ON c.id = ec.category_id").
					Where("c.name = ?", cat)
			}
			if ctx.Query("featured") == "true" {
				q = q.Where("featured = ?", true)
			}
			if ctx.Query("upcoming") != "false" {
				q = q.Where("start_datetime > ?", time.Now())
			}
			if err := q.Limit(50).Find(&events).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var event models.Event
			err := db.
				Preload("TicketTypes", "active = ?", true).
				Preload("Categories").
				Where("id = ?", params.ID).
				First(&event).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		})
	return g
}

func organizerEventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizer, err := currentOrganizer(ctx)
			if err != nil {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "organizer profile required"})
				return
			}
			start, err := utils.ParseTimestamp(body.StartDatetime)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			event := models.Event{
				ID:            uuid.New(),
				OrganizerID:   organizer.ID,
				Title:         body.Title,
				Slug:          slug.Make(body.Title),
				Location:      body.Location,
				StartDatetime: start,
				Currency:      body.Currency,
				Featured:      body.Featured,
			}
			if event.Currency == "" {
				event.Currency = "KES"
			}
			if body.Description != "" {
				event.Description = &body.Description
			}
			if body.EndDatetime != nil {
				end, err := utils.ParseTimestamp(*body.EndDatetime)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				event.EndDatetime = &end
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.Model(&models.Event{}).Where("slug = ?", event.Slug).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					event.Slug = slug.Make(body.Title + "-" + uuid.NewString()[:8])
				}
				if err := tx.Create(&event).Error; err != nil {
					return err
				}
				for _, name := range body.Categories {
					var cat models.Category
					err := tx.Where(models.Category{Name: name}).
						Attrs(models.Category{ID: uuid.New()}).
						FirstOrCreate(&cat).Error
					if err != nil {
						return err
					}
					if err := tx.Model(&event).Association("Categories").Append(&cat); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				log.Printf("Error creating event: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": event})
		}).
		POST("/events/:id/ticket-types", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateTicketTypeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizer, err := currentOrganizer(ctx)
			if err != nil {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "organizer profile required"})
				return
			}
			db := db.GetDb()
			var tt models.TicketType
			if err := db.Transaction(func(tx *gorm.DB) error {
				var event models.Event
				if err := tx.Where("id = ? AND organizer_id = ?", params.ID, organizer.ID).First(&event).Error; err != nil {
					return err
				}
				tt = models.TicketType{
					ID:             uuid.New(),
					EventID:        event.ID,
					Name:           body.Name,
					Price:          body.Price,
					Currency:       event.Currency,
					Quantity:       body.Quantity,
					PerPersonLimit: body.PerPersonLimit,
					Active:         true,
				}
				if body.Description != "" {
					tt.Description = &body.Description
				}
				if body.ValidFrom != nil {
					from, err := utils.ParseTimestamp(*body.ValidFrom)
					if err != nil {
						return err
					}
					tt.ValidFrom = &from
				}
				if body.ValidTo != nil {
					to, err := utils.ParseTimestamp(*body.ValidTo)
					if err != nil {
						return err
					}
					tt.ValidTo = &to
				}
				return tx.Create(&tt).Error
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": tt})
		}).
		GET("/events/:id/sales", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizer, err := currentOrganizer(ctx)
			if err != nil {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "organizer profile required"})
				return
			}
			db := db.GetDb()
			var event models.Event
			if err := db.
				Preload("TicketTypes").
				Where("id = ? AND organizer_id = ?", params.ID, organizer.ID).
				First(&event).Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			type row struct {
				Status string
				Count  int64
				Sum    float64
			}
			var rows []row
			db.Model(&models.Ticket{}).
				Select("status, COUNT(*) as count, COALESCE(SUM(price), 0) as sum").
				Where("event_id = ?", event.ID).
				Group("status").
				Scan(&rows)
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"event":        event,
				"sales_status": rows,
			}})
		})
	return g
}

func currentOrganizer(ctx *gin.Context) (*models.Organizer, error) {
	user, err := utils.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	d := db.GetDb()
	var organizer models.Organizer
	if err := d.Where("user_id = ?", user.ID).First(&organizer).Error; err != nil {
		return nil, err
	}
	return &organizer, nil
}
