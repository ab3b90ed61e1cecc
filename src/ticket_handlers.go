package main

import (
	"errors"
	"net/http"

	"tikiti/src/db"
	"tikiti/src/models"
	"tikiti/src/types"
	"tikiti/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/tickets", func(ctx *gin.Context) {
			user, err := utils.CurrentUser(ctx)
			if err != nil {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			d := db.GetDb()
			var tickets []models.Ticket
			err = d.
				Preload("Event").
				Preload("TicketType").
				Joins("JOIN attendees a ON a.id = tickets.attendee_id").
				Where("a.user_id = ?", user.ID).
				Order("tickets.created_at desc").
				Find(&tickets).Error
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		GET("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			user, err := utils.CurrentUser(ctx)
			if err != nil {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			d := db.GetDb()
			var ticket models.Ticket
			err = d.
				Preload("Event").
				Preload("TicketType").
				Joins("JOIN attendees a ON a.id = tickets.attendee_id").
				Where("tickets.id = ? AND a.user_id = ?", params.ID, user.ID).
				First(&ticket).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		})
	return g
}

// checkinHandlers admits a ticket holder at the gate. Only purchased tickets
// can be used, and only once.
func checkinHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/tickets/checkin", func(ctx *gin.Context) {
			var body types.CheckinRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			var ticket models.Ticket
			err := d.Transaction(func(tx *gorm.DB) error {
				// Row lock so two scans of the same QR serialize; the loser
				// sees "used" instead of admitting the holder twice.
				if err := tx.
					Clauses(clause.Locking{Strength: "UPDATE"}).
					Preload("Event").
					Where("qr_code = ?", body.QRCode).
					First(&ticket).Error; err != nil {
					return err
				}
				if ticket.Status != types.TICKET_PURCHASED {
					return &checkinError{Status: ticket.Status}
				}
				return tx.Model(&ticket).Update("status", types.TICKET_USED).Error
			})
			if err != nil {
				var ce *checkinError
				switch {
				case errors.Is(err, gorm.ErrRecordNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
				case errors.As(err, &ce):
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "ticket cannot be used", "status": ce.Status})
				default:
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				}
				return
			}
			ticket.Status = types.TICKET_USED
			ctx.JSON(http.StatusOK, gin.H{"message": "Checked in", "data": ticket})
		})
	return g
}

type checkinError struct {
	Status types.TicketStatus
}

func (e *checkinError) Error() string {
	return "ticket is " + string(e.Status)
}
