package main

import (
	"errors"
	"net/http"

	"tikiti/src/db"
	"tikiti/src/models"
	"tikiti/src/types"
	"tikiti/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func discountHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events/:id/discount-codes", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateDiscountCodeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizer, err := currentOrganizer(ctx)
			if err != nil {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "organizer profile required"})
				return
			}
			from, err := utils.ParseTimestamp(body.ValidFrom)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			to, err := utils.ParseTimestamp(body.ValidTo)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if !to.After(from) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "valid_to must be after valid_from"})
				return
			}
			discount := models.DiscountCode{
				ID:                 uuid.New(),
				Code:               body.Code,
				DiscountPercentage: body.DiscountPercentage,
				MaxUses:            body.MaxUses,
				ValidFrom:          from,
				ValidTo:            to,
			}
			if body.Description != "" {
				discount.Description = &body.Description
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var event models.Event
				if err := tx.Where("id = ? AND organizer_id = ?", params.ID, organizer.ID).First(&event).Error; err != nil {
					return err
				}
				if err := tx.Create(&discount).Error; err != nil {
					return err
				}
				return tx.Model(&event).Association("DiscountCodes").Append(&discount)
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": discount})
		})
	return g
}
