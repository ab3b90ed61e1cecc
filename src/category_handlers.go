package main

import (
	"net/http"

	"tikiti/src/db"
	"tikiti/src/models"
	"tikiti/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func categoryHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/categories", func(ctx *gin.Context) {
			var categories []models.Category
			db := db.GetDb()
			if err := db.Order("name asc").Find(&categories).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": categories})
		})
	return g
}

func adminCategoryHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/categories", func(ctx *gin.Context) {
			var body types.CreateCategoryRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			category := models.Category{ID: uuid.New(), Name: body.Name}
			db := db.GetDb()
			if err := db.Create(&category).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": category})
		})
	return g
}
