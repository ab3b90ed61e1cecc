package main

import (
	"errors"
	"io"
	"log"
	"net/http"

	"tikiti/src/db"
	"tikiti/src/lib"
	"tikiti/src/models"
	"tikiti/src/mpesa"
	"tikiti/src/payments"
	"tikiti/src/types"
	"tikiti/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	paymentsEngine       *payments.Engine
	purchaseOrchestrator *payments.Orchestrator
)

// initPayments wires the reconciliation engine and orchestrator. Tests call it
// with a fake gateway.
func initPayments(gw mpesa.Gateway) {
	d := db.GetDb()
	paymentsEngine = payments.NewEngine(d, gw, payments.MailDispatcher{}, lib.GocronRunner{})
	purchaseOrchestrator = &payments.Orchestrator{
		DB:      d,
		Gateway: gw,
		Engine:  paymentsEngine,
	}
}

func purchaseHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events/:id/purchase", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.PurchaseRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			user, err := utils.CurrentUser(ctx)
			if err != nil {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			d := db.GetDb()
			var event models.Event
			if err := d.Where("id = ?", params.ID).First(&event).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := purchaseOrchestrator.Reserve(ctx.Request.Context(), user, &event, &body)
			if err != nil {
				var ve *payments.ValidationError
				var soe *payments.SoldOutError
				var ge *mpesa.GatewayError
				switch {
				case errors.As(err, &ve), errors.As(err, &soe):
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				case errors.As(err, &ge):
					ctx.JSON(http.StatusBadGateway, gin.H{"error": "Payment initiation failed: " + err.Error()})
				default:
					log.Printf("Error processing purchase: %s\n", err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"message": "Payment initiated successfully. Please complete on your phone.",
				"data": gin.H{
					"CheckoutRequestID": result.CheckoutRequestID,
					"payment_id":        result.PaymentID,
					"ticket_ids":        result.TicketIDs,
					"amount":            result.Amount,
				},
			})
		}).
		GET("/payments/status/:ref", func(ctx *gin.Context) {
			ref := ctx.Param("ref")
			if ref == "" {
				ctx.Status(http.StatusBadRequest)
				return
			}
			d := db.GetDb()
			var payment models.Payment
			if err := d.Preload("Tickets").Where("provider_ref = ?", ref).First(&payment).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"payment_status": payment.Status,
				"failure_reason": payment.FailureReason,
				"receipt_number": payment.ReceiptNumber,
				"tickets":        payment.Tickets,
			}})
		})
	return g
}

// webhookHandlers carries the gateway-facing callback. The response body
// always follows the {ResultCode, ResultDesc} contract the gateway expects;
// business outcomes, including failures, acknowledge with HTTP 200 so the
// gateway does not redeliver.
func webhookHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments/callback", func(ctx *gin.Context) {
			payload, err := io.ReadAll(ctx.Request.Body)
			if err != nil || len(payload) == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "Invalid data received"})
				return
			}
			res, err := mpesa.ParseCallback(payload)
			if err != nil {
				log.Printf("[webhook] Malformed callback: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "Invalid data received"})
				return
			}
			log.Printf("[webhook] Callback for %s: %s\n", res.Checkout, res.Kind)
			if err := paymentsEngine.Apply(res.Checkout, res, payments.TriggerCallback); err != nil {
				switch {
				case errors.Is(err, payments.ErrUnknownTransaction):
					ctx.JSON(http.StatusNotFound, gin.H{"ResultCode": 1, "ResultDesc": "Payment not found"})
				case errors.Is(err, payments.ErrLockTimeout):
					ctx.JSON(http.StatusServiceUnavailable, gin.H{"ResultCode": 1, "ResultDesc": "Transaction processing timeout"})
				default:
					log.Printf("[webhook] Error processing callback: %s\n", err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"ResultCode": 1, "ResultDesc": "Error processing callback"})
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Success"})
		})
	return g
}

func adminPaymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/payments", func(ctx *gin.Context) {
			d := db.GetDb()
			q := d.Preload("Tickets").Order("created_at desc")
			if status := ctx.Query("status"); status != "" {
				q = q.Where("status = ?", status)
			}
			var list []models.Payment
			if err := q.Limit(100).Find(&list).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": list})
		}).
		GET("/stats", func(ctx *gin.Context) {
			d := db.GetDb()
			type statusRow struct {
				Status string
				Count  int64
			}
			var paymentRows []statusRow
			d.Model(&models.Payment{}).Select("status, COUNT(*) as count").Group("status").Scan(&paymentRows)
			var ticketRows []statusRow
			d.Model(&models.Ticket{}).Select("status, COUNT(*) as count").Group("status").Scan(&ticketRows)
			var events int64
			d.Model(&models.Event{}).Count(&events)
			var users int64
			d.Model(&models.User{}).Count(&users)
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"payments": paymentRows,
				"tickets":  ticketRows,
				"events":   events,
				"users":    users,
			}})
		})
	return g
}
