package payments

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"time"

	"tikiti/src/lib"
	"tikiti/src/models"

	"github.com/yeqown/go-qrcode"
)

// Dispatcher delivers purchase confirmations. Delivery is best-effort and
// happens after the reconciliation transaction commits, so a failed send never
// rolls back a completed payment.
type Dispatcher interface {
	PaymentCompleted(payment *models.Payment, tickets []models.Ticket, email string)
}

// MailDispatcher emails each ticket with its QR code attached. Sends run in a
// goroutine with one retry; failures are logged and dropped.
type MailDispatcher struct{}

func (MailDispatcher) PaymentCompleted(payment *models.Payment, tickets []models.Ticket, email string) {
	go func() {
		input := &lib.SendMailInput{
			From:     os.Getenv("SMTP_FROM"),
			FromName: "Tikiti",
			To:       []string{email},
			Subject:  "Your tickets are confirmed",
			Body:     buildTicketEmail(payment, tickets),
			Html:     true,
		}
		for i, t := range tickets {
			png, err := renderQR(t.QRCode)
			if err != nil {
				log.Printf("[notify] Could not render QR for ticket %s: %s\n", t.ID, err.Error())
				continue
			}
			input.Attachments = append(input.Attachments, lib.MailAttachment{
				Name: fmt.Sprintf("ticket-%d.jpeg", i+1),
				Data: png,
			})
		}
		var err error
		for attempt := 1; attempt <= 2; attempt++ {
			if err = lib.SendMail(input); err == nil {
				log.Printf("[notify] Confirmation sent to %s for payment %s\n", email, payment.ID)
				return
			}
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
		log.Printf("[notify] Failed to send confirmation to %s: %s\n", email, err.Error())
	}()
}

func renderQR(content string) ([]byte, error) {
	qrc, err := qrcode.New(content)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := qrc.SaveTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildTicketEmail(payment *models.Payment, tickets []models.Ticket) string {
	var b bytes.Buffer
	b.WriteString("<h2>Payment received</h2>")
	fmt.Fprintf(&b, "<p>Amount: %s %s", payment.Currency, payment.Amount.StringFixed(2))
	if payment.ReceiptNumber != nil {
		fmt.Fprintf(&b, " (receipt %s)", *payment.ReceiptNumber)
	}
	b.WriteString("</p><ul>")
	for _, t := range tickets {
		fmt.Fprintf(&b, "<li>%d x %s</li>", t.Quantity, t.TicketType.Name)
	}
	b.WriteString("</ul><p>Your QR codes are attached. Present them at the gate.</p>")
	return b.String()
}

// NopDispatcher is used in tests and when SMTP is not configured.
type NopDispatcher struct{}

func (NopDispatcher) PaymentCompleted(*models.Payment, []models.Ticket, string) {}
