package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"tikiti/src/models"
	"tikiti/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testPurchaseFixture() (*models.User, *models.Event, uuid.UUID) {
	user := &models.User{ID: uuid.New(), Email: "buyer@example.com", Phone: "0712345678"}
	event := &models.Event{ID: uuid.New(), Title: "Test Gig", Currency: "KES"}
	return user, event, uuid.New()
}

func attendeeRows(userID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id"}).
		AddRow(uuid.NewString(), userID.String())
}

func ticketTypeRows(id, eventID uuid.UUID, price string, quantity, sold int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "name", "price", "currency", "quantity", "sold", "active", "per_person_limit"}).
		AddRow(id.String(), eventID.String(), "Regular", price, "KES", quantity, sold, true, 0)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, sqlmock.Sqlmock, *fakeGateway, *fakeRunner) {
	db, mock := newMockDB(t)
	gw := &fakeGateway{}
	runner := &fakeRunner{}
	engine := NewEngine(db, gw, NopDispatcher{}, runner)
	o := &Orchestrator{DB: db, Gateway: gw, Engine: engine}
	return o, mock, gw, runner
}

func TestReserveRequiresPhone(t *testing.T) {
	o, mock, _, _ := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()
	user.Phone = ""

	body := &types.PurchaseRequestBody{
		Items:       []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 1}},
		TotalAmount: decimal.NewFromInt(1000),
	}
	_, err := o.Reserve(context.Background(), user, event, body)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.NoError(t, mock.ExpectationsWereMet(), "rejection should happen before any query")
}

func TestReserveSoldOut(t *testing.T) {
	o, mock, _, _ := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "attendees"`).
		WillReturnRows(attendeeRows(user.ID))
	mock.ExpectQuery(`SELECT .* FROM "ticket_types"`).
		WillReturnRows(ticketTypeRows(ttID, event.ID, "1000", 10, 9))
	mock.ExpectRollback()

	body := &types.PurchaseRequestBody{
		Items:       []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 2}},
		TotalAmount: decimal.NewFromInt(2000),
	}
	_, err := o.Reserve(context.Background(), user, event, body)
	var soe *SoldOutError
	assert.ErrorAs(t, err, &soe)
	assert.Equal(t, 1, soe.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveUnknownTicketType(t *testing.T) {
	o, mock, _, _ := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "attendees"`).
		WillReturnRows(attendeeRows(user.ID))
	mock.ExpectQuery(`SELECT .* FROM "ticket_types"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	body := &types.PurchaseRequestBody{
		Items:       []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 1}},
		TotalAmount: decimal.NewFromInt(1000),
	}
	_, err := o.Reserve(context.Background(), user, event, body)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "unknown ticket type")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRejectsTotalMismatch(t *testing.T) {
	o, mock, _, _ := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "attendees"`).
		WillReturnRows(attendeeRows(user.ID))
	mock.ExpectQuery(`SELECT .* FROM "ticket_types"`).
		WillReturnRows(ticketTypeRows(ttID, event.ID, "1000", 100, 0))
	mock.ExpectExec(`UPDATE "ticket_types" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	body := &types.PurchaseRequestBody{
		Items:       []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 2}},
		TotalAmount: decimal.NewFromInt(1500),
	}
	_, err := o.Reserve(context.Background(), user, event, body)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "total mismatch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveWrongEvent(t *testing.T) {
	o, mock, _, _ := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()
	otherEvent := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "attendees"`).
		WillReturnRows(attendeeRows(user.ID))
	mock.ExpectQuery(`SELECT .* FROM "ticket_types"`).
		WillReturnRows(ticketTypeRows(ttID, otherEvent, "1000", 100, 0))
	mock.ExpectRollback()

	body := &types.PurchaseRequestBody{
		Items:       []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 1}},
		TotalAmount: decimal.NewFromInt(1000),
	}
	_, err := o.Reserve(context.Background(), user, event, body)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "does not belong")
	assert.NoError(t, mock.ExpectationsWereMet(), "rejection happens before the sold counter moves")
}

func TestReserveWrongEventBeforeAvailability(t *testing.T) {
	o, mock, _, _ := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()
	otherEvent := uuid.New()

	// Sold out AND on another event: ownership is checked first, so the
	// caller learns about the wrong event, not the inventory.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "attendees"`).
		WillReturnRows(attendeeRows(user.ID))
	mock.ExpectQuery(`SELECT .* FROM "ticket_types"`).
		WillReturnRows(ticketTypeRows(ttID, otherEvent, "1000", 10, 10))
	mock.ExpectRollback()

	body := &types.PurchaseRequestBody{
		Items:       []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 1}},
		TotalAmount: decimal.NewFromInt(1000),
	}
	_, err := o.Reserve(context.Background(), user, event, body)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "does not belong")
	var soe *SoldOutError
	assert.False(t, errors.As(err, &soe))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveAppliesDiscount(t *testing.T) {
	o, mock, _, _ := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "attendees"`).
		WillReturnRows(attendeeRows(user.ID))
	mock.ExpectQuery(`SELECT .* FROM "discount_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "discount_percentage", "max_uses", "uses", "valid_from", "valid_to"}).
			AddRow(uuid.NewString(), "EARLYBIRD", 10, 100, 5, now.Add(-time.Hour), now.Add(time.Hour)))
	mock.ExpectQuery(`SELECT .* FROM "ticket_types"`).
		WillReturnRows(ticketTypeRows(ttID, event.ID, "1000", 100, 0))
	mock.ExpectExec(`UPDATE "ticket_types" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "discount_codes" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "tickets"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "payments" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := &types.PurchaseRequestBody{
		Items:        []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 2}},
		TotalAmount:  decimal.NewFromInt(1800),
		DiscountCode: "EARLYBIRD",
	}
	result, err := o.Reserve(context.Background(), user, event, body)
	assert.NoError(t, err)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(1800)), "10%% off 2000")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveHappyPath(t *testing.T) {
	o, mock, gw, runner := newTestOrchestrator(t)
	user, event, ttID := testPurchaseFixture()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "attendees"`).
		WillReturnRows(attendeeRows(user.ID))
	mock.ExpectQuery(`SELECT .* FROM "ticket_types"`).
		WillReturnRows(ticketTypeRows(ttID, event.ID, "1000", 100, 0))
	mock.ExpectExec(`UPDATE "ticket_types" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "tickets"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "payments" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := &types.PurchaseRequestBody{
		Items:       []types.PurchaseLineItem{{TicketTypeID: ttID.String(), Quantity: 2}},
		TotalAmount: decimal.NewFromInt(2000),
	}
	result, err := o.Reserve(context.Background(), user, event, body)
	assert.NoError(t, err)
	assert.Equal(t, "ws_CO_test", result.CheckoutRequestID)
	assert.Len(t, result.TicketIDs, 1)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(2000)))
	assert.Len(t, runner.fns, 1, "first poll should be scheduled after commit")
	assert.Equal(t, 0, gw.queries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
