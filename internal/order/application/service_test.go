package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msashop/order-service/internal/order/domain"
	"github.com/msashop/order-service/pkg/outbox"
)

type stockCall struct {
	buyerID, productID int64
	quantity           int
}

type fakeOrders struct {
	byID      map[string]domain.Order
	created   []domain.Order
	createErr error
	updates   map[string]domain.OrderStatus
	updateErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byID: map[string]domain.Order{}, updates: map[string]domain.OrderStatus{}}
}

func (f *fakeOrders) Create(_ context.Context, o domain.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, o)
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (domain.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) ListByBuyer(_ context.Context, buyerID int64) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.byID {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = status
	return nil
}

type appendedEvent struct {
	kind    string
	payload []byte
}

type fakeOutbox struct {
	events    []appendedEvent
	appendErr error
}

func (f *fakeOutbox) Append(_ context.Context, kind string, payload []byte) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, appendedEvent{kind: kind, payload: payload})
	return nil
}

type fakeCatalog struct {
	product Product
	err     error
	calls   int
}

func (f *fakeCatalog) GetProduct(_ context.Context, _ int64) (Product, error) {
	f.calls++
	return f.product, f.err
}

type fakeStock struct {
	reservation  Reservation
	reserveErr   error
	releaseErr   error
	reserveCalls []stockCall
	releaseCalls []stockCall
}

func (f *fakeStock) Reserve(_ context.Context, buyerID, productID int64, quantity int) (Reservation, error) {
	f.reserveCalls = append(f.reserveCalls, stockCall{buyerID, productID, quantity})
	if f.reserveErr != nil {
		return Reservation{}, f.reserveErr
	}
	return f.reservation, nil
}

func (f *fakeStock) Release(_ context.Context, buyerID, productID int64, quantity int) error {
	f.releaseCalls = append(f.releaseCalls, stockCall{buyerID, productID, quantity})
	return f.releaseErr
}

type captureCall struct {
	buyerID, amount int64
	method          string
}

type fakePayment struct {
	payment      Payment
	captureErr   error
	cancelErr    error
	captureCalls []captureCall
	cancelCalls  []int64
}

func (f *fakePayment) Capture(_ context.Context, buyerID, amount int64, method string) (Payment, error) {
	f.captureCalls = append(f.captureCalls, captureCall{buyerID, amount, method})
	if f.captureErr != nil {
		return Payment{}, f.captureErr
	}
	return f.payment, nil
}

func (f *fakePayment) Cancel(_ context.Context, paymentRef int64) error {
	f.cancelCalls = append(f.cancelCalls, paymentRef)
	return f.cancelErr
}

type fakeEvents struct {
	created   []domain.Order
	cancelled []domain.Order
	err       error
}

func (f *fakeEvents) OrderCreated(_ context.Context, o domain.Order) error {
	f.created = append(f.created, o)
	return f.err
}

func (f *fakeEvents) OrderCancelled(_ context.Context, o domain.Order) error {
	f.cancelled = append(f.cancelled, o)
	return f.err
}

type fixture struct {
	orders  *fakeOrders
	outbox  *fakeOutbox
	catalog *fakeCatalog
	stock   *fakeStock
	payment *fakePayment
	events  *fakeEvents
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		orders:  newFakeOrders(),
		outbox:  &fakeOutbox{},
		catalog: &fakeCatalog{product: Product{ID: 1, Name: "A", Price: 10_000, StockQuantity: 10}},
		stock:   &fakeStock{reservation: Reservation{Success: true, RemainingStock: 8}},
		payment: &fakePayment{payment: Payment{Success: true, PaymentRef: 1, Reason: "APPROVED"}},
		events:  &fakeEvents{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(log, f.orders, f.outbox, f.catalog, f.stock, f.payment, f.events)
	return f
}

func TestCreateOrderSuccess(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), 1, 1, 2, "CARD")
	require.NoError(t, err)

	assert.Equal(t, int64(1), order.BuyerID)
	assert.Equal(t, int64(1), order.ProductID)
	assert.Equal(t, 2, order.Quantity)
	assert.Equal(t, int64(20_000), order.TotalAmount)
	assert.Equal(t, domain.StatusPaid, order.Status)
	require.NotNil(t, order.PaymentRef)
	assert.Equal(t, int64(1), *order.PaymentRef)
	assert.NotEmpty(t, order.ID)

	require.Len(t, f.stock.reserveCalls, 1)
	assert.Equal(t, stockCall{1, 1, 2}, f.stock.reserveCalls[0])
	require.Len(t, f.payment.captureCalls, 1)
	assert.Equal(t, captureCall{1, 20_000, "CARD"}, f.payment.captureCalls[0])
	require.Len(t, f.orders.created, 1)
	assert.Empty(t, f.stock.releaseCalls)
	assert.Empty(t, f.outbox.events)
	assert.Len(t, f.events.created, 1)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture()
	f.stock.reservation = Reservation{Success: false, Reason: "out of stock"}

	_, err := f.svc.CreateOrder(context.Background(), 1, 1, 100, "CARD")
	require.ErrorIs(t, err, ErrInsufficientStock)

	// no side effect happened, so nothing to compensate
	assert.Empty(t, f.payment.captureCalls)
	assert.Empty(t, f.stock.releaseCalls)
	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.outbox.events)
}

func TestCreateOrderPaymentDeclined(t *testing.T) {
	f := newFixture()
	f.payment.payment = Payment{Success: false, Reason: "card declined"}

	_, err := f.svc.CreateOrder(context.Background(), 1, 1, 2, "CARD")
	require.ErrorIs(t, err, ErrPaymentFailed)

	require.Len(t, f.stock.releaseCalls, 1)
	assert.Equal(t, stockCall{1, 1, 2}, f.stock.releaseCalls[0])
	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.outbox.events)
	assert.Empty(t, f.events.created)
}

func TestCreateOrderPaymentTransportError(t *testing.T) {
	f := newFixture()
	f.payment.captureErr = ErrUpstreamUnavailable

	_, err := f.svc.CreateOrder(context.Background(), 1, 1, 2, "CARD")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	require.Len(t, f.stock.releaseCalls, 1)
	assert.Equal(t, stockCall{1, 1, 2}, f.stock.releaseCalls[0])
	assert.Empty(t, f.orders.created)
}

func TestCreateOrderReleaseFailureNeverMasksCause(t *testing.T) {
	f := newFixture()
	f.payment.payment = Payment{Success: false, Reason: "card declined"}
	f.stock.releaseErr = errors.New("stock service down")

	_, err := f.svc.CreateOrder(context.Background(), 1, 1, 2, "CARD")
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.NotContains(t, err.Error(), "stock service down")
}

func TestCreateOrderSaveFailsAfterCapture(t *testing.T) {
	f := newFixture()
	f.payment.payment = Payment{Success: true, PaymentRef: 99, Reason: "APPROVED"}
	f.orders.createErr = errors.New("db save failed")

	_, err := f.svc.CreateOrder(context.Background(), 1, 1, 2, "CARD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db save failed")

	// money moved: no synchronous release, one durable compensation record
	assert.Empty(t, f.stock.releaseCalls)
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, outbox.KindOrderSaveFailed, f.outbox.events[0].kind)

	var p outbox.OrderSaveFailedPayload
	require.NoError(t, json.Unmarshal(f.outbox.events[0].payload, &p))
	assert.Equal(t, outbox.OrderSaveFailedPayload{PaymentRef: 99, BuyerID: 1, ProductID: 1, Quantity: 2}, p)

	assert.Empty(t, f.events.created)
}

func TestCreateOrderOutboxAppendFailureStillReturnsSaveError(t *testing.T) {
	f := newFixture()
	f.orders.createErr = errors.New("db save failed")
	f.outbox.appendErr = errors.New("outbox down too")

	_, err := f.svc.CreateOrder(context.Background(), 1, 1, 2, "CARD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db save failed")
	assert.NotContains(t, err.Error(), "outbox down too")
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrder(context.Background(), 1, 1, 0, "CARD")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.CreateOrder(context.Background(), 1, 1, 2, "")
	require.ErrorIs(t, err, ErrInvalidRequest)

	assert.Zero(t, f.catalog.calls)
}

func paidOrder(buyerID int64, paymentRef *int64) domain.Order {
	return domain.Order{
		ID:          "o-1",
		BuyerID:     buyerID,
		ProductID:   1,
		Quantity:    2,
		TotalAmount: 20_000,
		Status:      domain.StatusPaid,
		PaymentRef:  paymentRef,
	}
}

func ref(v int64) *int64 { return &v }

func TestCancelOrderSuccess(t *testing.T) {
	f := newFixture()
	f.orders.byID["o-1"] = paidOrder(1, ref(100))

	order, err := f.svc.CancelOrder(context.Background(), "o-1", 1)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, order.Status)
	assert.Equal(t, []int64{100}, f.payment.cancelCalls)
	require.Len(t, f.stock.releaseCalls, 1)
	assert.Equal(t, stockCall{1, 1, 2}, f.stock.releaseCalls[0])
	assert.Equal(t, domain.StatusCancelled, f.orders.updates["o-1"])
	assert.Len(t, f.events.cancelled, 1)
}

func TestCancelOrderNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CancelOrder(context.Background(), "missing", 1)
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Empty(t, f.payment.cancelCalls)
}

func TestCancelOrderForeignBuyerSeesNotFound(t *testing.T) {
	f := newFixture()
	f.orders.byID["o-1"] = paidOrder(1, ref(100))

	_, err := f.svc.CancelOrder(context.Background(), "o-1", 2)
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Empty(t, f.payment.cancelCalls)
}

func TestCancelOrderWithoutPaymentRef(t *testing.T) {
	f := newFixture()
	f.orders.byID["o-1"] = paidOrder(1, nil)

	_, err := f.svc.CancelOrder(context.Background(), "o-1", 1)
	require.ErrorIs(t, err, ErrOrderCannotBeCancelled)
	assert.Empty(t, f.payment.cancelCalls)
	assert.Empty(t, f.stock.releaseCalls)
}

func TestCancelOrderAlreadyCancelled(t *testing.T) {
	f := newFixture()
	o := paidOrder(1, ref(100))
	o.Status = domain.StatusCancelled
	f.orders.byID["o-1"] = o

	_, err := f.svc.CancelOrder(context.Background(), "o-1", 1)
	require.ErrorIs(t, err, ErrOrderCannotBeCancelled)
	assert.Empty(t, f.payment.cancelCalls)
}

func TestCancelOrderPaymentCancelFailureAborts(t *testing.T) {
	f := newFixture()
	f.orders.byID["o-1"] = paidOrder(1, ref(100))
	f.payment.cancelErr = errors.New("payment service down")

	_, err := f.svc.CancelOrder(context.Background(), "o-1", 1)
	require.ErrorIs(t, err, ErrOrderCannotBeCancelled)
	assert.Contains(t, err.Error(), "payment service down")

	// cancellation must not half-happen
	assert.Empty(t, f.stock.releaseCalls)
	assert.Empty(t, f.orders.updates)
}

func TestCancelOrderReleaseFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.orders.byID["o-1"] = paidOrder(1, ref(100))
	f.stock.releaseErr = errors.New("stock service down")

	order, err := f.svc.CancelOrder(context.Background(), "o-1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, order.Status)
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	f.orders.byID["o-1"] = paidOrder(1, ref(100))

	order, err := f.svc.GetOrder(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", order.ID)

	_, err = f.svc.GetOrder(context.Background(), "missing")
	require.ErrorIs(t, err, ErrOrderNotFound)
}
