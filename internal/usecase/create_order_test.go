package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/example/order-placement-service/internal/adapter/cache"
	"github.com/example/order-placement-service/internal/adapter/memory"
	"github.com/example/order-placement-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, o domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, o)
	return p.err
}

func newStore(products ...domain.Product) *memory.Store {
	s := memory.NewStore()
	s.PutCustomer(domain.Customer{ID: "C1"})
	for _, p := range products {
		s.PutProduct(p)
	}
	return s
}

func product(id string, price int64, qty int) domain.Product {
	return domain.Product{ID: id, UnitPrice: decimal.NewFromInt(price), AvailableQuantity: qty}
}

func quantity(t *testing.T, s *memory.Store, id string) int {
	t.Helper()
	p, ok := s.Product(id)
	require.True(t, ok, "product %s", id)
	return p.AvailableQuantity
}

func TestCreateOrder_ScenarioA_HappyPath(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	o, err := uc.Execute(context.Background(), "C1", req("P1", 3))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, o.ID)
	assert.Equal(t, "C1", o.CustomerID)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "P1", o.Lines[0].ProductID)
	assert.Equal(t, 3, o.Lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(10).Equal(o.Lines[0].UnitPrice))
	assert.Equal(t, 2, quantity(t, store, "P1"))
	assert.Equal(t, 1, store.OrderCount())
}

func TestCreateOrder_ScenarioB_UnknownProduct(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	_, err := uc.Execute(context.Background(), "C1", req("P1", 1, "P9", 1))
	var pe *domain.ProductError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, "P9", pe.ProductID)
	assert.EqualError(t, err, "product P9 was not found")
	assert.Equal(t, 5, quantity(t, store, "P1"))
	assert.Equal(t, 0, store.OrderCount())
}

func TestCreateOrder_ScenarioC_InsufficientStock(t *testing.T) {
	store := newStore(product("P1", 10, 2))
	uc := CreateOrder{Tx: store}

	_, err := uc.Execute(context.Background(), "C1", req("P1", 3))
	var pe *domain.ProductError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, "P1", pe.ProductID)
	assert.Equal(t, 2, quantity(t, store, "P1"))
	assert.Equal(t, 0, store.OrderCount())
}

func TestCreateOrder_ScenarioD_DuplicateLinesNeverOversell(t *testing.T) {
	for _, tc := range []struct {
		name      string
		validator Validator
	}{
		{"per-line validation, rejected at reconciliation", nil},
		{"aggregate validation", AggregateValidator{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(product("P1", 10, 5))
			uc := CreateOrder{Tx: store, Validator: tc.validator}

			_, err := uc.Execute(context.Background(), "C1", req("P1", 3, "P1", 3))
			var pe *domain.ProductError
			require.ErrorAs(t, err, &pe)
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			assert.Equal(t, "P1", pe.ProductID)
			assert.Equal(t, 5, quantity(t, store, "P1"))
			assert.Equal(t, 0, store.OrderCount())
		})
	}
}

func TestCreateOrder_HugeDuplicateQuantitiesRejected(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store, Validator: AggregateValidator{}}

	_, err := uc.Execute(context.Background(), "C1", req("P1", math.MaxInt, "P1", math.MaxInt, "P1", 3))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 5, quantity(t, store, "P1"))
	assert.Equal(t, 0, store.OrderCount())
}

func TestCreateOrder_DuplicateLinesWithinStock(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	o, err := uc.Execute(context.Background(), "C1", req("P1", 2, "P1", 3))
	require.NoError(t, err)
	assert.Len(t, o.Lines, 2)
	assert.Equal(t, 0, quantity(t, store, "P1"))
}

func TestCreateOrder_CustomerNotFoundMutatesNothing(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	_, err := uc.Execute(context.Background(), "C404", req("P1", 1))
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	assert.Equal(t, 5, quantity(t, store, "P1"))
	assert.Equal(t, 0, store.OrderCount())
}

func TestCreateOrder_NoProductsFound(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	_, err := uc.Execute(context.Background(), "C1", req("P8", 1, "P9", 1))
	assert.ErrorIs(t, err, domain.ErrNoProductsFound)

	_, err = uc.Execute(context.Background(), "C1", nil)
	assert.ErrorIs(t, err, domain.ErrNoProductsFound)
	assert.Equal(t, 0, store.OrderCount())
}

func TestCreateOrder_RejectsMalformedInput(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	tests := []struct {
		name     string
		customer string
		lines    []domain.OrderLineRequest
	}{
		{"empty customer", "", req("P1", 1)},
		{"zero quantity", "C1", req("P1", 0)},
		{"negative quantity", "C1", req("P1", -2)},
		{"empty product id", "C1", req("", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tt.customer, tt.lines)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 5, quantity(t, store, "P1"))
		})
	}
}

func TestCreateOrder_SnapshotsPriceAtOrderTime(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	o, err := uc.Execute(context.Background(), "C1", req("P1", 1))
	require.NoError(t, err)

	// цена в каталоге меняется после оформления
	store.PutProduct(product("P1", 99, 4))

	saved, ok, err := store.Orders().FindByID(context.Background(), o.ID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(10).Equal(saved.Lines[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(10).Equal(saved.Total()))
}

func TestCreateOrder_DecrementMatchesOrderedQuantity(t *testing.T) {
	store := newStore(product("P1", 10, 10), product("P2", 4, 7), product("P3", 1, 1))
	uc := CreateOrder{Tx: store}

	o, err := uc.Execute(context.Background(), "C1", req("P2", 2, "P1", 4, "P2", 3))
	require.NoError(t, err)

	ordered := map[string]int{}
	for _, l := range o.Lines {
		ordered[l.ProductID] += l.Quantity
	}
	assert.Equal(t, 10-ordered["P1"], quantity(t, store, "P1"))
	assert.Equal(t, 7-ordered["P2"], quantity(t, store, "P2"))
	assert.Equal(t, 1, quantity(t, store, "P3"))
	assert.Equal(t, []string{"P2", "P1", "P2"}, []string{o.Lines[0].ProductID, o.Lines[1].ProductID, o.Lines[2].ProductID})
}

func TestCreateOrder_ReplayIsNotIdempotent(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	uc := CreateOrder{Tx: store}

	first, err := uc.Execute(context.Background(), "C1", req("P1", 2))
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), "C1", req("P1", 2))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, store.OrderCount())
	assert.Equal(t, 1, quantity(t, store, "P1"))
}

func TestCreateOrder_PersistenceFailureRollsBack(t *testing.T) {
	tests := []struct {
		name  string
		fault func(*memory.Store)
		stage string
	}{
		{"order create fails", func(s *memory.Store) { s.Faults.CreateOrder = errors.New("insert failed") }, "create order"},
		{"stock update fails", func(s *memory.Store) { s.Faults.UpdateQuantity = errors.New("update failed") }, "update quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(product("P1", 10, 5))
			tt.fault(store)
			events := &recordingPublisher{}
			orderCache := cache.NewMemoryOrderCache()
			uc := CreateOrder{Tx: store, Cache: orderCache, Events: events}

			_, err := uc.Execute(context.Background(), "C1", req("P1", 3))
			require.ErrorIs(t, err, domain.ErrPersistence)
			var pe *domain.PersistenceError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.stage, pe.Stage)

			assert.Equal(t, 5, quantity(t, store, "P1"))
			assert.Equal(t, 0, store.OrderCount())
			assert.Empty(t, events.orders)
			assert.Equal(t, 0, orderCache.Len())
		})
	}
}

func TestCreateOrder_CachesAndPublishesAfterCommit(t *testing.T) {
	store := newStore(product("P1", 10, 5))
	events := &recordingPublisher{err: errors.New("broker down")}
	orderCache := cache.NewMemoryOrderCache()
	uc := CreateOrder{Tx: store, Cache: orderCache, Events: events}

	o, err := uc.Execute(context.Background(), "C1", req("P1", 1))
	require.NoError(t, err, "publish failure must not fail a committed order")

	cached, ok := orderCache.Get(context.Background(), o.ID.String())
	require.True(t, ok)
	assert.Equal(t, o.ID, cached.ID)
	require.Len(t, events.orders, 1)
	assert.Equal(t, o.ID, events.orders[0].ID)
}

func TestCreateOrder_ConcurrentOrdersForLastUnits(t *testing.T) {
	store := newStore(product("P1", 10, 3))
	uc := CreateOrder{Tx: store}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Execute(context.Background(), "C1", req("P1", 3))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, quantity(t, store, "P1"))
	assert.Equal(t, 1, store.OrderCount())
}

func TestCreateOrder_ConcurrentLoadNeverOversells(t *testing.T) {
	const stock, buyers = 10, 50
	store := newStore(product("P1", 10, stock))
	uc := CreateOrder{Tx: store}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Execute(context.Background(), "C1", req("P1", 1))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if errors.Is(err, domain.ErrInsufficientStock) {
				fail++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, ok)
	assert.Equal(t, buyers-stock, fail)
	assert.Equal(t, 0, quantity(t, store, "P1"))
	assert.Equal(t, stock, store.OrderCount())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "validating_customer", ValidatingCustomer.String())
	assert.Equal(t, "reconciling_stock", ReconcilingStock.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "unknown", State(42).String())
}
