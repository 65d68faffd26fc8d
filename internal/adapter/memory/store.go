package memory

import (
	"context"
	"sync"
	"time"

	"github.com/example/order-placement-service/internal/domain"
	"github.com/google/uuid"
)

// Faults — ошибки, которые хранилище вернёт вместо выполнения операции.
type Faults struct {
	CreateOrder    error
	UpdateQuantity error
}

// Store — хранилище в памяти. Транзакции выполняются строго по одной:
// изменения копятся в рабочей копии и применяются только при фиксации.
type Store struct {
	mu     sync.Mutex
	data   state
	Faults Faults
}

type state struct {
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	order     []string
}

func NewStore() *Store {
	return &Store{data: state{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
	}}
}

func (s *Store) PutCustomer(c domain.Customer) {
	s.mu.Lock()
	s.data.customers[c.ID] = c
	s.mu.Unlock()
}

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	s.data.products[p.ID] = p
	s.mu.Unlock()
}

func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.products[id]
	return p, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.orders)
}

func (s *Store) WithinTx(ctx context.Context, fn func(r domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(view{st: &work, lock: noLock{}, faults: s.Faults}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Customers, Products и Orders работают вне транзакции.
func (s *Store) Customers() domain.CustomerRepository { return s.view().Customers() }
func (s *Store) Products() domain.ProductRepository   { return s.view().Products() }
func (s *Store) Orders() domain.OrderRepository       { return s.view().Orders() }

func (s *Store) view() view { return view{st: &s.data, lock: &s.mu, faults: s.Faults} }

func (st state) clone() state {
	c := state{
		customers: make(map[string]domain.Customer, len(st.customers)),
		products:  make(map[string]domain.Product, len(st.products)),
		orders:    make(map[string]domain.Order, len(st.orders)),
		order:     append([]string(nil), st.order...),
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	return c
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// view реализует все репозитории поверх одного состояния.
type view struct {
	st     *state
	lock   sync.Locker
	faults Faults
}

func (v view) Customers() domain.CustomerRepository { return customers{v} }
func (v view) Products() domain.ProductRepository   { return products{v} }
func (v view) Orders() domain.OrderRepository       { return orders{v} }

type customers struct{ view }

type products struct{ view }

type orders struct{ view }

func (v customers) FindByID(_ context.Context, id string) (domain.Customer, bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()
	c, ok := v.st.customers[id]
	return c, ok, nil
}

func (v products) FindAllByID(_ context.Context, ids []string) ([]domain.Product, error) {
	v.lock.Lock()
	defer v.lock.Unlock()
	seen := make(map[string]struct{}, len(ids))
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := v.st.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v products) UpdateQuantity(_ context.Context, adjustments []domain.StockAdjustment) error {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.faults.UpdateQuantity != nil {
		return v.faults.UpdateQuantity
	}
	for _, a := range adjustments {
		p, ok := v.st.products[a.ProductID]
		if !ok || p.AvailableQuantity != a.ExpectedQuantity {
			return &domain.ProductError{ProductID: a.ProductID, Err: domain.ErrStockConflict}
		}
		if a.NewQuantity < 0 {
			return domain.InsufficientStock(a.ProductID)
		}
		p.AvailableQuantity = a.NewQuantity
		v.st.products[a.ProductID] = p
	}
	return nil
}

func (v orders) Create(_ context.Context, customer domain.Customer, lines []domain.OrderLine) (domain.Order, error) {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.faults.CreateOrder != nil {
		return domain.Order{}, v.faults.CreateOrder
	}
	o := domain.Order{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		Lines:      append([]domain.OrderLine(nil), lines...),
		CreatedAt:  time.Now().UTC(),
	}
	id := o.ID.String()
	v.st.orders[id] = o
	v.st.order = append(v.st.order, id)
	return o, nil
}

func (v orders) FindByID(_ context.Context, id string) (domain.Order, bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()
	o, ok := v.st.orders[id]
	return o, ok, nil
}

func (v orders) LoadAll(_ context.Context, fn func(o domain.Order) error) error {
	v.lock.Lock()
	list := make([]domain.Order, 0, len(v.st.order))
	for _, id := range v.st.order {
		list = append(list, v.st.orders[id])
	}
	v.lock.Unlock()
	for _, o := range list {
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ domain.UnitOfWork         = (*Store)(nil)
	_ domain.Repositories       = (*Store)(nil)
	_ domain.CustomerRepository = customers{}
	_ domain.ProductRepository  = products{}
	_ domain.OrderRepository    = orders{}
)
