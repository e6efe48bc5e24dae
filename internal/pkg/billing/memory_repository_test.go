package billing

import (
	"context"

	"github.com/mybizz/mybizz/app/models"
	"gorm.io/gorm"
)

// memoryRepository is an in-memory Repository for processor tests.
type memoryRepository struct {
	nextID       uint
	transactions map[string]*models.Transaction
	txItems      map[uint]map[string]*models.TransactionItem
	failed       map[uint]*models.FailedTransaction
	subs         map[string]*models.Subscription
	subItems     map[uint][]*models.SubscriptionItem
	plans        map[string]*models.Item
	products     map[string]*models.Product
	prices       map[string]*models.Price
	customers    map[string]*models.Customer
	discounts    map[string]*models.Discount
	users        map[string]*models.User
	takenIDs     map[string]bool
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		transactions: map[string]*models.Transaction{},
		txItems:      map[uint]map[string]*models.TransactionItem{},
		failed:       map[uint]*models.FailedTransaction{},
		subs:         map[string]*models.Subscription{},
		subItems:     map[uint][]*models.SubscriptionItem{},
		plans:        map[string]*models.Item{},
		products:     map[string]*models.Product{},
		prices:       map[string]*models.Price{},
		customers:    map[string]*models.Customer{},
		discounts:    map[string]*models.Discount{},
		users:        map[string]*models.User{},
		takenIDs:     map[string]bool{},
	}
}

func (m *memoryRepository) id() uint {
	m.nextID++
	return m.nextID
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

func (m *memoryRepository) WithTx(_ context.Context, fn func(repo Repository) error) error {
	return fn(m)
}

func (m *memoryRepository) SyntheticIDExists(_ context.Context, _ IDKind, id string) (bool, error) {
	return m.takenIDs[id], nil
}

func (m *memoryRepository) FindTransaction(_ context.Context, paddleID string) (*models.Transaction, error) {
	if r, ok := m.transactions[paddleID]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	if tx.ID == 0 {
		tx.ID = m.id()
		m.takenIDs[tx.TransactionID] = true
	}
	m.transactions[tx.PaddleID] = clone(tx)
	return nil
}

func (m *memoryRepository) FindTransactionItem(_ context.Context, txRef uint, lineID string) (*models.TransactionItem, error) {
	if r, ok := m.txItems[txRef][lineID]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SaveTransactionItem(_ context.Context, item *models.TransactionItem) error {
	if item.ID == 0 {
		item.ID = m.id()
	}
	if m.txItems[item.TransactionRefID] == nil {
		m.txItems[item.TransactionRefID] = map[string]*models.TransactionItem{}
	}
	m.txItems[item.TransactionRefID][item.LineItemID] = clone(item)
	return nil
}

func (m *memoryRepository) FindFailedTransaction(_ context.Context, txRef uint) (*models.FailedTransaction, error) {
	if r, ok := m.failed[txRef]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SaveFailedTransaction(_ context.Context, ft *models.FailedTransaction) error {
	if ft.ID == 0 {
		ft.ID = m.id()
		m.takenIDs[ft.FailedTransactionID] = true
	}
	m.failed[ft.TransactionRefID] = clone(ft)
	return nil
}

func (m *memoryRepository) FindSubscription(_ context.Context, paddleID string) (*models.Subscription, error) {
	if r, ok := m.subs[paddleID]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	if sub.ID == 0 {
		sub.ID = m.id()
		m.takenIDs[sub.SubscriptionID] = true
	}
	m.subs[sub.PaddleID] = clone(sub)
	return nil
}

func (m *memoryRepository) ListSubscriptionItems(_ context.Context, subRef uint) ([]models.SubscriptionItem, error) {
	out := make([]models.SubscriptionItem, 0, len(m.subItems[subRef]))
	for _, it := range m.subItems[subRef] {
		out = append(out, *it)
	}
	return out, nil
}

func (m *memoryRepository) SaveSubscriptionItem(_ context.Context, item *models.SubscriptionItem) error {
	if item.ID == 0 {
		item.ID = m.id()
		m.subItems[item.SubscriptionRefID] = append(m.subItems[item.SubscriptionRefID], clone(item))
		return nil
	}
	for i, it := range m.subItems[item.SubscriptionRefID] {
		if it.ID == item.ID {
			m.subItems[item.SubscriptionRefID][i] = clone(item)
		}
	}
	return nil
}

func (m *memoryRepository) FindPlanByGLT(_ context.Context, glt string) (*models.Item, error) {
	if r, ok := m.plans[glt]; ok && r.IsActive {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) FindProduct(_ context.Context, paddleID string) (*models.Product, error) {
	if r, ok := m.products[paddleID]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SaveProduct(_ context.Context, p *models.Product) error {
	if p.ID == 0 {
		p.ID = m.id()
		m.takenIDs[p.ProductID] = true
	}
	m.products[p.PaddleID] = clone(p)
	return nil
}

func (m *memoryRepository) FindPrice(_ context.Context, paddleID string) (*models.Price, error) {
	if r, ok := m.prices[paddleID]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SavePrice(_ context.Context, p *models.Price) error {
	if p.ID == 0 {
		p.ID = m.id()
		m.takenIDs[p.PriceID] = true
	}
	m.prices[p.PaddleID] = clone(p)
	return nil
}

func (m *memoryRepository) FindCustomer(_ context.Context, paddleID string) (*models.Customer, error) {
	if r, ok := m.customers[paddleID]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SaveCustomer(_ context.Context, c *models.Customer) error {
	if c.ID == 0 {
		c.ID = m.id()
		m.takenIDs[c.CustomerID] = true
	}
	m.customers[c.PaddleID] = clone(c)
	return nil
}

func (m *memoryRepository) FindDiscount(_ context.Context, paddleID string) (*models.Discount, error) {
	if r, ok := m.discounts[paddleID]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) SaveDiscount(_ context.Context, d *models.Discount) error {
	if d.ID == 0 {
		d.ID = m.id()
		m.takenIDs[d.DiscountID] = true
	}
	m.discounts[d.PaddleID] = clone(d)
	return nil
}

func (m *memoryRepository) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	if r, ok := m.users[email]; ok {
		return clone(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) CreateUser(_ context.Context, u *models.User) error {
	u.ID = m.id()
	m.users[u.Email] = clone(u)
	return nil
}

// seeding helpers

func (m *memoryRepository) addProduct(paddleID string) *models.Product {
	p := &models.Product{ProductID: "PRD-" + paddleID, PaddleID: paddleID, Name: paddleID, Status: "active"}
	_ = m.SaveProduct(context.Background(), p)
	return p
}

func (m *memoryRepository) addPrice(paddleID, productPaddleID string) *models.Price {
	prod := m.products[productPaddleID]
	if prod == nil {
		prod = m.addProduct(productPaddleID)
	}
	p := &models.Price{PriceID: "PRC-" + paddleID, PaddleID: paddleID, ProductRefID: prod.ID, ProductPaddleID: productPaddleID, Status: "active"}
	_ = m.SavePrice(context.Background(), p)
	return p
}

func (m *memoryRepository) addPlan(glt string) *models.Item {
	code := glt
	it := &models.Item{ID: m.id(), ItemID: "ITM-" + glt, Name: "Plan " + glt, ItemType: models.ItemTypeSubscriptionPlan, GLT: &code, IsActive: true}
	m.plans[glt] = it
	return it
}
