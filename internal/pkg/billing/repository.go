package billing

import (
	"context"
	"fmt"

	"github.com/mybizz/mybizz/app/models"
	"gorm.io/gorm"
)

// IDKind selects the table a synthetic id belongs to.
type IDKind string

const (
	IDKindTransaction       IDKind = "TXN"
	IDKindFailedTransaction IDKind = "FTX"
	IDKindSubscription      IDKind = "SUB"
	IDKindProduct           IDKind = "PRD"
	IDKindPrice             IDKind = "PRC"
	IDKindCustomer          IDKind = "CUS"
	IDKindDiscount          IDKind = "DSC"
)

// Repository provides the storage operations used by the resource
// processors. Find methods return gorm.ErrRecordNotFound when nothing matches.
type Repository interface {
	// WithTx runs fn against a repository bound to one database transaction.
	WithTx(ctx context.Context, fn func(repo Repository) error) error
	SyntheticIDExists(ctx context.Context, kind IDKind, id string) (bool, error)

	FindTransaction(ctx context.Context, paddleID string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	FindTransactionItem(ctx context.Context, transactionRefID uint, lineItemID string) (*models.TransactionItem, error)
	SaveTransactionItem(ctx context.Context, item *models.TransactionItem) error
	FindFailedTransaction(ctx context.Context, transactionRefID uint) (*models.FailedTransaction, error)
	SaveFailedTransaction(ctx context.Context, ft *models.FailedTransaction) error

	FindSubscription(ctx context.Context, paddleID string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptionItems(ctx context.Context, subscriptionRefID uint) ([]models.SubscriptionItem, error)
	SaveSubscriptionItem(ctx context.Context, item *models.SubscriptionItem) error
	FindPlanByGLT(ctx context.Context, glt string) (*models.Item, error)

	FindProduct(ctx context.Context, paddleID string) (*models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error
	FindPrice(ctx context.Context, paddleID string) (*models.Price, error)
	SavePrice(ctx context.Context, p *models.Price) error
	FindCustomer(ctx context.Context, paddleID string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, c *models.Customer) error
	FindDiscount(ctx context.Context, paddleID string) (*models.Discount, error)
	SaveDiscount(ctx context.Context, d *models.Discount) error

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

var syntheticIDColumns = map[IDKind]struct {
	model  interface{}
	column string
}{
	IDKindTransaction:       {&models.Transaction{}, "transaction_id"},
	IDKindFailedTransaction: {&models.FailedTransaction{}, "failed_transaction_id"},
	IDKindSubscription:      {&models.Subscription{}, "subscription_id"},
	IDKindProduct:           {&models.Product{}, "product_id"},
	IDKindPrice:             {&models.Price{}, "price_id"},
	IDKindCustomer:          {&models.Customer{}, "customer_id"},
	IDKindDiscount:          {&models.Discount{}, "discount_id"},
}

func (r *gormRepository) SyntheticIDExists(ctx context.Context, kind IDKind, id string) (bool, error) {
	target, ok := syntheticIDColumns[kind]
	if !ok {
		return false, fmt.Errorf("unknown id kind %q", kind)
	}
	var count int64
	err := r.db.WithContext(ctx).Model(target.model).Where(target.column+" = ?", id).Count(&count).Error
	return count > 0, err
}

// first loads the single row matching query into dest.
func first[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*T, error) {
	var out T
	if err := db.WithContext(ctx).Where(query, args...).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *gormRepository) save(ctx context.Context, v interface{}) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *gormRepository) FindTransaction(ctx context.Context, paddleID string) (*models.Transaction, error) {
	return first[models.Transaction](ctx, r.db, "paddle_id = ?", paddleID)
}

func (r *gormRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	return r.save(ctx, tx)
}

func (r *gormRepository) FindTransactionItem(ctx context.Context, transactionRefID uint, lineItemID string) (*models.TransactionItem, error) {
	return first[models.TransactionItem](ctx, r.db, "transaction_ref_id = ? AND line_item_id = ?", transactionRefID, lineItemID)
}

func (r *gormRepository) SaveTransactionItem(ctx context.Context, item *models.TransactionItem) error {
	return r.save(ctx, item)
}

func (r *gormRepository) FindFailedTransaction(ctx context.Context, transactionRefID uint) (*models.FailedTransaction, error) {
	return first[models.FailedTransaction](ctx, r.db, "transaction_ref_id = ?", transactionRefID)
}

func (r *gormRepository) SaveFailedTransaction(ctx context.Context, ft *models.FailedTransaction) error {
	return r.save(ctx, ft)
}

func (r *gormRepository) FindSubscription(ctx context.Context, paddleID string) (*models.Subscription, error) {
	return first[models.Subscription](ctx, r.db, "paddle_id = ?", paddleID)
}

func (r *gormRepository) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.save(ctx, sub)
}

func (r *gormRepository) ListSubscriptionItems(ctx context.Context, subscriptionRefID uint) ([]models.SubscriptionItem, error) {
	var items []models.SubscriptionItem
	err := r.db.WithContext(ctx).Where("subscription_ref_id = ?", subscriptionRefID).Order("id ASC").Find(&items).Error
	return items, err
}

func (r *gormRepository) SaveSubscriptionItem(ctx context.Context, item *models.SubscriptionItem) error {
	return r.save(ctx, item)
}

func (r *gormRepository) FindPlanByGLT(ctx context.Context, glt string) (*models.Item, error) {
	return first[models.Item](ctx, r.db, "glt = ? AND item_type = ? AND is_active = ?", glt, models.ItemTypeSubscriptionPlan, true)
}

func (r *gormRepository) FindProduct(ctx context.Context, paddleID string) (*models.Product, error) {
	return first[models.Product](ctx, r.db, "paddle_id = ?", paddleID)
}

func (r *gormRepository) SaveProduct(ctx context.Context, p *models.Product) error {
	return r.save(ctx, p)
}

func (r *gormRepository) FindPrice(ctx context.Context, paddleID string) (*models.Price, error) {
	return first[models.Price](ctx, r.db, "paddle_id = ?", paddleID)
}

func (r *gormRepository) SavePrice(ctx context.Context, p *models.Price) error {
	return r.save(ctx, p)
}

func (r *gormRepository) FindCustomer(ctx context.Context, paddleID string) (*models.Customer, error) {
	return first[models.Customer](ctx, r.db, "paddle_id = ?", paddleID)
}

func (r *gormRepository) SaveCustomer(ctx context.Context, c *models.Customer) error {
	return r.save(ctx, c)
}

func (r *gormRepository) FindDiscount(ctx context.Context, paddleID string) (*models.Discount, error) {
	return first[models.Discount](ctx, r.db, "paddle_id = ?", paddleID)
}

func (r *gormRepository) SaveDiscount(ctx context.Context, d *models.Discount) error {
	return r.save(ctx, d)
}

func (r *gormRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](ctx, r.db, "email = ?", email)
}

func (r *gormRepository) CreateUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}
