package repository

import (
	"context"
	"errors"

	"labbooking/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTransactionRefAssigned is returned when a payment already carries an order reference.
var ErrTransactionRefAssigned = errors.New("transaction reference already assigned")

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByRef(ctx context.Context, ref string) (*model.Payment, error)
	FindByRefForUpdate(ctx context.Context, ref string) (*model.Payment, error)
	FindLatestByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Payment, error)
	AssignTransaction(ctx context.Context, id uuid.UUID, ref, token, redirectURL string) error
	Update(ctx context.Context, payment *model.Payment) error
	UpdateClientStatus(ctx context.Context, ref, status string) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByRef(ctx context.Context, ref string) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Where("transaction_ref = ?", ref).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByRefForUpdate(ctx context.Context, ref string) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_ref = ?", ref).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindLatestByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).
		Order("created_at DESC").First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// AssignTransaction stores the gateway transaction onto a payment whose
// reference is still empty. The reference is never overwritten.
func (r *paymentRepository) AssignTransaction(ctx context.Context, id uuid.UUID, ref, token, redirectURL string) error {
	res := GetDB(ctx, r.db).Model(&model.Payment{}).
		Where("id = ? AND transaction_ref IS NULL", id).
		Updates(map[string]interface{}{
			"transaction_ref":      ref,
			"gateway_token":        token,
			"gateway_redirect_url": redirectURL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransactionRefAssigned
	}
	return nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Save(payment).Error
}

func (r *paymentRepository) UpdateClientStatus(ctx context.Context, ref, status string) error {
	res := GetDB(ctx, r.db).Model(&model.Payment{}).Where("transaction_ref = ?", ref).Update("client_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
