package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	BackendRecords = "records"

	// DefaultMaxPayloadBytes matches the cart_snapshots_payload_size constraint.
	DefaultMaxPayloadBytes = 1 << 20
)

// CartSnapshot is one row of cart_snapshots.
type CartSnapshot struct {
	CartKey   string    `gorm:"column:cart_key;primaryKey"`
	Payload   string    `gorm:"column:payload;not null"`
	ItemCount int       `gorm:"column:item_count;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSnapshot) TableName() string { return "cart_snapshots" }

// Records stores snapshots as rows of the cart_snapshots table, keyed by storage key.
type Records struct {
	client          *db.Client
	key             string
	maxPayloadBytes int
}

// NewRecords builds the adapter. maxPayloadBytes <= 0 uses DefaultMaxPayloadBytes.
func NewRecords(client *db.Client, storageKey string, maxPayloadBytes int) *Records {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Records{client: client, key: storageKey, maxPayloadBytes: maxPayloadBytes}
}

func (r *Records) Backend() string { return BackendRecords }

func (r *Records) GetCart(ctx context.Context) (*cart.State, error) {
	var row CartSnapshot
	err := r.client.DB().WithContext(ctx).Where("cart_key = ?", r.key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(cart.OpGet, BackendRecords, err)
	}
	state, err := decodeOrClear([]byte(row.Payload), func() error { return r.delete(ctx) })
	return state, storageError(cart.OpClear, BackendRecords, err)
}

func (r *Records) SaveCart(ctx context.Context, state cart.State) error {
	err := writeWithReducedRetry(state, isRecordsQuota, func(payload []byte) error {
		if len(payload) > r.maxPayloadBytes {
			return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrQuotaExceeded, len(payload), r.maxPayloadBytes)
		}
		return r.upsert(ctx, payload)
	})
	return storageError(cart.OpSave, BackendRecords, err)
}

func (r *Records) ClearCart(ctx context.Context) error {
	return storageError(cart.OpClear, BackendRecords, r.delete(ctx))
}

func (r *Records) upsert(ctx context.Context, payload []byte) error {
	var counted struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(payload, &counted); err != nil {
		return err
	}
	return r.client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "item_count", "updated_at"}),
		}).Create(&CartSnapshot{
			CartKey:   r.key,
			Payload:   string(payload),
			ItemCount: len(counted.Items),
		}).Error
	})
}

func (r *Records) delete(ctx context.Context) error {
	return r.client.DB().WithContext(ctx).Where("cart_key = ?", r.key).Delete(&CartSnapshot{}).Error
}

func isRecordsQuota(err error) bool {
	return isQuota(err) || db.IsQuotaExceeded(err)
}
