package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"lendeefi/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoanEventRepository struct {
	db *gorm.DB
}

func NewLoanEventRepository(db *gorm.DB) *LoanEventRepository {
	return &LoanEventRepository{db: db}
}

func (r *LoanEventRepository) Append(ctx context.Context, event domain.LoanEvent) (domain.LoanEvent, error) {
	if r.db == nil {
		return domain.LoanEvent{}, errDBUnavailable
	}
	if event.Kind == "" {
		return domain.LoanEvent{}, errors.New("event kind is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.LoanEvent{}, err
	}

	model := LoanEventModel{
		ID:          event.ID,
		Kind:        string(event.Kind),
		Actor:       event.Actor.Hex(),
		PayloadJSON: payload,
		CreatedAt:   event.CreatedAt,
	}
	if event.ClaimHash != (common.Hash{}) {
		model.ClaimHash = event.ClaimHash.Hex()
	}
	if event.Root != (common.Hash{}) {
		model.Root = event.Root.Hex()
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.LoanEvent{}, err
	}
	return event, nil
}

func (r *LoanEventRepository) ListByClaim(ctx context.Context, claimHash common.Hash) ([]domain.LoanEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []LoanEventModel
	if err := r.db.WithContext(ctx).
		Where("claim_hash = ?", claimHash.Hex()).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LoanEvent, 0, len(models))
	for _, model := range models {
		payload := map[string]any{}
		dec := json.NewDecoder(bytes.NewReader(model.PayloadJSON))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}
		event := domain.LoanEvent{
			ID:        model.ID,
			Kind:      domain.LoanEventKind(model.Kind),
			Actor:     common.HexToAddress(model.Actor),
			Payload:   payload,
			CreatedAt: model.CreatedAt.UTC(),
		}
		if model.ClaimHash != "" {
			event.ClaimHash = common.HexToHash(model.ClaimHash)
		}
		if model.Root != "" {
			event.Root = common.HexToHash(model.Root)
		}
		out = append(out, event)
	}
	return out, nil
}
