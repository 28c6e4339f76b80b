package address

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CreateRequest is the address payload accepted from clients.
type CreateRequest struct {
	Receiver string `json:"receiver" validate:"required,max=64"`
	Province string `json:"province" validate:"required,max=64"`
	City     string `json:"city" validate:"required,max=64"`
	District string `json:"district" validate:"required,max=64"`
	Place    string `json:"place" validate:"required,max=256"`
	Mobile   string `json:"mobile" validate:"required,max=32"`
}

// DTO is the address as returned to clients.
type DTO struct {
	ID        uuid.UUID `json:"id"`
	Receiver  string    `json:"receiver"`
	Province  string    `json:"province"`
	City      string    `json:"city"`
	District  string    `json:"district"`
	Place     string    `json:"place"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
}

func FromModel(a models.Address) DTO {
	return DTO{
		ID:        a.ID,
		Receiver:  a.Receiver,
		Province:  a.Province,
		City:      a.City,
		District:  a.District,
		Place:     a.Place,
		Mobile:    a.Mobile,
		CreatedAt: a.CreatedAt,
	}
}

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*DTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]DTO, error)
	GetOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type repository interface {
	Create(ctx context.Context, address *models.Address) error
	FindOwned(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*DTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	address := &models.Address{
		UserID:   userID,
		Receiver: strings.TrimSpace(req.Receiver),
		Province: strings.TrimSpace(req.Province),
		City:     strings.TrimSpace(req.City),
		District: strings.TrimSpace(req.District),
		Place:    strings.TrimSpace(req.Place),
		Mobile:   strings.TrimSpace(req.Mobile),
	}
	if missing := missingFields(address); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address fields are required").
			WithDetails(map[string]any{"missing": missing})
	}
	if err := s.repo.Create(ctx, address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
	}
	dto := FromModel(*address)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]DTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

// GetOwned returns NotFound for addresses of other users so ids cannot be probed.
func (s *service) GetOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	address, err := s.repo.FindOwned(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	return address, nil
}

func missingFields(a *models.Address) []string {
	missing := []string{}
	for name, value := range map[string]string{
		"receiver": a.Receiver,
		"province": a.Province,
		"city":     a.City,
		"district": a.District,
		"place":    a.Place,
		"mobile":   a.Mobile,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
