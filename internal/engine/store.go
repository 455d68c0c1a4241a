package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowboard/flowboard/internal/models"
	"gorm.io/gorm"
)

// Store is the record-store boundary. The engine treats it as synchronous
// and consistent; Transaction must give the callback a store whose writes
// commit or roll back as one unit.
type Store interface {
	Boards(ctx context.Context) ([]models.Board, error)
	Board(ctx context.Context, id string) (*models.Board, error)
	Column(ctx context.Context, id string) (*models.Column, error)
	Card(ctx context.Context, id string) (*models.Card, error)
	CardByExternalID(ctx context.Context, boardID, externalID string) (*models.Card, error)
	Rule(ctx context.Context, id string) (*models.AutomationRule, error)

	Columns(ctx context.Context, boardID string) ([]models.Column, error)
	BoardCards(ctx context.Context, boardID string) ([]models.Card, error)
	ColumnCards(ctx context.Context, columnID string) ([]models.Card, error)
	BoardEvents(ctx context.Context, boardID string) ([]models.CardEvent, error)
	CardEvents(ctx context.Context, cardID string) ([]models.CardEvent, error)
	Rules(ctx context.Context, boardID string) ([]models.AutomationRule, error)

	Insert(ctx context.Context, record any) error
	Update(ctx context.Context, record any) error

	Transaction(ctx context.Context, fn func(Store) error) error
}

// NewStore wraps a gorm database as a Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) Boards(ctx context.Context) ([]models.Board, error) {
	var boards []models.Board
	err := s.db.WithContext(ctx).Order("created_at asc, id asc").Find(&boards).Error
	if err != nil {
		return nil, fmt.Errorf("query boards: %w", err)
	}
	return boards, nil
}

func (s *gormStore) Board(ctx context.Context, id string) (*models.Board, error) {
	var b models.Board
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "board %s", id)
	}
	return &b, nil
}

func (s *gormStore) Column(ctx context.Context, id string) (*models.Column, error) {
	var c models.Column
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "column %s", id)
	}
	return &c, nil
}

func (s *gormStore) Card(ctx context.Context, id string) (*models.Card, error) {
	var c models.Card
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "card %s", id)
	}
	return &c, nil
}

func (s *gormStore) CardByExternalID(ctx context.Context, boardID, externalID string) (*models.Card, error) {
	var c models.Card
	err := s.db.WithContext(ctx).
		First(&c, "board_id = ? AND external_task_id = ?", boardID, externalID).Error
	if err != nil {
		return nil, wrapNotFound(err, "card with external task %s", externalID)
	}
	return &c, nil
}

func (s *gormStore) Rule(ctx context.Context, id string) (*models.AutomationRule, error) {
	var r models.AutomationRule
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "rule %s", id)
	}
	return &r, nil
}

func (s *gormStore) Columns(ctx context.Context, boardID string) ([]models.Column, error) {
	var cols []models.Column
	err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("position asc").
		Find(&cols).Error
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	return cols, nil
}

func (s *gormStore) BoardCards(ctx context.Context, boardID string) ([]models.Card, error) {
	var cards []models.Card
	err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("column_id asc, position asc").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("query board cards: %w", err)
	}
	return cards, nil
}

func (s *gormStore) ColumnCards(ctx context.Context, columnID string) ([]models.Card, error) {
	var cards []models.Card
	err := s.db.WithContext(ctx).
		Where("column_id = ? AND status = ?", columnID, models.CardActive).
		Order("position asc").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("query column cards: %w", err)
	}
	return cards, nil
}

func (s *gormStore) BoardEvents(ctx context.Context, boardID string) ([]models.CardEvent, error) {
	var events []models.CardEvent
	err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("created_at asc, id asc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("query board events: %w", err)
	}
	return events, nil
}

func (s *gormStore) CardEvents(ctx context.Context, cardID string) ([]models.CardEvent, error) {
	var events []models.CardEvent
	err := s.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("created_at asc, id asc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("query card events: %w", err)
	}
	return events, nil
}

func (s *gormStore) Rules(ctx context.Context, boardID string) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("created_at asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	return rules, nil
}

func (s *gormStore) Insert(ctx context.Context, record any) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *gormStore) Update(ctx context.Context, record any) error {
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
