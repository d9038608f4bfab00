package datastore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm implements Store on a relational database through gorm. The *gorm.DB
// must be opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type Gorm struct {
	db *gorm.DB
}

// NewGorm creates a new Gorm store
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) scope(ctx context.Context, collection string, q Query) (*gorm.DB, error) {
	if err := q.validate(collection); err != nil {
		return nil, err
	}

	exprs := make([]clause.Expression, 0, len(q.Filters)+1)
	for _, f := range q.Filters {
		col := clause.Column{Name: f.Field}
		switch f.Op {
		case OpEq:
			exprs = append(exprs, clause.Eq{Column: col, Value: f.Value})
		case OpLt:
			exprs = append(exprs, clause.Lt{Column: col, Value: f.Value})
		case OpGt:
			exprs = append(exprs, clause.Gt{Column: col, Value: f.Value})
		case OpIn:
			exprs = append(exprs, clause.IN{Column: col, Values: f.Value.([]any)})
		}
	}
	if k := q.After; k != nil {
		tcol := clause.Column{Name: k.TimeField}
		icol := clause.Column{Name: k.IDField}
		if k.Desc {
			exprs = append(exprs, clause.Or(
				clause.Lt{Column: tcol, Value: k.Time},
				clause.And(clause.Eq{Column: tcol, Value: k.Time}, clause.Lt{Column: icol, Value: k.ID}),
			))
		} else {
			exprs = append(exprs, clause.Or(
				clause.Gt{Column: tcol, Value: k.Time},
				clause.And(clause.Eq{Column: tcol, Value: k.Time}, clause.Gt{Column: icol, Value: k.ID}),
			))
		}
	}

	tx := s.db.WithContext(ctx).Table(collection)
	if len(exprs) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: exprs})
	}
	return tx, nil
}

func (s *Gorm) Select(ctx context.Context, collection string, q Query, dest any) error {
	tx, err := s.scope(ctx, collection, q)
	if err != nil {
		return err
	}
	for _, o := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(dest).Error; err != nil {
		return fmt.Errorf("select %s: %w", collection, err)
	}
	return nil
}

func (s *Gorm) Insert(ctx context.Context, collection string, row any) error {
	if err := checkIdent("collection", collection); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Table(collection).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("insert %s: %w", collection, ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

func (s *Gorm) Delete(ctx context.Context, collection string, q Query) (int64, error) {
	tx, err := s.scope(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	res := tx.Delete(map[string]any{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Gorm) Count(ctx context.Context, collection string, q Query) (int64, error) {
	tx, err := s.scope(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Gorm) Update(ctx context.Context, collection string, q Query, set map[string]any) (int64, error) {
	for field := range set {
		if err := checkIdent("field", field); err != nil {
			return 0, err
		}
	}
	tx, err := s.scope(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	res := tx.Updates(set)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s: %w", collection, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Gorm) Increment(ctx context.Context, collection string, q Query, field string, delta int64) (int64, error) {
	if err := checkIdent("field", field); err != nil {
		return 0, err
	}
	tx, err := s.scope(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	res := tx.UpdateColumn(field, gorm.Expr(field+" + ?", delta))
	if res.Error != nil {
		return 0, fmt.Errorf("increment %s.%s: %w", collection, field, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Gorm) Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Gorm{db: tx})
	})
}

// Close closes the underlying connection pool.
func (s *Gorm) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
