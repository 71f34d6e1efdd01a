package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/telcobill/internal/customer/domain"
	"github.com/smallbiznis/telcobill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p ServiceParam) customerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (*customerdomain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, customerdomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, customerdomain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	record := &customerdomain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Status:    customerdomain.CustomerStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var exists int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM customers WHERE email = ?`,
		email,
	).Scan(&exists).Error; err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, customerdomain.ErrDuplicateEmail
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*customerdomain.Customer, error) {
	customerID, err := parseID(id)
	if err != nil {
		return nil, customerdomain.ErrInvalidCustomer
	}
	return s.loadCustomer(ctx, s.db, customerID, false)
}

func (s *Service) List(ctx context.Context) ([]customerdomain.Customer, error) {
	var customers []customerdomain.Customer
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM customers ORDER BY id`,
	).Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// Deactivate suspends an account. SIMs keep their state; billing skips the
// customer while deactivated.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.transition(ctx, id, customerdomain.CustomerStatusActive, customerdomain.CustomerStatusDeactivated, false)
}

func (s *Service) Reactivate(ctx context.Context, id string) error {
	return s.transition(ctx, id, customerdomain.CustomerStatusDeactivated, customerdomain.CustomerStatusActive, false)
}

// Disconnect terminates the account and deactivates every SIM in the same
// transaction, keeping the no-active-SIMs invariant.
func (s *Service) Disconnect(ctx context.Context, id string) error {
	return s.transition(ctx, id, "", customerdomain.CustomerStatusDisconnected, true)
}

func (s *Service) transition(ctx context.Context, id string, from, to customerdomain.CustomerStatus, deactivateSims bool) error {
	customerID, err := parseID(id)
	if err != nil {
		return customerdomain.ErrInvalidCustomer
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.loadCustomer(ctx, tx, customerID, true)
		if err != nil {
			return err
		}
		if customer.Status == customerdomain.CustomerStatusDisconnected {
			return customerdomain.ErrCustomerDisconnected
		}
		if from != "" && customer.Status != from {
			return customerdomain.ErrCustomerNotActive
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE customers SET status = ?, updated_at = ? WHERE id = ?`,
			to, now, customerID,
		).Error; err != nil {
			return err
		}

		if deactivateSims {
			if err := tx.WithContext(ctx).Exec(
				`UPDATE sims SET status = ?, updated_at = ? WHERE customer_id = ? AND status = ?`,
				customerdomain.SimStatusInactive, now, customerID, customerdomain.SimStatusActive,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) ProvisionSim(ctx context.Context, req customerdomain.ProvisionSimRequest) (*customerdomain.Sim, error) {
	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return nil, customerdomain.ErrInvalidCustomer
	}
	planID, err := parseID(req.PlanID)
	if err != nil {
		return nil, customerdomain.ErrInvalidSim
	}
	msisdn := strings.TrimSpace(req.Msisdn)
	if msisdn == "" {
		return nil, customerdomain.ErrInvalidMsisdn
	}

	var record *customerdomain.Sim
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.loadCustomer(ctx, tx, customerID, true)
		if err != nil {
			return err
		}
		if customer.Status != customerdomain.CustomerStatusActive {
			return customerdomain.ErrCustomerNotActive
		}

		var planCount int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM plans WHERE id = ?`,
			planID,
		).Scan(&planCount).Error; err != nil {
			return err
		}
		if planCount == 0 {
			return customerdomain.ErrInvalidSim
		}

		var msisdnCount int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM sims WHERE msisdn = ?`,
			msisdn,
		).Scan(&msisdnCount).Error; err != nil {
			return err
		}
		if msisdnCount > 0 {
			return customerdomain.ErrDuplicateMsisdn
		}

		now := time.Now().UTC()
		record = &customerdomain.Sim{
			ID:          s.genID.Generate(),
			CustomerID:  customerID,
			PlanID:      planID,
			Msisdn:      msisdn,
			Status:      customerdomain.SimStatusActive,
			ActivatedAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.WithContext(ctx).Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) DeactivateSim(ctx context.Context, simID string) error {
	id, err := parseID(simID)
	if err != nil {
		return customerdomain.ErrInvalidSim
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE sims SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		customerdomain.SimStatusInactive, time.Now().UTC(), id, customerdomain.SimStatusActive,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return customerdomain.ErrSimNotFound
	}
	return nil
}

func (s *Service) ListSims(ctx context.Context, customerID string) ([]customerdomain.Sim, error) {
	id, err := parseID(customerID)
	if err != nil {
		return nil, customerdomain.ErrInvalidCustomer
	}

	var sims []customerdomain.Sim
	err = s.db.WithContext(ctx).Raw(
		`SELECT * FROM sims WHERE customer_id = ? ORDER BY id`,
		id,
	).Scan(&sims).Error
	if err != nil {
		return nil, err
	}
	return sims, nil
}

func (s *Service) ListBillable(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM customers WHERE status = ? ORDER BY id`,
		customerdomain.CustomerStatusActive,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) loadCustomer(ctx context.Context, tx *gorm.DB, id snowflake.ID, forUpdate bool) (*customerdomain.Customer, error) {
	query := `SELECT * FROM customers WHERE id = ?`
	if forUpdate {
		query += db.RowLock(tx)
	}

	var customer customerdomain.Customer
	if err := tx.WithContext(ctx).Raw(query, id).Scan(&customer).Error; err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, customerdomain.ErrCustomerNotFound
	}
	return &customer, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, customerdomain.ErrInvalidCustomer
	}
	return id, nil
}
