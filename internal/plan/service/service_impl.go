package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/cache"
	customerdomain "github.com/smallbiznis/telcobill/internal/customer/domain"
	plandomain "github.com/smallbiznis/telcobill/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tariffCacheTTL = 30 * time.Second

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

	tariffs *cache.TTLCache[snowflake.ID, plandomain.Tariff]
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("plan.service"),
		genID:   p.GenID,
		tariffs: cache.NewTTLCache[snowflake.ID, plandomain.Tariff](),
	}
}

// Resolve loads a plan and its specialization row. Resolved tariffs are
// cached briefly; plan mutations invalidate the entry.
func (s *Service) Resolve(ctx context.Context, planID snowflake.ID) (plandomain.Tariff, error) {
	if planID == 0 {
		return plandomain.Tariff{}, plandomain.ErrInvalidPlan
	}
	if tariff, ok := s.tariffs.Get(planID); ok {
		return tariff, nil
	}

	var plan plandomain.Plan
	if err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM plans WHERE id = ?`,
		planID,
	).Scan(&plan).Error; err != nil {
		return plandomain.Tariff{}, err
	}
	if plan.ID == 0 {
		return plandomain.Tariff{}, plandomain.ErrPlanNotFound
	}

	tariff := plandomain.Tariff{
		PlanID: plan.ID,
		Code:   plan.Code,
		Name:   plan.Name,
		Type:   plan.Type,
	}

	switch plan.Type {
	case plandomain.PlanTypePrepaid:
		var spec plandomain.PrepaidPlan
		if err := s.db.WithContext(ctx).Raw(
			`SELECT * FROM prepaid_plans WHERE plan_id = ?`,
			planID,
		).Scan(&spec).Error; err != nil {
			return plandomain.Tariff{}, err
		}
		if spec.PlanID == 0 {
			s.log.Error("plan discriminator has no prepaid row", zap.String("plan_id", planID.String()))
			return plandomain.Tariff{}, plandomain.ErrPlanCorrupt
		}
		tariff.Prepaid = &spec
	case plandomain.PlanTypePostpaid:
		var spec plandomain.PostpaidPlan
		if err := s.db.WithContext(ctx).Raw(
			`SELECT * FROM postpaid_plans WHERE plan_id = ?`,
			planID,
		).Scan(&spec).Error; err != nil {
			return plandomain.Tariff{}, err
		}
		if spec.PlanID == 0 {
			s.log.Error("plan discriminator has no postpaid row", zap.String("plan_id", planID.String()))
			return plandomain.Tariff{}, plandomain.ErrPlanCorrupt
		}
		tariff.Postpaid = &spec
	default:
		s.log.Error("unknown plan discriminator", zap.String("plan_id", planID.String()), zap.String("type", string(plan.Type)))
		return plandomain.Tariff{}, plandomain.ErrPlanCorrupt
	}

	s.tariffs.Set(planID, tariff, tariffCacheTTL)
	return tariff, nil
}

func (s *Service) Create(ctx context.Context, req plandomain.CreatePlanRequest) (*plandomain.Plan, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, plandomain.ErrInvalidPlan
	}
	if err := validateSpecialization(req.Type, req.Prepaid, req.Postpaid); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan := &plandomain.Plan{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		Type:      req.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM plans WHERE code = ? OR name = ?`,
			code, name,
		).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return plandomain.ErrDuplicatePlan
		}

		if err := tx.WithContext(ctx).Create(plan).Error; err != nil {
			return err
		}
		return s.insertSpecialization(ctx, tx, plan.ID, req.Type, req.Prepaid, req.Postpaid, now)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) Update(ctx context.Context, planID string, req plandomain.UpdatePlanRequest) (*plandomain.Plan, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(planID))
	if err != nil || id == 0 {
		return nil, plandomain.ErrInvalidPlan
	}

	var plan plandomain.Plan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Raw(
			`SELECT * FROM plans WHERE id = ?`,
			id,
		).Scan(&plan).Error; err != nil {
			return err
		}
		if plan.ID == 0 {
			return plandomain.ErrPlanNotFound
		}
		if err := validateSpecialization(plan.Type, req.Prepaid, req.Postpaid); err != nil {
			return err
		}

		now := time.Now().UTC()
		if name := strings.TrimSpace(req.Name); name != "" && name != plan.Name {
			var count int64
			if err := tx.WithContext(ctx).Raw(
				`SELECT COUNT(1) FROM plans WHERE name = ? AND id <> ?`,
				name, id,
			).Scan(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return plandomain.ErrDuplicatePlan
			}
			plan.Name = name
			if err := tx.WithContext(ctx).Exec(
				`UPDATE plans SET name = ?, updated_at = ? WHERE id = ?`,
				name, now, id,
			).Error; err != nil {
				return err
			}
		}

		switch plan.Type {
		case plandomain.PlanTypePrepaid:
			spec := *req.Prepaid
			spec.PlanID = id
			return tx.WithContext(ctx).Exec(
				`UPDATE prepaid_plans
				 SET duration_days = ?, data_allowance_gb = ?, call_allowance_minutes = ?, sms_allowance = ?,
				     data_overage_cents_gb = ?, call_overage_cents_min = ?, sms_overage_cents = ?
				 WHERE plan_id = ?`,
				spec.DurationDays, spec.DataAllowanceGB, spec.CallAllowanceMinutes, spec.SmsAllowance,
				spec.DataOverageCentsGB, spec.CallOverageCentsMin, spec.SmsOverageCents, id,
			).Error
		case plandomain.PlanTypePostpaid:
			spec := *req.Postpaid
			spec.PlanID = id
			return tx.WithContext(ctx).Exec(
				`UPDATE postpaid_plans
				 SET duration_days = ?, call_rate_cents_min = ?, data_rate_cents_gb = ?, sms_rate_cents = ?, monthly_rental_cents = ?
				 WHERE plan_id = ?`,
				spec.DurationDays, spec.CallRateCentsMin, spec.DataRateCentsGB, spec.SmsRateCents, spec.MonthlyRentalCents, id,
			).Error
		default:
			return plandomain.ErrPlanCorrupt
		}
	})
	if err != nil {
		return nil, err
	}

	s.tariffs.Delete(id)
	return &plan, nil
}

// Delete removes a plan and its specialization. Deletion is blocked while any
// active SIM still references the plan.
func (s *Service) Delete(ctx context.Context, planID string) error {
	id, err := snowflake.ParseString(strings.TrimSpace(planID))
	if err != nil || id == 0 {
		return plandomain.ErrInvalidPlan
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM plans WHERE id = ?`,
			id,
		).Scan(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return plandomain.ErrPlanNotFound
		}

		var activeSims int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM sims WHERE plan_id = ? AND status = ?`,
			id, customerdomain.SimStatusActive,
		).Scan(&activeSims).Error; err != nil {
			return err
		}
		if activeSims > 0 {
			return plandomain.ErrPlanInUse
		}

		for _, query := range []string{
			`DELETE FROM prepaid_plans WHERE plan_id = ?`,
			`DELETE FROM postpaid_plans WHERE plan_id = ?`,
			`DELETE FROM plans WHERE id = ?`,
		} {
			if err := tx.WithContext(ctx).Exec(query, id).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.tariffs.Delete(id)
	return nil
}

func (s *Service) List(ctx context.Context) ([]plandomain.Plan, error) {
	var plans []plandomain.Plan
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM plans ORDER BY code`,
	).Scan(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Service) insertSpecialization(
	ctx context.Context,
	tx *gorm.DB,
	planID snowflake.ID,
	planType plandomain.PlanType,
	prepaid *plandomain.PrepaidPlan,
	postpaid *plandomain.PostpaidPlan,
	now time.Time,
) error {
	switch planType {
	case plandomain.PlanTypePrepaid:
		spec := *prepaid
		spec.PlanID = planID
		spec.CreatedAt = now
		return tx.WithContext(ctx).Create(&spec).Error
	case plandomain.PlanTypePostpaid:
		spec := *postpaid
		spec.PlanID = planID
		spec.CreatedAt = now
		return tx.WithContext(ctx).Create(&spec).Error
	default:
		return plandomain.ErrInvalidPlan
	}
}

func validateSpecialization(planType plandomain.PlanType, prepaid *plandomain.PrepaidPlan, postpaid *plandomain.PostpaidPlan) error {
	switch planType {
	case plandomain.PlanTypePrepaid:
		if prepaid == nil || postpaid != nil {
			return plandomain.ErrInvalidPlan
		}
		if prepaid.DataAllowanceGB < 0 || prepaid.CallAllowanceMinutes < 0 || prepaid.SmsAllowance < 0 {
			return plandomain.ErrInvalidPlan
		}
		if prepaid.DataOverageCentsGB < 0 || prepaid.CallOverageCentsMin < 0 || prepaid.SmsOverageCents < 0 {
			return plandomain.ErrInvalidPlan
		}
	case plandomain.PlanTypePostpaid:
		if postpaid == nil || prepaid != nil {
			return plandomain.ErrInvalidPlan
		}
		if postpaid.CallRateCentsMin < 0 || postpaid.DataRateCentsGB < 0 || postpaid.SmsRateCents < 0 || postpaid.MonthlyRentalCents < 0 {
			return plandomain.ErrInvalidPlan
		}
	default:
		return plandomain.ErrInvalidPlan
	}
	return nil
}
