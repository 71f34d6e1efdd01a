package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/telcobill/internal/plan/domain"
	"gorm.io/gorm"
)

// EnsureDefaultPlans seeds a starter tariff catalog so a fresh install can
// provision SIMs immediately. Existing catalogs are left untouched.
func EnsureDefaultPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Raw(`SELECT COUNT(1) FROM plans`).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()

		prepaid := plandomain.Plan{
			ID:        node.Generate(),
			Code:      "prepaid-smart-5",
			Name:      "Smart Prepaid 5GB",
			Type:      plandomain.PlanTypePrepaid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&prepaid).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(&plandomain.PrepaidPlan{
			PlanID:               prepaid.ID,
			DurationDays:         30,
			DataAllowanceGB:      5,
			CallAllowanceMinutes: 300,
			SmsAllowance:         100,
			DataOverageCentsGB:   200,
			CallOverageCentsMin:  2,
			SmsOverageCents:      1,
			CreatedAt:            now,
		}).Error; err != nil {
			return err
		}

		postpaid := plandomain.Plan{
			ID:        node.Generate(),
			Code:      "postpaid-flex",
			Name:      "Flex Postpaid",
			Type:      plandomain.PlanTypePostpaid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&postpaid).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&plandomain.PostpaidPlan{
			PlanID:             postpaid.ID,
			DurationDays:       30,
			CallRateCentsMin:   1,
			DataRateCentsGB:    150,
			SmsRateCents:       1,
			MonthlyRentalCents: 0,
			CreatedAt:          now,
		}).Error
	})
}
