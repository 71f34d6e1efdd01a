package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreatePlanRequest struct {
	Code     string        `json:"code"`
	Name     string        `json:"name"`
	Type     PlanType      `json:"type"`
	Prepaid  *PrepaidPlan  `json:"prepaid,omitempty"`
	Postpaid *PostpaidPlan `json:"postpaid,omitempty"`
}

type UpdatePlanRequest struct {
	Name     string        `json:"name"`
	Prepaid  *PrepaidPlan  `json:"prepaid,omitempty"`
	Postpaid *PostpaidPlan `json:"postpaid,omitempty"`
}

// Service is the plan catalog: the single place that performs the
// discriminator lookup-and-resolve, so tariff type checks never leak into
// callers.
type Service interface {
	Resolve(ctx context.Context, planID snowflake.ID) (Tariff, error)

	Create(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	Update(ctx context.Context, planID string, req UpdatePlanRequest) (*Plan, error)
	Delete(ctx context.Context, planID string) error
	List(ctx context.Context) ([]Plan, error)
}

var (
	ErrPlanNotFound  = errors.New("plan_not_found")
	ErrInvalidPlan   = errors.New("invalid_plan")
	ErrDuplicatePlan = errors.New("duplicate_plan")
	// ErrPlanCorrupt flags a discriminator with no matching specialization
	// row. This is a data-integrity violation: it is surfaced to operators
	// and never silently defaulted.
	ErrPlanCorrupt = errors.New("plan_corrupt")
	// ErrPlanInUse blocks deletion while active SIMs reference the plan.
	ErrPlanInUse = errors.New("plan_in_use")
)
