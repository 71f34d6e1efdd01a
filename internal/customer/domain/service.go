package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateCustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ProvisionSimRequest struct {
	CustomerID string `json:"customer_id"`
	PlanID     string `json:"plan_id"`
	Msisdn     string `json:"msisdn"`
}

// Service manages subscriber accounts and their SIMs. Status transitions run
// inside a single transaction so the disconnected-customer invariant holds.
type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)

	Deactivate(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
	Disconnect(ctx context.Context, id string) error

	ProvisionSim(ctx context.Context, req ProvisionSimRequest) (*Sim, error)
	DeactivateSim(ctx context.Context, simID string) error
	ListSims(ctx context.Context, customerID string) ([]Sim, error)

	// ListBillable returns the IDs of ACTIVE customers, the population one
	// billing cycle run covers.
	ListBillable(ctx context.Context) ([]snowflake.ID, error)
}

var (
	ErrCustomerNotFound     = errors.New("customer_not_found")
	ErrInvalidCustomer      = errors.New("invalid_customer")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrDuplicateEmail       = errors.New("duplicate_email")
	ErrCustomerDisconnected = errors.New("customer_disconnected")
	ErrCustomerNotActive    = errors.New("customer_not_active")
	ErrSimNotFound          = errors.New("sim_not_found")
	ErrInvalidSim           = errors.New("invalid_sim")
	ErrInvalidMsisdn        = errors.New("invalid_msisdn")
	ErrDuplicateMsisdn      = errors.New("duplicate_msisdn")
)
