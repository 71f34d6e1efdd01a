package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/telcobill/internal/customer/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCustomerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT,
			address TEXT,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sims (
			id BIGINT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			plan_id BIGINT NOT NULL,
			msisdn TEXT NOT NULL,
			status TEXT NOT NULL,
			activated_at TIMESTAMP,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS plans (
			id BIGINT PRIMARY KEY,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	if err := db.Exec(
		`INSERT INTO plans (id, code, name, type) VALUES (?, ?, ?, ?)`,
		500, "postpaid-flex", "Flex", "POSTPAID",
	).Error; err != nil {
		t.Fatalf("insert plan: %v", err)
	}
	return db
}

func newCustomerTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupCustomerTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Service{db: db, log: zap.NewNop(), genID: node}, db
}

func createCustomer(t *testing.T, svc *Service, name string) *customerdomain.Customer {
	t.Helper()
	customer, err := svc.Create(context.Background(), customerdomain.CreateCustomerRequest{
		Name:  name,
		Email: name + "@example.com",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return customer
}

func TestCreateNormalizesEmail(t *testing.T) {
	svc, _ := newCustomerTestService(t)

	customer, err := svc.Create(context.Background(), customerdomain.CreateCustomerRequest{
		Name:  "Alice",
		Email: "  Alice@Example.COM ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if customer.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", customer.Email)
	}
	if customer.Status != customerdomain.CustomerStatusActive {
		t.Fatalf("unexpected status %q", customer.Status)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newCustomerTestService(t)
	createCustomer(t, svc, "alice")

	_, err := svc.Create(context.Background(), customerdomain.CreateCustomerRequest{
		Name:  "Alice Again",
		Email: "alice@example.com",
	})
	if !errors.Is(err, customerdomain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestDeactivateReactivate(t *testing.T) {
	svc, _ := newCustomerTestService(t)
	ctx := context.Background()
	customer := createCustomer(t, svc, "alice")

	if err := svc.Deactivate(ctx, customer.ID.String()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := svc.GetByID(ctx, customer.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != customerdomain.CustomerStatusDeactivated {
		t.Fatalf("unexpected status %q", got.Status)
	}

	// Deactivating twice is rejected; the account is no longer ACTIVE.
	if err := svc.Deactivate(ctx, customer.ID.String()); !errors.Is(err, customerdomain.ErrCustomerNotActive) {
		t.Fatalf("expected ErrCustomerNotActive, got %v", err)
	}

	if err := svc.Reactivate(ctx, customer.ID.String()); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	got, err = svc.GetByID(ctx, customer.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != customerdomain.CustomerStatusActive {
		t.Fatalf("unexpected status %q", got.Status)
	}
}

func TestDisconnectDeactivatesSims(t *testing.T) {
	svc, _ := newCustomerTestService(t)
	ctx := context.Background()
	customer := createCustomer(t, svc, "alice")

	for _, msisdn := range []string{"15550000001", "15550000002"} {
		if _, err := svc.ProvisionSim(ctx, customerdomain.ProvisionSimRequest{
			CustomerID: customer.ID.String(),
			PlanID:     "500",
			Msisdn:     msisdn,
		}); err != nil {
			t.Fatalf("provision sim: %v", err)
		}
	}

	if err := svc.Disconnect(ctx, customer.ID.String()); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	sims, err := svc.ListSims(ctx, customer.ID.String())
	if err != nil {
		t.Fatalf("list sims: %v", err)
	}
	if len(sims) != 2 {
		t.Fatalf("expected 2 sims, got %d", len(sims))
	}
	for _, sim := range sims {
		if sim.Status != customerdomain.SimStatusInactive {
			t.Fatalf("sim %v still %q after disconnect", sim.ID, sim.Status)
		}
	}

	// Disconnection is terminal.
	if err := svc.Reactivate(ctx, customer.ID.String()); !errors.Is(err, customerdomain.ErrCustomerDisconnected) {
		t.Fatalf("expected ErrCustomerDisconnected, got %v", err)
	}
}

func TestProvisionSimRequiresActiveCustomer(t *testing.T) {
	svc, _ := newCustomerTestService(t)
	ctx := context.Background()
	customer := createCustomer(t, svc, "alice")

	if err := svc.Deactivate(ctx, customer.ID.String()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := svc.ProvisionSim(ctx, customerdomain.ProvisionSimRequest{
		CustomerID: customer.ID.String(),
		PlanID:     "500",
		Msisdn:     "15550000001",
	})
	if !errors.Is(err, customerdomain.ErrCustomerNotActive) {
		t.Fatalf("expected ErrCustomerNotActive, got %v", err)
	}
}

func TestProvisionSimRejectsDuplicateMsisdn(t *testing.T) {
	svc, _ := newCustomerTestService(t)
	ctx := context.Background()
	alice := createCustomer(t, svc, "alice")
	bob := createCustomer(t, svc, "bob")

	if _, err := svc.ProvisionSim(ctx, customerdomain.ProvisionSimRequest{
		CustomerID: alice.ID.String(),
		PlanID:     "500",
		Msisdn:     "15550000001",
	}); err != nil {
		t.Fatalf("provision sim: %v", err)
	}

	_, err := svc.ProvisionSim(ctx, customerdomain.ProvisionSimRequest{
		CustomerID: bob.ID.String(),
		PlanID:     "500",
		Msisdn:     "15550000001",
	})
	if !errors.Is(err, customerdomain.ErrDuplicateMsisdn) {
		t.Fatalf("expected ErrDuplicateMsisdn, got %v", err)
	}
}

func TestListBillableReturnsOnlyActive(t *testing.T) {
	svc, _ := newCustomerTestService(t)
	ctx := context.Background()
	alice := createCustomer(t, svc, "alice")
	bob := createCustomer(t, svc, "bob")

	if err := svc.Deactivate(ctx, bob.ID.String()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	ids, err := svc.ListBillable(ctx)
	if err != nil {
		t.Fatalf("list billable: %v", err)
	}
	if len(ids) != 1 || ids[0] != alice.ID {
		t.Fatalf("unexpected billable set %v", ids)
	}
}

func TestDeactivateSimUnknown(t *testing.T) {
	svc, _ := newCustomerTestService(t)

	err := svc.DeactivateSim(context.Background(), "12345")
	if !errors.Is(err, customerdomain.ErrSimNotFound) {
		t.Fatalf("expected ErrSimNotFound, got %v", err)
	}
}
