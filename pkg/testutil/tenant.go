package testutil

import (
	"context"

	"github.com/google/uuid"

	"github.com/halgurdkamal/pos-system-api-sub000/pkg/tenant"
)

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID   string
	Name string
	Slug string
}

// NewTestTenant creates an in-memory tenant identity for tests.
func NewTestTenant(name string) TestTenant {
	return TestTenant{
		ID:   uuid.New().String(),
		Name: name,
		Slug: name,
	}
}

// TenantContext returns a context carrying the test tenant's identity,
// matching what TenantMiddleware produces for real requests.
func TenantContext(t TestTenant) context.Context {
	return tenant.WithTenantContext(context.Background(), t.ID, t.Slug)
}
