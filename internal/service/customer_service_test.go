package service

import (
	"context"
	"strings"
	"testing"

	"pos-service/internal/apperr"
	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCustomerStore struct {
	byID   map[int64]models.Customer
	nextID int64
}

func newMemCustomerStore() *memCustomerStore {
	return &memCustomerStore{byID: map[int64]models.Customer{}}
}

func (m *memCustomerStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.Email != nil {
		for _, other := range m.byID {
			if other.Email != nil && *other.Email == *c.Email {
				return apperr.Conflictf("customer already exists")
			}
		}
	}
	m.nextID++
	c.ID = m.nextID
	m.byID[c.ID] = *c
	return nil
}

func (m *memCustomerStore) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFoundf("customer not found")
	}
	return &c, nil
}

func (m *memCustomerStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	out := make([]models.Customer, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out, nil
}

func (m *memCustomerStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	if _, ok := m.byID[c.ID]; !ok {
		return apperr.NotFoundf("customer not found")
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *memCustomerStore) DeleteCustomer(ctx context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return apperr.NotFoundf("customer not found")
	}
	delete(m.byID, id)
	return nil
}

func strPtr(s string) *string { return &s }

func TestCreateCustomerNormalizes(t *testing.T) {
	svc := NewCustomerService(newMemCustomerStore())

	c := &models.Customer{Name: "  Sari  ", Email: strPtr(" Sari@Example.com "), Phone: strPtr("   ")}
	require.NoError(t, svc.CreateCustomer(context.Background(), c))

	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "Sari", c.Name)
	require.NotNil(t, c.Email)
	assert.Equal(t, "sari@example.com", *c.Email)
	assert.Nil(t, c.Phone)
}

func TestCreateCustomerWithoutEmail(t *testing.T) {
	svc := NewCustomerService(newMemCustomerStore())

	require.NoError(t, svc.CreateCustomer(context.Background(), &models.Customer{Name: "Andi", Email: strPtr("")}))
	require.NoError(t, svc.CreateCustomer(context.Background(), &models.Customer{Name: "Budi"}))

	list, err := svc.ListCustomers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCustomerValidation(t *testing.T) {
	tests := []struct {
		name string
		c    models.Customer
	}{
		{"blank name", models.Customer{Name: "   "}},
		{"long name", models.Customer{Name: strings.Repeat("a", maxCustomerNameLen+1)}},
		{"negative points", models.Customer{Name: "Sari", Points: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemCustomerStore()
			svc := NewCustomerService(store)

			c := tt.c
			err := svc.CreateCustomer(context.Background(), &c)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
			assert.Empty(t, store.byID)
		})
	}
}

func TestUpdateAndDeleteCustomer(t *testing.T) {
	store := newMemCustomerStore()
	svc := NewCustomerService(store)
	ctx := context.Background()

	c := &models.Customer{Name: "Sari"}
	require.NoError(t, svc.CreateCustomer(ctx, c))

	c.Points = 40
	require.NoError(t, svc.UpdateCustomer(ctx, c))
	got, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Points)

	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))
	_, err = svc.GetCustomer(ctx, c.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(svc.DeleteCustomer(ctx, c.ID)))
}
