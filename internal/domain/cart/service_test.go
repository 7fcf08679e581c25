package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftista/checkout/internal/domain/product"
)

// --- Mock implementations ---

type mockCartRepo struct {
	byUser  map[string]*Cart
	saveErr error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{byUser: make(map[string]*Cart)}
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	c, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	return &cp, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.byUser[c.UserID] = c
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, userID string) error {
	if _, ok := m.byUser[userID]; !ok {
		return ErrNotFound
	}
	delete(m.byUser, userID)
	return nil
}

type mockProductRepo struct {
	ids map[string]bool
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if !m.ids[id] {
		return nil, product.ErrNotFound
	}
	return &product.Product{ID: id, Price: decimal.NewFromInt(10)}, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if m.ids[id] {
			out = append(out, product.Product{ID: id})
		}
	}
	return out, nil
}

func newService(productIDs ...string) (*Service, *mockCartRepo) {
	ids := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		ids[id] = true
	}
	repo := newMockCartRepo()
	return NewService(repo, &mockProductRepo{ids: ids}), repo
}

// --- Tests ---

func TestGet_EmptyCartForNewUser(t *testing.T) {
	svc, _ := newService()

	c, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Empty(t, c.Lines)
}

func TestAddOrIncrement_CreatesCartLazily(t *testing.T) {
	svc, repo := newService("p1")

	c, err := svc.AddOrIncrement(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, Line{ProductID: "p1", Quantity: 2}, c.Lines[0])
	assert.Contains(t, repo.byUser, "u1")
}

func TestAddOrIncrement_MergesExistingLine(t *testing.T) {
	svc, _ := newService("p1")
	ctx := context.Background()

	_, err := svc.AddOrIncrement(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	c, err := svc.AddOrIncrement(ctx, "u1", "p1", 2)
	require.NoError(t, err)

	// One line with quantity 4, not two lines.
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 4, c.Lines[0].Quantity)
}

func TestAddOrIncrement_UnknownProduct(t *testing.T) {
	svc, _ := newService()

	_, err := svc.AddOrIncrement(context.Background(), "u1", "ghost", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddOrIncrement_NonPositiveQuantity(t *testing.T) {
	svc, _ := newService("p1")

	_, err := svc.AddOrIncrement(context.Background(), "u1", "p1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSetQuantity_Replaces(t *testing.T) {
	svc, _ := newService("p1")
	ctx := context.Background()

	_, err := svc.AddOrIncrement(ctx, "u1", "p1", 2)
	require.NoError(t, err)

	c, err := svc.SetQuantity(ctx, "u1", "p1", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Lines[0].Quantity)
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	svc, _ := newService("p1", "p2")
	ctx := context.Background()

	_, err := svc.AddOrIncrement(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddOrIncrement(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	c, err := svc.SetQuantity(ctx, "u1", "p1", 0)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "p2", c.Lines[0].ProductID)
}

func TestSetQuantity_MissingLine(t *testing.T) {
	svc, _ := newService("p1")

	_, err := svc.SetQuantity(context.Background(), "u1", "p1", 3)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestRemoveLine(t *testing.T) {
	svc, _ := newService("p1")
	ctx := context.Background()

	_, err := svc.AddOrIncrement(ctx, "u1", "p1", 1)
	require.NoError(t, err)

	c, err := svc.RemoveLine(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)

	_, err = svc.RemoveLine(ctx, "u1", "p1")
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestClear(t *testing.T) {
	svc, repo := newService("p1")
	ctx := context.Background()

	_, err := svc.AddOrIncrement(ctx, "u1", "p1", 1)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "u1"))
	assert.NotContains(t, repo.byUser, "u1")

	// Clearing an absent cart is not an error.
	require.NoError(t, svc.Clear(ctx, "u1"))
}

func TestCartsAreNotSharedAcrossUsers(t *testing.T) {
	svc, _ := newService("p1")
	ctx := context.Background()

	_, err := svc.AddOrIncrement(ctx, "u1", "p1", 1)
	require.NoError(t, err)

	c, err := svc.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}
