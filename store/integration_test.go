//go:build integration
// +build integration

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	models "commerce-api/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns a migrated store
func setupPostgres(t *testing.T, driver string) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("commerce"),
		postgres.WithUsername("commerce"),
		postgres.WithPassword("commerce"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	s, err := NewPostgresStore(ctx, driver, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	// migrations are idempotent
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgres_OrderLifecycle(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := setupPostgres(t, driver)

			u := &models.User{Name: "Ann", Email: "ann@example.com", Role: models.RoleUser, CreatedAt: time.Now(), UpdatedAt: time.Now()}
			require.NoError(t, s.CreateUser(ctx, u))

			now := time.Now().UTC().Truncate(time.Microsecond)
			p := &models.Product{
				ID: "6f1c0c1e-0000-4000-8000-000000000001", Name: "Lamp", Description: "desk lamp",
				Price: decimal.RequireFromString("12.50"), Count: 3,
				Availability: models.Available, CreatedAt: now, UpdatedAt: now,
			}
			require.NoError(t, s.CreateProduct(ctx, p))
			assert.ErrorIs(t, s.CreateProduct(ctx, &models.Product{ID: "other", Name: "Lamp", Availability: models.NotAvailable}), ErrDuplicate)

			o := &models.Order{UserID: u.ID, Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
				Items: []models.LineItem{{ProductID: p.ID, Count: 3, Quantity: 3, Price: p.Price}}}
			err := s.InTx(ctx, func(tx Store) error {
				if err := tx.LockProducts(ctx, []string{p.ID}); err != nil {
					return err
				}
				if err := tx.CreateOrder(ctx, o); err != nil {
					return err
				}
				if err := tx.UpdateStock(ctx, p.ID, 0); err != nil {
					return err
				}
				return tx.UpdateAvailability(ctx, p.ID, models.NotAvailable)
			})
			require.NoError(t, err)

			got, err := s.GetOrder(ctx, o.ID)
			require.NoError(t, err)
			require.Len(t, got.Items, 1)
			require.NotNil(t, got.Items[0].Product)
			assert.Equal(t, 0, got.Items[0].Product.Count)
			assert.Equal(t, models.NotAvailable, got.Items[0].Product.Availability)
			assert.True(t, got.Items[0].Price.Equal(p.Price))

			require.NoError(t, s.UpdateOrderStatus(ctx, o.ID, models.StatusCompleted, time.Now()))
			require.NoError(t, s.DeleteProduct(ctx, p.ID))

			got, err = s.GetOrder(ctx, o.ID)
			require.NoError(t, err)
			assert.Empty(t, got.Items[0].ProductID)
			assert.Nil(t, got.Items[0].Product)

			require.NoError(t, s.DeleteOrder(ctx, o.ID))
			_, err = s.GetOrder(ctx, o.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPostgres_RollbackLeavesStockUntouched(t *testing.T) {
	ctx := context.Background()
	s := setupPostgres(t, "postgres")

	now := time.Now()
	p := &models.Product{ID: "p1", Name: "Chair", Price: decimal.NewFromInt(40), Count: 5,
		Availability: models.Available, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateProduct(ctx, p))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Store) error {
		if err := tx.UpdateStock(ctx, p.ID, 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Count)
}

func TestPostgres_ConcurrentLocksSerialize(t *testing.T) {
	ctx := context.Background()
	s := setupPostgres(t, "postgres")

	now := time.Now()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.CreateProduct(ctx, &models.Product{ID: id, Name: "n-" + id,
			Price: decimal.NewFromInt(1), Count: 10, Availability: models.Available, CreatedAt: now, UpdatedAt: now}))
	}

	// each worker decrements both products; lost updates would leave count > 0
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		ids := []string{"a", "b"}
		if i%2 == 1 {
			ids = []string{"b", "a"}
		}
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			errs <- s.InTx(ctx, func(tx Store) error {
				if err := tx.LockProducts(ctx, ids); err != nil {
					return err
				}
				for _, id := range ids {
					p, err := tx.GetProduct(ctx, id)
					if err != nil {
						return err
					}
					if err := tx.UpdateStock(ctx, id, p.Count-1); err != nil {
						return err
					}
				}
				return nil
			})
		}(ids)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, id := range []string{"a", "b"} {
		p, err := s.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Count)
	}
}
