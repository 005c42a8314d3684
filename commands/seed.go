package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce-api/config"
	models "commerce-api/model"
	"commerce-api/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var seedUsers = []models.User{
	{Name: "Felipe Arroyo", Email: "felipe.arroyo@gmail.com", Role: models.RoleAdmin},
	{Name: "Jhon Perez", Email: "perez.jhon@gmail.com", Role: models.RoleAdmin},
	{Name: "Carolina Aguilera", Email: "carolina.aguilera@gmail.com", Role: models.RoleUser},
	{Name: "Mariela Rodriguez", Email: "mariela.rodriguez@gmail.com", Role: models.RoleUser},
}

var seedProducts = []models.Product{
	{Name: "Mercedes-Benz G 580", Description: "German brand vehicle", Count: 3, Price: decimal.RequireFromString("15000.00")},
	{Name: "iPhone 15 Pro", Description: "Black titanium, white titanium, blue titanium, natural titanium", Count: 10, Price: decimal.RequireFromString("1199.99")},
	{Name: "Energy drinks", Description: "Energy drinks that you can use to train physically.", Count: 50, Price: decimal.RequireFromString("2.99")},
	{Name: "Canned food", Description: "Sardine, tuna, canned meat, among others.", Count: 100, Price: decimal.RequireFromString("3")},
}

// seedCmd loads the sample users and products
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample users and products",
	Long: `Insert the sample users and products. Records that already exist (same
email or same product name) are left as they are. The memory store is seeded
by serve on startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.DatabaseDriver == config.DriverMemory {
		return fmt.Errorf("seed needs a Postgres database, DATABASE_DRIVER is %q (serve seeds the memory store itself)", cfg.DatabaseDriver)
	}
	st, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	users, products, err := seed(ctx, st, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d users and %d products\n", users, products)
	return nil
}

// seed inserts the sample data that is not present yet and reports how many
// users and products were created.
func seed(ctx context.Context, st store.Store, now time.Time) (users, products int, err error) {
	for _, u := range seedUsers {
		u.CreatedAt, u.UpdatedAt = now, now
		err := st.CreateUser(ctx, &u)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return users, products, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		users++
	}

	for _, p := range seedProducts {
		_, err := st.GetProductByName(ctx, p.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return users, products, fmt.Errorf("seed product %s: %w", p.Name, err)
		}
		p.ID = uuid.NewString()
		p.Availability = models.AvailabilityFor(p.Count)
		p.CreatedAt, p.UpdatedAt = now, now
		if err := st.CreateProduct(ctx, &p); err != nil {
			return users, products, fmt.Errorf("seed product %s: %w", p.Name, err)
		}
		products++
	}
	return users, products, nil
}
