// Command seed-db loads the demo catalog, a few discounts and the initial API
// keys into the database. It is idempotent: every write is an upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/craftista/checkout/internal/domain/auth"
	"github.com/craftista/checkout/internal/repository"
)

type catalogJSON struct {
	Creators []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"creators"`
	Products []struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Price     decimal.Decimal `json:"price"`
		Currency  string          `json:"currency"`
		Category  string          `json:"category"`
		CreatorID string          `json:"creator_id"`
		ImageURL  string          `json:"image_url"`
	} `json:"products"`
	Addresses []struct {
		ID         string `json:"id"`
		UserID     string `json:"user_id"`
		Line1      string `json:"line1"`
		City       string `json:"city"`
		Region     string `json:"region"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
	} `json:"addresses"`
}

type seedCoupon struct {
	code    string
	percent string
	days    int
}

type seedOffer struct {
	id           string
	name         string
	percent      string
	applicableOn []string
}

var seedCoupons = []seedCoupon{
	{code: "WELCOME10", percent: "10", days: 365},
	{code: "SPRING15", percent: "15", days: 90},
	{code: "CRAFTFAN5", percent: "5", days: 30},
}

var seedOffers = []seedOffer{
	{
		id:           "offer-pottery-10",
		name:         "Pottery studio sale",
		percent:      "10",
		applicableOn: []string{"prod-mug-azure", "prod-bowl-ash"},
	},
	{
		id:           "offer-textiles-20",
		name:         "Textile week",
		percent:      "20",
		applicableOn: []string{"prod-scarf-indigo", "prod-throw-linen"},
	},
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		adminAPIKey  string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "customer API key to seed (or CRAFT_SEED_API_KEY env)")
	flag.StringVar(&adminAPIKey, "admin-api-key", "", "admin API key to seed (or CRAFT_SEED_ADMIN_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CRAFT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CRAFT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CRAFT_SEED_API_KEY")
		os.Exit(1)
	}
	if adminAPIKey == "" {
		adminAPIKey = os.Getenv("CRAFT_SEED_ADMIN_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CRAFT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, adminAPIKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, adminAPIKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper, "seed-customer", "user-1", nil); err != nil {
		return errors.Wrap(err, "seed customer api key")
	}
	if adminAPIKey != "" {
		if err := seedAPIKey(ctx, pool, adminAPIKey, pepper, "seed-admin", "admin-1", []string{auth.ScopeAdmin}); err != nil {
			return errors.Wrap(err, "seed admin api key")
		}
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting creators", slog.Int("count", len(catalog.Creators)))
	for _, c := range catalog.Creators {
		if _, err := pool.Exec(ctx, `
			INSERT INTO creators (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			c.ID, c.Name,
		); err != nil {
			return errors.Wrapf(err, "upsert creator %s", c.ID)
		}
	}

	slog.Info("upserting products", slog.Int("count", len(catalog.Products)))
	for _, p := range catalog.Products {
		if _, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, currency, category, creator_id, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				currency = EXCLUDED.currency,
				category = EXCLUDED.category,
				creator_id = EXCLUDED.creator_id,
				image_url = EXCLUDED.image_url`,
			p.ID, p.Name, p.Price, p.Currency, p.Category, p.CreatorID, p.ImageURL,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}

	slog.Info("upserting addresses", slog.Int("count", len(catalog.Addresses)))
	for _, a := range catalog.Addresses {
		if _, err := pool.Exec(ctx, `
			INSERT INTO addresses (id, user_id, line1, city, region, postal_code, country)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				line1 = EXCLUDED.line1,
				city = EXCLUDED.city,
				region = EXCLUDED.region,
				postal_code = EXCLUDED.postal_code,
				country = EXCLUDED.country`,
			a.ID, a.UserID, a.Line1, a.City, a.Region, a.PostalCode, a.Country,
		); err != nil {
			return errors.Wrapf(err, "upsert address %s", a.ID)
		}
	}

	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting coupons", slog.Int("count", len(seedCoupons)))
	for _, c := range seedCoupons {
		percent, err := decimal.NewFromString(c.percent)
		if err != nil {
			return errors.Wrapf(err, "parse percent for coupon %s", c.code)
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, discount_percent, end_at, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				discount_percent = EXCLUDED.discount_percent,
				end_at = EXCLUDED.end_at,
				active = TRUE`,
			c.code, percent, time.Now().AddDate(0, 0, c.days),
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
	}

	slog.Info("upserting offers", slog.Int("count", len(seedOffers)))
	for _, o := range seedOffers {
		percent, err := decimal.NewFromString(o.percent)
		if err != nil {
			return errors.Wrapf(err, "parse percent for offer %s", o.id)
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO offers (id, name, discount_percent, applicable_on, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				discount_percent = EXCLUDED.discount_percent,
				applicable_on = EXCLUDED.applicable_on,
				active = TRUE`,
			o.id, o.name, percent, o.applicableOn,
		); err != nil {
			return errors.Wrapf(err, "upsert offer %s", o.id)
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, key, pepper, name, userID string, scopes []string) error {
	hash := auth.HashKey([]byte(pepper), key)
	if scopes == nil {
		scopes = []string{}
	}

	slog.Info("upserting api key", slog.String("name", name), slog.String("user_id", userID))
	if _, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, user_id, scopes, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET
			name = EXCLUDED.name,
			user_id = EXCLUDED.user_id,
			scopes = EXCLUDED.scopes,
			active = TRUE`,
		uuid.New().String(), hash, name, userID, scopes,
	); err != nil {
		return errors.Wrap(err, "upsert api key")
	}

	return nil
}
