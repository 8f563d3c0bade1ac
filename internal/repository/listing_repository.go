package repository

import (
	"context"
	"time"

	"card-sniper/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createListingsTable = `
CREATE TABLE IF NOT EXISTS listings (
    listing_id       TEXT        PRIMARY KEY,
    name             TEXT        NOT NULL,
    grade            TEXT        NOT NULL,
    grade_num        NUMERIC     NOT NULL,
    category         TEXT        NOT NULL,
    insured_value    NUMERIC     NOT NULL DEFAULT 0,
    grading_company  TEXT        NOT NULL,
    grading_id       TEXT        NOT NULL,
    img_url          TEXT        NOT NULL DEFAULT '',
    token_mint       TEXT        NOT NULL,
    price_amount     NUMERIC     NOT NULL,
    price_currency   TEXT        NOT NULL,
    listed_at        TIMESTAMPTZ NOT NULL,
    asset_id         TEXT,
    value            NUMERIC,
    avg_sale_price   NUMERIC,
    supply           INTEGER,
    value_lower      NUMERIC,
    value_upper      NUMERIC,
    confidence       NUMERIC,
    tier             TEXT        NOT NULL DEFAULT 'NEW',
    is_listed        BOOLEAN     NOT NULL DEFAULT TRUE,
    last_analyzed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_listings_token_mint ON listings (token_mint);
CREATE INDEX IF NOT EXISTS idx_listings_tier ON listings (tier) WHERE is_listed;
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type ListingRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewListingRepository(pool PgxPool, tracer trace.Tracer) *ListingRepository {
	return &ListingRepository{pool: pool, tracer: tracer}
}

func (r *ListingRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "listing-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createListingsTable)
	return err
}

const insertListing = `INSERT INTO listings (
    listing_id, name, grade, grade_num, category, insured_value,
    grading_company, grading_id, img_url, token_mint,
    price_amount, price_currency, listed_at, tier, is_listed
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, TRUE)
ON CONFLICT (listing_id) DO NOTHING`

// UpsertNew stores a freshly discovered listing. Re-discovery of a known
// listing id is a no-op; the first write wins and returns true.
func (r *ListingRepository) UpsertNew(ctx context.Context, l *domain.Listing) (bool, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.upsert-new")
	defer span.End()

	tag, err := r.pool.Exec(ctx, insertListing,
		l.ListingID, l.Name, l.Grade, l.GradeNum, l.Category, l.InsuredValue,
		l.GradingCompany, l.GradingID, l.ImgURL, l.TokenMint,
		l.PriceAmount, l.PriceCurrency, l.ListedAt, l.Tier,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertNewBatch bulk-inserts a page of listings, skipping known ids.
func (r *ListingRepository) UpsertNewBatch(ctx context.Context, listings []*domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "listing-repo.upsert-new-batch")
	defer span.End()

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(insertListing,
			l.ListingID, l.Name, l.Grade, l.GradeNum, l.Category, l.InsuredValue,
			l.GradingCompany, l.GradingID, l.ImgURL, l.TokenMint,
			l.PriceAmount, l.PriceCurrency, l.ListedAt, l.Tier,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range listings {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEnrichment writes the valuation snapshot, tier and analysis timestamp
// in one statement so readers never see a half-enriched row.
func (r *ListingRepository) UpdateEnrichment(ctx context.Context, l *domain.Listing) error {
	_, span := r.tracer.Start(ctx, "listing-repo.update-enrichment")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE listings SET
		     asset_id = $2, value = $3, avg_sale_price = $4, supply = $5,
		     value_lower = $6, value_upper = $7, confidence = $8,
		     tier = $9, last_analyzed_at = $10
		 WHERE listing_id = $1`,
		l.ListingID, l.AssetID, l.Value, l.AvgSalePrice, l.Supply,
		l.ValueLower, l.ValueUpper, l.Confidence, l.Tier, l.LastAnalyzedAt,
	)
	return err
}

// UpdatePrice refreshes the asking price after a liveness probe observed a
// change on the marketplace.
func (r *ListingRepository) UpdatePrice(ctx context.Context, listingID string, price float64) error {
	_, span := r.tracer.Start(ctx, "listing-repo.update-price")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE listings SET price_amount = $2 WHERE listing_id = $1`,
		listingID, price,
	)
	return err
}

func (r *ListingRepository) MarkUnlisted(ctx context.Context, tokenMint string) error {
	_, span := r.tracer.Start(ctx, "listing-repo.mark-unlisted")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE listings SET is_listed = FALSE WHERE token_mint = $1`,
		tokenMint,
	)
	return err
}

const selectListing = `SELECT
    listing_id, name, grade, grade_num, category, insured_value,
    grading_company, grading_id, img_url, token_mint,
    price_amount, price_currency, listed_at,
    asset_id, value, avg_sale_price, supply,
    value_lower, value_upper, confidence,
    tier, is_listed, last_analyzed_at
FROM listings`

func scanListing(rows pgx.Rows) (*domain.Listing, error) {
	l := &domain.Listing{}
	err := rows.Scan(
		&l.ListingID, &l.Name, &l.Grade, &l.GradeNum, &l.Category, &l.InsuredValue,
		&l.GradingCompany, &l.GradingID, &l.ImgURL, &l.TokenMint,
		&l.PriceAmount, &l.PriceCurrency, &l.ListedAt,
		&l.AssetID, &l.Value, &l.AvgSalePrice, &l.Supply,
		&l.ValueLower, &l.ValueUpper, &l.Confidence,
		&l.Tier, &l.IsListed, &l.LastAnalyzedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *ListingRepository) queryListings(ctx context.Context, sql string, args ...any) ([]*domain.Listing, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (r *ListingRepository) GetByMint(ctx context.Context, tokenMint string) (*domain.Listing, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.get-by-mint")
	defer span.End()

	listings, err := r.queryListings(ctx, selectListing+` WHERE token_mint = $1 LIMIT 1`, tokenMint)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, pgx.ErrNoRows
	}
	return listings[0], nil
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID string) (*domain.Listing, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.get-by-id")
	defer span.End()

	listings, err := r.queryListings(ctx, selectListing+` WHERE listing_id = $1`, listingID)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, pgx.ErrNoRows
	}
	return listings[0], nil
}

// GetAllListingIDs seeds the discovery loop's known-id set on boot.
func (r *ListingRepository) GetAllListingIDs(ctx context.Context) ([]string, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.get-all-listing-ids")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT listing_id FROM listings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetActiveMints returns the mints currently marked live, for diffing against
// a full marketplace walk.
func (r *ListingRepository) GetActiveMints(ctx context.Context) ([]string, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.get-active-mints")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT token_mint FROM listings WHERE is_listed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var mint string
		if err := rows.Scan(&mint); err != nil {
			return nil, err
		}
		mints = append(mints, mint)
	}
	return mints, rows.Err()
}

// GetActive returns live listings, newest first, optionally filtered by tier.
func (r *ListingRepository) GetActive(ctx context.Context, tier domain.Tier, limit int) ([]*domain.Listing, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.get-active")
	defer span.End()

	if tier != "" {
		return r.queryListings(ctx,
			selectListing+` WHERE is_listed AND tier = $1 ORDER BY listed_at DESC LIMIT $2`,
			tier, limit,
		)
	}
	return r.queryListings(ctx,
		selectListing+` WHERE is_listed ORDER BY listed_at DESC LIMIT $1`,
		limit,
	)
}

// GetActiveWatchable seeds the liveness ring on boot: live listings whose
// tier still matters.
func (r *ListingRepository) GetActiveWatchable(ctx context.Context) ([]*domain.Listing, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.get-active-watchable")
	defer span.End()

	return r.queryListings(ctx,
		selectListing+` WHERE is_listed AND tier <> $1 ORDER BY listed_at DESC`,
		domain.TierSkip,
	)
}

// GetStaleSkipped returns live SKIP listings last analyzed before the cutoff,
// candidates for a second look after market movement.
func (r *ListingRepository) GetStaleSkipped(ctx context.Context, before time.Time) ([]*domain.Listing, error) {
	_, span := r.tracer.Start(ctx, "listing-repo.get-stale-skipped")
	defer span.End()

	return r.queryListings(ctx,
		selectListing+` WHERE is_listed AND tier = $1 AND (last_analyzed_at IS NULL OR last_analyzed_at < $2)`,
		domain.TierSkip, before,
	)
}
