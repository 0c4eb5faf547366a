package sqlite

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s", path), internalerr.ErrStoreUnavailable)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrap(err, "enable WAL"), internalerr.ErrStoreUnavailable)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init schema")
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS shops (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT UNIQUE NOT NULL,
	access_token TEXT NOT NULL DEFAULT '',
	api_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	insurer TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS category_aliases (
	category_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	alias TEXT NOT NULL,
	PRIMARY KEY(category_id, position),
	FOREIGN KEY(category_id) REFERENCES categories(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS evaluation_prompts (
	shop_id INTEGER PRIMARY KEY,
	prompt_intro TEXT NOT NULL DEFAULT '',
	general_category_id INTEGER,
	FOREIGN KEY(shop_id) REFERENCES shops(id) ON DELETE CASCADE,
	FOREIGN KEY(general_category_id) REFERENCES categories(id) ON DELETE SET NULL
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// ShopByDomain looks a shop up by its normalized domain.
func (s *sqliteStore) ShopByDomain(ctx context.Context, domain string) (store.Shop, bool, error) {
	var sh store.Shop
	err := s.db.QueryRowContext(ctx,
		`SELECT id, domain, access_token, api_key FROM shops WHERE domain = ?`,
		store.NormalizeDomain(domain),
	).Scan(&sh.ID, &sh.Domain, &sh.AccessToken, &sh.APIKey)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Shop{}, false, nil
	}
	if err != nil {
		return store.Shop{}, false, errors.Wrap(err, "query shop")
	}
	return sh, true, nil
}

// UpsertShop inserts or updates a shop keyed by domain and returns it with
// its id.
func (s *sqliteStore) UpsertShop(ctx context.Context, sh store.Shop) (store.Shop, error) {
	sh.Domain = store.NormalizeDomain(sh.Domain)
	if sh.Domain == "" {
		return store.Shop{}, errors.Wrap(internalerr.ErrInvalidInput, "shop domain required")
	}

	const stmt = `
INSERT INTO shops (domain, access_token, api_key)
VALUES (?, ?, ?)
ON CONFLICT(domain) DO UPDATE SET
	access_token=excluded.access_token,
	api_key=excluded.api_key
RETURNING id;
`
	if err := s.db.QueryRowContext(ctx, stmt, sh.Domain, sh.AccessToken, sh.APIKey).Scan(&sh.ID); err != nil {
		return store.Shop{}, errors.Wrapf(err, "upsert shop %s", sh.Domain)
	}
	return sh, nil
}

// ActiveCategories returns active categories ordered by id, aliases in
// their configured order.
func (s *sqliteStore) ActiveCategories(ctx context.Context) ([]category.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.name, a.alias
FROM categories c
LEFT JOIN category_aliases a ON a.category_id = c.id
WHERE c.is_active = 1
ORDER BY c.id, a.position`)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "query categories"), internalerr.ErrStoreUnavailable)
	}
	defer rows.Close()

	var out []category.Category
	for rows.Next() {
		var (
			id    int64
			name  string
			alias sql.NullString
		)
		if err := rows.Scan(&id, &name, &alias); err != nil {
			return nil, errors.Wrap(err, "scan category")
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, category.Category{ID: id, Name: name, Aliases: []string{}})
		}
		if alias.Valid {
			last := &out[len(out)-1]
			last.Aliases = append(last.Aliases, alias.String)
		}
	}
	return out, rows.Err()
}

// UpsertCategory inserts or updates a category and replaces its aliases.
func (s *sqliteStore) UpsertCategory(ctx context.Context, c store.CategoryRecord) error {
	if c.ID <= 0 {
		return errors.Wrapf(internalerr.ErrInvalidInput, "category id %d", c.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO categories (id, name, insurer, is_active)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name=excluded.name,
	insurer=excluded.insurer,
	is_active=excluded.is_active;
`
	if _, err := tx.ExecContext(ctx, stmt, c.ID, c.Name, c.Insurer, boolToInt(c.Active)); err != nil {
		return errors.Wrapf(err, "upsert category %d", c.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_aliases WHERE category_id = ?`, c.ID); err != nil {
		return err
	}
	pos := 0
	for _, alias := range c.Aliases {
		if alias == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO category_aliases (category_id, position, alias) VALUES (?, ?, ?)`,
			c.ID, pos, alias,
		); err != nil {
			return errors.Wrapf(err, "insert alias %q", alias)
		}
		pos++
	}

	return tx.Commit()
}

// PromptSettings returns the shop's settings, or the zero value with ShopID
// set when none are stored.
func (s *sqliteStore) PromptSettings(ctx context.Context, shopID int64) (store.PromptSettings, error) {
	ps := store.PromptSettings{ShopID: shopID}
	var general sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt_intro, general_category_id FROM evaluation_prompts WHERE shop_id = ?`,
		shopID,
	).Scan(&ps.Intro, &general)
	if errors.Is(err, sql.ErrNoRows) {
		return ps, nil
	}
	if err != nil {
		return store.PromptSettings{}, errors.Wrap(err, "query prompt settings")
	}
	if general.Valid {
		id := general.Int64
		ps.GeneralCategoryID = &id
	}
	return ps, nil
}

// UpsertPromptSettings inserts or replaces the shop's settings.
func (s *sqliteStore) UpsertPromptSettings(ctx context.Context, ps store.PromptSettings) error {
	var general sql.NullInt64
	if ps.GeneralCategoryID != nil {
		general = sql.NullInt64{Int64: *ps.GeneralCategoryID, Valid: true}
	}
	const stmt = `
INSERT INTO evaluation_prompts (shop_id, prompt_intro, general_category_id)
VALUES (?, ?, ?)
ON CONFLICT(shop_id) DO UPDATE SET
	prompt_intro=excluded.prompt_intro,
	general_category_id=excluded.general_category_id;
`
	if _, err := s.db.ExecContext(ctx, stmt, ps.ShopID, ps.Intro, general); err != nil {
		return errors.Wrapf(err, "upsert prompt settings for shop %d", ps.ShopID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
