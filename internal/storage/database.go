package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/vrsjns/bearlink-sub000/internal/config"
	"github.com/vrsjns/bearlink-sub000/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var schema = `
	CREATE TABLE IF NOT EXISTS links (
		id BIGSERIAL PRIMARY KEY,
		short_id TEXT NOT NULL UNIQUE,
		custom_alias TEXT NOT NULL DEFAULT '',
		original_url TEXT NOT NULL,
		redirect_type INT NOT NULL DEFAULT 302,
		expires_at TIMESTAMPTZ,
		password_hash TEXT NOT NULL DEFAULT '',
		tags JSONB NOT NULL DEFAULT '[]',
		utm_params JSONB,
		require_signature BOOLEAN NOT NULL DEFAULT FALSE,
		clicks BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		user_id TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS links_custom_alias_key
		ON links (custom_alias) WHERE custom_alias <> '';
	CREATE INDEX IF NOT EXISTS links_user_id_idx ON links (user_id);
`

const linkColumns = `id, short_id, custom_alias, original_url, redirect_type, expires_at,
	password_hash, tags, utm_params, require_signature, clicks, created_at, user_id`

type DatabaseStore struct {
	DB *sqlx.DB
}

func (store *DatabaseStore) Initialize(_ context.Context) error {
	var err error
	store.DB, err = sqlx.Connect("pgx", config.Current.DatabaseDSN)
	if err != nil {
		return err
	}

	if _, err = store.DB.Exec(schema); err != nil {
		return err
	}
	return nil
}

func (store *DatabaseStore) Create(ctx context.Context, link *models.Link) error {
	if link.CustomAlias != "" {
		taken, err := store.aliasShadowsShortID(ctx, link.CustomAlias, 0)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrAliasTaken
		}
	}

	err := store.DB.QueryRowxContext(ctx, `
		INSERT INTO links (short_id, custom_alias, original_url, redirect_type, expires_at,
			password_hash, tags, utm_params, require_signature, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		link.ShortID, link.CustomAlias, link.OriginalURL, link.RedirectType, link.ExpiresAt,
		link.PasswordHash, link.Tags, link.UTMParams, link.RequireSignature, link.UserID,
	).Scan(&link.ID, &link.CreatedAt)

	return translateConflict(err)
}

func (store *DatabaseStore) FindBySlug(ctx context.Context, slug string) (models.Link, error) {
	var link models.Link
	err := store.DB.GetContext(ctx, &link, `
		SELECT `+linkColumns+` FROM links
		WHERE short_id = $1 OR custom_alias = $1
		LIMIT 1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, models.ErrNotFound
	}
	return link, err
}

func (store *DatabaseStore) FindByOwner(ctx context.Context, id int64, ownerID string) (models.Link, error) {
	var link models.Link
	err := store.DB.GetContext(ctx, &link, `
		SELECT `+linkColumns+` FROM links
		WHERE id = $1 AND user_id = $2`, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, models.ErrNotFound
	}
	return link, err
}

func (store *DatabaseStore) UpdateByOwner(ctx context.Context, id int64, ownerID string, patch models.LinkPatch) (models.Link, error) {
	sets, args := patchClauses(patch)
	if len(sets) == 0 {
		return store.FindByOwner(ctx, id, ownerID)
	}

	if patch.CustomAlias != nil && *patch.CustomAlias != "" {
		taken, err := store.aliasShadowsShortID(ctx, *patch.CustomAlias, id)
		if err != nil {
			return models.Link{}, err
		}
		if taken {
			return models.Link{}, models.ErrAliasTaken
		}
	}

	args = append(args, id, ownerID)
	query := fmt.Sprintf(`
		UPDATE links SET %s
		WHERE id = $%d AND user_id = $%d
		RETURNING `+linkColumns,
		strings.Join(sets, ", "), len(args)-1, len(args))

	var link models.Link
	err := store.DB.QueryRowxContext(ctx, query, args...).StructScan(&link)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, models.ErrNotFound
	}
	if err != nil {
		return models.Link{}, translateConflict(err)
	}
	return link, nil
}

func (store *DatabaseStore) DeleteByOwner(ctx context.Context, id int64, ownerID string) (models.Link, error) {
	var link models.Link
	err := store.DB.QueryRowxContext(ctx, `
		DELETE FROM links
		WHERE id = $1 AND user_id = $2
		RETURNING `+linkColumns, id, ownerID).StructScan(&link)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, models.ErrNotFound
	}
	return link, err
}

// IncrementClicks is a single atomic statement; the counter never goes
// through read-modify-write.
func (store *DatabaseStore) IncrementClicks(ctx context.Context, shortID string) error {
	result, err := store.DB.ExecContext(ctx, `UPDATE links SET clicks = clicks + 1 WHERE short_id = $1`, shortID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (store *DatabaseStore) List(ctx context.Context, ownerID string, query models.ListQuery) ([]models.Link, int64, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{ownerID}

	if query.Search != "" {
		args = append(args, "%"+query.Search+"%")
		where = append(where, fmt.Sprintf("(original_url ILIKE $%d OR custom_alias ILIKE $%d)", len(args), len(args)))
	}
	if query.Tag != "" {
		args = append(args, query.Tag)
		where = append(where, fmt.Sprintf("tags @> jsonb_build_array($%d::text)", len(args)))
	}
	if query.Expired != nil {
		if *query.Expired {
			where = append(where, "expires_at IS NOT NULL AND expires_at < now()")
		} else {
			where = append(where, "(expires_at IS NULL OR expires_at >= now())")
		}
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := store.DB.GetContext(ctx, &total, `SELECT count(*) FROM links WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, query.Limit, query.Offset())
	var links []models.Link
	err := store.DB.SelectContext(ctx, &links, fmt.Sprintf(`
		SELECT `+linkColumns+` FROM links
		WHERE %s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (store *DatabaseStore) Ping(ctx context.Context) error {
	return store.DB.PingContext(ctx)
}

// aliasShadowsShortID reports whether an alias would collide with another
// row's generated id. The unique indexes cover each column on its own but
// not the cross-column case, and FindBySlug matches either column.
func (store *DatabaseStore) aliasShadowsShortID(ctx context.Context, alias string, selfID int64) (bool, error) {
	var taken bool
	err := store.DB.GetContext(ctx, &taken, `
		SELECT EXISTS (SELECT 1 FROM links WHERE short_id = $1 AND id <> $2)`, alias, selfID)
	return taken, err
}

// translateConflict maps unique-constraint violations to the typed conflict
// errors; raw driver codes never reach the caller.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "custom_alias") {
			return models.ErrAliasTaken
		}
		return models.ErrSlugTaken
	}
	return err
}

func patchClauses(patch models.LinkPatch) ([]string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.OriginalURL != nil {
		add("original_url", *patch.OriginalURL)
	}
	if patch.CustomAlias != nil {
		add("custom_alias", *patch.CustomAlias)
	}
	if patch.RedirectType != nil {
		add("redirect_type", *patch.RedirectType)
	}
	if patch.SetExpiresAt {
		add("expires_at", patch.ExpiresAt)
	}
	if patch.SetPassword {
		if patch.PasswordHash == nil {
			add("password_hash", "")
		} else {
			add("password_hash", *patch.PasswordHash)
		}
	}
	if patch.Tags != nil {
		add("tags", *patch.Tags)
	}
	if patch.UTMParams != nil {
		add("utm_params", *patch.UTMParams)
	}
	if patch.RequireSignature != nil {
		add("require_signature", *patch.RequireSignature)
	}
	return sets, args
}
