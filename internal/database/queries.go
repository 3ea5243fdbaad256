package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"faclassifier/internal/domain"
)

func (d *Database) AddFeed(
	ctx context.Context,
	userID int64,
	feedURL string,
	feedTitle string,
) error {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return errors.New("feed URL is empty")
	}

	feedTitle = strings.TrimSpace(feedTitle)
	if feedTitle == "" {
		feedTitle = feedURL
	}

	query := "insert or ignore into feeds (user_id, url, title) values (?, ?, ?)"

	_, err := d.db.ExecContext(ctx, query, userID, feedURL, feedTitle)

	return err
}

func (d *Database) UpdateFeedTitle(ctx context.Context, feedID int64, feedTitle string) error {
	feedTitle = strings.TrimSpace(feedTitle)
	if feedTitle == "" {
		return errors.New("feed title is empty")
	}

	query := "update feeds set title = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, feedTitle, feedID)

	return err
}

// RemoveFeed deletes the feed only when it belongs to userID.
func (d *Database) RemoveFeed(ctx context.Context, userID int64, feedID int64) error {
	query := "delete from feeds where id = ? and user_id = ?"

	res, err := d.db.ExecContext(ctx, query, feedID, userID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("feed %d is not found", feedID)
	}

	return nil
}

func (d *Database) GetUserFeeds(ctx context.Context, userID int64) ([]domain.UserFeed, error) {
	query := "select id, url, title from feeds where user_id = ? order by id"

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "GetUserFeeds")
		}
	}()

	var feeds []domain.UserFeed
	for rows.Next() {
		var f domain.UserFeed
		if err = rows.Scan(&f.ID, &f.URL, &f.Title); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		f.URL = strings.TrimSpace(f.URL)
		f.Title = strings.TrimSpace(f.Title)

		f.UserID = userID
		feeds = append(feeds, f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return feeds, nil
}

// GetHourFeeds returns feeds of users whose digest hour is hourUTC. Users
// without settings get their digest at 00 UTC.
func (d *Database) GetHourFeeds(ctx context.Context, hourUTC int64) ([]domain.UserFeed, error) {
	var query string

	if hourUTC == 0 {
		query = `select f.id, f.user_id, f.url, f.title
		from feeds as f
		left join user_settings as us
		on us.user_id = f.user_id
		where us.user_id is null
		or us.auto_digest_hour_utc = ?`
	} else {
		query = `select f.id, f.user_id, f.url, f.title
		from feeds as f
		left join user_settings as us
		on us.user_id = f.user_id
		where us.auto_digest_hour_utc = ?`
	}

	rows, err := d.db.QueryContext(ctx, query, hourUTC)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"hourUTC", hourUTC,
				"operation", "GetHourFeeds")
		}
	}()

	var feeds []domain.UserFeed
	for rows.Next() {
		var f domain.UserFeed
		if err = rows.Scan(&f.ID, &f.UserID, &f.URL, &f.Title); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		f.URL = strings.TrimSpace(f.URL)
		f.Title = strings.TrimSpace(f.Title)

		feeds = append(feeds, f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return feeds, nil
}

func (d *Database) GetUserSettingsWithDefault(
	ctx context.Context,
	userID int64,
) (*domain.UserSettings, error) {
	query := `select user_id, auto_digest_hour_utc
	from user_settings
	where user_id = ?`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "GetUserSettingsWithDefault")
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		return &domain.UserSettings{
			UserID:            userID,
			AutoDigestHourUTC: 0,
		}, nil
	}

	var us domain.UserSettings
	if err = rows.Scan(&us.UserID, &us.AutoDigestHourUTC); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &us, nil
}

func (d *Database) UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error {
	if userSettings.AutoDigestHourUTC < 0 || userSettings.AutoDigestHourUTC > 23 {
		return fmt.Errorf("auto digest hour %d is out of range", userSettings.AutoDigestHourUTC)
	}

	query := `insert into user_settings (user_id, auto_digest_hour_utc)
	values (?, ?)
	on conflict (user_id) do update
	set auto_digest_hour_utc = excluded.auto_digest_hour_utc`

	_, err := d.db.ExecContext(ctx, query, userSettings.UserID, userSettings.AutoDigestHourUTC)

	return err
}

func (d *Database) RecordClassification(ctx context.Context, c *domain.Classification) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `insert into classifications
	(source, user_id, abstract_sha256, abstract_len, category, error_kind, provider, model, created_at)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(
		ctx,
		query,
		c.Source,
		c.UserID,
		c.AbstractSHA256,
		c.AbstractLen,
		c.Category,
		c.ErrorKind,
		c.Provider,
		c.Model,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert classification: %w", err)
	}

	if id, idErr := res.LastInsertId(); idErr == nil {
		c.ID = id
	}

	return nil
}

// GetRecentClassifications returns the newest entries first. A zero userID
// returns entries of all users.
func (d *Database) GetRecentClassifications(
	ctx context.Context,
	userID int64,
	limit int,
) ([]domain.Classification, error) {
	query := `select id, source, user_id, abstract_sha256, abstract_len, category, error_kind, provider, model, created_at
	from classifications
	where ? = 0 or user_id = ?
	order by created_at desc, id desc
	limit ?`

	return d.queryClassifications(ctx, "GetRecentClassifications", query, userID, userID, limit)
}

// GetRecentClassificationsBySource returns the newest entries recorded by one
// of sources. No sources means no entries.
func (d *Database) GetRecentClassificationsBySource(
	ctx context.Context,
	sources []string,
	limit int,
) ([]domain.Classification, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sources)), ", ")
	query := `select id, source, user_id, abstract_sha256, abstract_len, category, error_kind, provider, model, created_at
	from classifications
	where source in (` + placeholders + `)
	order by created_at desc, id desc
	limit ?`

	args := make([]any, 0, len(sources)+1)
	for _, source := range sources {
		args = append(args, source)
	}
	args = append(args, limit)

	return d.queryClassifications(ctx, "GetRecentClassificationsBySource", query, args...)
}

func (d *Database) queryClassifications(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]domain.Classification, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", operation)
		}
	}()

	var entries []domain.Classification
	for rows.Next() {
		var c domain.Classification
		if err = rows.Scan(
			&c.ID,
			&c.Source,
			&c.UserID,
			&c.AbstractSHA256,
			&c.AbstractLen,
			&c.Category,
			&c.ErrorKind,
			&c.Provider,
			&c.Model,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		entries = append(entries, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// PruneClassifications deletes entries created before cutoff.
func (d *Database) PruneClassifications(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "delete from classifications where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete classifications: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return n, nil
}
