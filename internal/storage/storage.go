package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrInvalidSettings = errors.New("invalid antinuke settings")

const (
	MinThreshold  = 1
	MaxThreshold  = 100
	MinTimeWindow = 1
	MaxTimeWindow = 60
)

type Store struct {
	pool *pgxpool.Pool
}

// AntinukeSettings is the per-guild anti-nuke configuration. Empty
// LogChannelID and TrustedUser mean "not configured". TrustedUser may be
// a raw id or a mention; callers normalize before comparing.
type AntinukeSettings struct {
	GuildID          string
	Enabled          bool
	Threshold        int
	TimeWindow       int
	LogChannelID     string
	TrustedUser      string
	WhitelistedUsers []string
	WhitelistedRoles []string
}

func (s AntinukeSettings) Validate() error {
	if s.GuildID == "" {
		return fmt.Errorf("%w: guild id is required", ErrInvalidSettings)
	}
	if s.Threshold < MinThreshold || s.Threshold > MaxThreshold {
		return fmt.Errorf("%w: threshold must be between %d and %d", ErrInvalidSettings, MinThreshold, MaxThreshold)
	}
	if s.TimeWindow < MinTimeWindow || s.TimeWindow > MaxTimeWindow {
		return fmt.Errorf("%w: time window must be between %d and %d seconds", ErrInvalidSettings, MinTimeWindow, MaxTimeWindow)
	}
	return nil
}

func (s AntinukeSettings) Window() time.Duration {
	return time.Duration(s.TimeWindow) * time.Second
}

type AntinukeOffense struct {
	GuildID      string
	UserID       string
	OffenseCount int
	LastOffense  *time.Time
}

type ActionRecord struct {
	ID         int64
	GuildID    string
	ExecutorID string
	ActionType string
	TargetID   string
	CreatedAt  time.Time
}

type WhitelistKind string

const (
	WhitelistUsers WhitelistKind = "users"
	WhitelistRoles WhitelistKind = "roles"
)

func (k WhitelistKind) column() (string, error) {
	switch k {
	case WhitelistUsers:
		return "whitelisted_users", nil
	case WhitelistRoles:
		return "whitelisted_roles", nil
	default:
		return "", fmt.Errorf("unknown whitelist kind %q", string(k))
	}
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetAntinukeSettings returns the stored settings or defaults stamped with
// the guild id when the guild has never been configured.
func (s *Store) GetAntinukeSettings(ctx context.Context, guildID string, defaults AntinukeSettings) (AntinukeSettings, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT enabled, threshold, time_window, log_channel_id, trusted_user,
		whitelisted_users, whitelisted_roles
		FROM antinuke_settings WHERE guild_id = $1`, guildID)

	result := defaults
	result.GuildID = guildID

	var logChannel, trusted *string
	err := row.Scan(
		&result.Enabled,
		&result.Threshold,
		&result.TimeWindow,
		&logChannel,
		&trusted,
		&result.WhitelistedUsers,
		&result.WhitelistedRoles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, nil
		}
		return AntinukeSettings{}, err
	}
	result.LogChannelID = deref(logChannel)
	result.TrustedUser = deref(trusted)
	return result, nil
}

func (s *Store) SetAntinukeSettings(ctx context.Context, settings AntinukeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO antinuke_settings (
			guild_id, enabled, threshold, time_window, log_channel_id, trusted_user,
			whitelisted_users, whitelisted_roles
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (guild_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			threshold = EXCLUDED.threshold,
			time_window = EXCLUDED.time_window,
			log_channel_id = EXCLUDED.log_channel_id,
			trusted_user = EXCLUDED.trusted_user,
			whitelisted_users = EXCLUDED.whitelisted_users,
			whitelisted_roles = EXCLUDED.whitelisted_roles
	`,
		settings.GuildID,
		settings.Enabled,
		settings.Threshold,
		settings.TimeWindow,
		nullable(settings.LogChannelID),
		nullable(settings.TrustedUser),
		nonNil(settings.WhitelistedUsers),
		nonNil(settings.WhitelistedRoles),
	)
	return err
}

// AddToWhitelist appends id to the chosen list if absent. The row is
// created from defaults when the guild has no settings yet.
func (s *Store) AddToWhitelist(ctx context.Context, guildID string, kind WhitelistKind, id string, defaults AntinukeSettings) error {
	column, err := kind.column()
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO antinuke_settings (guild_id, enabled, threshold, time_window, %[1]s)
		VALUES ($1, $2, $3, $4, ARRAY[$5]::TEXT[])
		ON CONFLICT (guild_id) DO UPDATE SET
			%[1]s = CASE
				WHEN $5 = ANY(antinuke_settings.%[1]s) THEN antinuke_settings.%[1]s
				ELSE array_append(antinuke_settings.%[1]s, $5)
			END
	`, column)
	_, err = s.pool.Exec(ctx, query, guildID, defaults.Enabled, defaults.Threshold, defaults.TimeWindow, id)
	return err
}

func (s *Store) RemoveFromWhitelist(ctx context.Context, guildID string, kind WhitelistKind, id string) error {
	column, err := kind.column()
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE antinuke_settings SET %[1]s = array_remove(%[1]s, $2) WHERE guild_id = $1`, column)
	_, err = s.pool.Exec(ctx, query, guildID, id)
	return err
}

func (s *Store) LogAntinukeAction(ctx context.Context, record ActionRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO antinuke_actions (guild_id, executor_id, action_type, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, record.GuildID, record.ExecutorID, record.ActionType, nullable(record.TargetID), createdAt)
	return err
}

// GetRecentActions lists actions newer than since, newest first. An empty
// executorID returns every executor in the guild.
func (s *Store) GetRecentActions(ctx context.Context, guildID, executorID string, since time.Time) ([]ActionRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if executorID == "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, guild_id, executor_id, action_type, target_id, created_at
			FROM antinuke_actions
			WHERE guild_id = $1 AND created_at > $2
			ORDER BY created_at DESC
		`, guildID, since)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, guild_id, executor_id, action_type, target_id, created_at
			FROM antinuke_actions
			WHERE guild_id = $1 AND executor_id = $2 AND created_at > $3
			ORDER BY created_at DESC
		`, guildID, executorID, since)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var record ActionRecord
		var target *string
		if err := rows.Scan(&record.ID, &record.GuildID, &record.ExecutorID, &record.ActionType, &target, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.TargetID = deref(target)
		records = append(records, record)
	}
	return records, rows.Err()
}

// ClearAntinukeActions deletes audit rows created before the cutoff. An
// empty guildID applies to every guild; a zero cutoff deletes everything
// for the guild.
func (s *Store) ClearAntinukeActions(ctx context.Context, guildID string, before time.Time) (int64, error) {
	var (
		query string
		args  []any
	)
	switch {
	case guildID == "" && before.IsZero():
		return 0, errors.New("refusing to clear every action of every guild")
	case guildID == "":
		query = `DELETE FROM antinuke_actions WHERE created_at < $1`
		args = []any{before}
	case before.IsZero():
		query = `DELETE FROM antinuke_actions WHERE guild_id = $1`
		args = []any{guildID}
	default:
		query = `DELETE FROM antinuke_actions WHERE guild_id = $1 AND created_at < $2`
		args = []any{guildID, before}
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GetOffense(ctx context.Context, guildID, userID string) (AntinukeOffense, error) {
	offense := AntinukeOffense{GuildID: guildID, UserID: userID}
	row := s.pool.QueryRow(ctx, `
		SELECT offense_count, last_offense
		FROM antinuke_offenses
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID)
	err := row.Scan(&offense.OffenseCount, &offense.LastOffense)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return AntinukeOffense{}, err
	}
	return offense, nil
}

func (s *Store) GetOffenseCount(ctx context.Context, guildID, userID string) (int, error) {
	offense, err := s.GetOffense(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	return offense.OffenseCount, nil
}

// IncrementOffense bumps the counter in a single upsert so concurrent
// breaches for the same user can never lose an increment.
func (s *Store) IncrementOffense(ctx context.Context, guildID, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO antinuke_offenses (guild_id, user_id, offense_count, last_offense)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			offense_count = antinuke_offenses.offense_count + 1,
			last_offense = EXCLUDED.last_offense
		RETURNING offense_count
	`, guildID, userID, time.Now()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "already exists")
}
