package stream

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaycast/broadcaster/internal/encoder"
)

// Repository persists session and playlist state to PostgreSQL. The live
// registry is the source of truth; rows mirror it for history and for
// boot-time resumption.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a broadcast session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSession inserts a new session row.
func (r *Repository) CreateSession(ctx context.Context, rec SessionRecord) error {
	const q = `INSERT INTO broadcast_sessions
		(id, owner_id, source_kind, input_path, audio_path, image_path, rtmp_url, stream_key, tier, loop_input, status, restart_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, q,
		rec.ID, rec.OwnerID, string(rec.Source.Kind),
		rec.Source.Path, rec.Source.AudioPath, rec.Source.ImagePath,
		rec.Destination.URL, rec.Destination.Key,
		rec.Tier, rec.Loop, string(rec.Status), rec.RestartCount)
	return err
}

// UpdateStatus sets the session's status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	const q = `UPDATE broadcast_sessions SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, string(status), id)
	return err
}

// UpdateRestartCount sets the session's restart counter.
func (r *Repository) UpdateRestartCount(ctx context.Context, id uuid.UUID, count int) error {
	const q = `UPDATE broadcast_sessions SET restart_count = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, count, id)
	return err
}

// UpdateTier sets the session's current quality tier.
func (r *Repository) UpdateTier(ctx context.Context, id uuid.UUID, tier int) error {
	const q = `UPDATE broadcast_sessions SET tier = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, tier, id)
	return err
}

// AddItem inserts a playlist item at the given position.
func (r *Repository) AddItem(ctx context.Context, sessionID uuid.UUID, item Item, position int) error {
	const q = `INSERT INTO playlist_items (id, session_id, position, path, title, played)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q, item.ID, sessionID, position, item.Path, item.Title, item.Played)
	return err
}

// RemoveItem deletes a playlist item.
func (r *Repository) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	const q = `DELETE FROM playlist_items WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, itemID)
	return err
}

// MarkItemPlayed sets the played marker on a playlist item.
func (r *Repository) MarkItemPlayed(ctx context.Context, itemID uuid.UUID) error {
	const q = `UPDATE playlist_items SET played = TRUE WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, itemID)
	return err
}

// ResumableSession is a persisted session that was live when the previous
// process stopped, with its unplayed playlist items.
type ResumableSession struct {
	Record SessionRecord
	Items  []string // unplayed playlist paths, in position order
}

// ListResumable returns sessions persisted as running or paused, for
// boot-time restoration.
func (r *Repository) ListResumable(ctx context.Context) ([]ResumableSession, error) {
	const q = `SELECT id, owner_id, source_kind, input_path, audio_path, image_path, rtmp_url, stream_key, tier, loop_input, status, restart_count
		FROM broadcast_sessions WHERE status IN ('running', 'paused') ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResumableSession
	for rows.Next() {
		var rec SessionRecord
		var kind, status string
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &kind,
			&rec.Source.Path, &rec.Source.AudioPath, &rec.Source.ImagePath,
			&rec.Destination.URL, &rec.Destination.Key,
			&rec.Tier, &rec.Loop, &status, &rec.RestartCount); err != nil {
			return nil, err
		}
		rec.Source.Kind = encoder.SourceKind(kind)
		rec.Status = Status(status)
		out = append(out, ResumableSession{Record: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Record.Source.Kind != encoder.KindPlaylist {
			continue
		}
		items, err := r.unplayedItems(ctx, out[i].Record.ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
		out[i].Record.Source.Items = items
	}
	return out, nil
}

func (r *Repository) unplayedItems(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	const q = `SELECT path FROM playlist_items WHERE session_id = $1 AND played = FALSE ORDER BY position`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// FinalizeStale marks a previously-live row stopped. Called at boot before a
// replacement session (new id) is started through the regular Start path.
func (r *Repository) FinalizeStale(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE broadcast_sessions SET status = 'stopped', updated_at = NOW()
		WHERE id = $1 AND status IN ('running', 'paused')`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
