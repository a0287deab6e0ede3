package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentityRepository provides MariaDB-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new MariaDB identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = "id, name, role, image_path, embedding, log, created_at"

func scanIdentity(scan func(dest ...any) error) (*database.Identity, error) {
	var ident database.Identity
	var rawEmbedding, rawLog []byte

	if err := scan(&ident.ID, &ident.Name, &ident.Role, &ident.ImagePath, &rawEmbedding, &rawLog, &ident.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rawEmbedding, &ident.Embedding); err != nil {
		return nil, fmt.Errorf("decode embedding for identity %d: %w", ident.ID, err)
	}

	log, err := database.ParseLog(ident.ID, rawLog)
	if err != nil {
		return nil, err
	}
	ident.Log = log
	return &ident, nil
}

// ListAll returns every enrolled identity ordered by ID.
func (r *IdentityRepository) ListAll(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx, "SELECT "+identityColumns+" FROM identities ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// Get retrieves an identity by ID, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, id int64) (*database.Identity, error) {
	row := r.pool.db.QueryRowContext(ctx, "SELECT "+identityColumns+" FROM identities WHERE id = ?", id)

	ident, err := scanIdentity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %d: %w", id, err)
	}
	return ident, nil
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// FindNearest scans the roster in Go since MariaDB has no vector type.
func (r *IdentityRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]database.Identity, []float64, error) {
	identities, err := r.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	type candidate struct {
		ident    database.Identity
		distance float64
	}
	candidates := make([]candidate, 0, len(identities))
	for i := range identities {
		candidates = append(candidates, candidate{
			ident:    identities[i],
			distance: database.EuclideanDistance(embedding, identities[i].Embedding),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].ident.ID < candidates[j].ident.ID
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	result := make([]database.Identity, 0, limit)
	distances := make([]float64, 0, limit)
	for _, c := range candidates[:limit] {
		result = append(result, c.ident)
		distances = append(distances, c.distance)
	}
	return result, distances, nil
}

// Append enrolls a new identity and returns its assigned ID.
func (r *IdentityRepository) Append(ctx context.Context, identity *database.Identity) (int64, error) {
	rawEmbedding, err := json.Marshal(identity.Embedding)
	if err != nil {
		return 0, fmt.Errorf("encode embedding: %w", err)
	}
	rawLog, err := database.EncodeLog(identity.ID, identity.Log)
	if err != nil {
		return 0, err
	}

	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO identities (name, role, image_path, embedding, log)
		VALUES (?, ?, ?, ?, ?)
	`, identity.Name, identity.Role, identity.ImagePath, rawEmbedding, rawLog)
	if err != nil {
		return 0, fmt.Errorf("insert identity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert identity: %w", err)
	}
	return id, nil
}

// UpdateLog replaces the attendance log of an identity.
func (r *IdentityRepository) UpdateLog(ctx context.Context, id int64, log []database.AttendanceRecord) error {
	rawLog, err := database.EncodeLog(id, log)
	if err != nil {
		return err
	}

	result, err := r.pool.db.ExecContext(ctx, "UPDATE identities SET log = ? WHERE id = ?", rawLog, id)
	if err != nil {
		return fmt.Errorf("update log for identity %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update log for identity %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update log: identity %d not found", id)
	}
	return nil
}
