package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// IdentityRepository provides PostgreSQL-backed identity storage with
// pgvector embeddings and JSONB attendance logs.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = "id, name, role, image_path, embedding, log, created_at"

// scanIdentity scans a single identity row. The attendance log goes through
// strict validation; a row with a corrupt log surfaces *CorruptLogError.
func scanIdentity(scan func(dest ...any) error) (*database.Identity, error) {
	var ident database.Identity
	var vec pgvector.Vector
	var rawLog []byte

	if err := scan(&ident.ID, &ident.Name, &ident.Role, &ident.ImagePath, &vec, &rawLog, &ident.CreatedAt); err != nil {
		return nil, err
	}

	ident.Embedding = vec.Slice()

	log, err := database.ParseLog(ident.ID, rawLog)
	if err != nil {
		return nil, err
	}
	ident.Log = log
	return &ident, nil
}

// ListAll returns every enrolled identity ordered by ID.
func (r *IdentityRepository) ListAll(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+identityColumns+" FROM identities ORDER BY id")
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
	row := r.pool.QueryRow(ctx, "SELECT "+identityColumns+" FROM identities WHERE id = $1", id)

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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// FindNearest returns up to limit identities ordered by Euclidean distance
// to the given embedding, using the pgvector <-> operator.
func (r *IdentityRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]database.Identity, []float64, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := r.pool.Query(ctx, `
		SELECT `+identityColumns+`, embedding <-> $1 AS distance
		FROM identities
		ORDER BY embedding <-> $1, id
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	var distances []float64
	for rows.Next() {
		var ident database.Identity
		var v pgvector.Vector
		var rawLog []byte
		var distance float64

		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Role, &ident.ImagePath, &v, &rawLog, &ident.CreatedAt, &distance); err != nil {
			return nil, nil, fmt.Errorf("scan nearest identity: %w", err)
		}
		ident.Embedding = v.Slice()

		log, err := database.ParseLog(ident.ID, rawLog)
		if err != nil {
			return nil, nil, err
		}
		ident.Log = log

		identities = append(identities, ident)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate nearest identities: %w", err)
	}
	return identities, distances, nil
}

// Append enrolls a new identity and returns its assigned ID.
func (r *IdentityRepository) Append(ctx context.Context, identity *database.Identity) (int64, error) {
	rawLog, err := database.EncodeLog(identity.ID, identity.Log)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO identities (name, role, image_path, embedding, log, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, identity.Name, identity.Role, identity.ImagePath, pgvector.NewVector(identity.Embedding), rawLog).Scan(&id)
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

	result, err := r.pool.Exec(ctx, "UPDATE identities SET log = $1 WHERE id = $2", rawLog, id)
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
