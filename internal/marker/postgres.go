package marker

import (
	"context"
	"encoding/json"
	"errors"

	"backend-nlmap/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PostgresStore keeps each marker as one row; reviews are a JSONB array
// so a review append is a single-field update like in a document store.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(db db.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, m Marker) (Marker, error) {
	m = normalize(m)
	m.ID = uuid.NewString()
	reviews, err := json.Marshal(m.Reviews)
	if err != nil {
		return Marker{}, err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO markers (id, title, description, lat, lng, photo_urls, reviews, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, m.ID, m.Title, m.Description, m.Lat, m.Lng, m.PhotoURLs, reviews, m.CreatedBy)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return Marker{}, err
	}
	return m, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Marker, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, description, lat, lng, photo_urls, reviews, created_by, created_at
		FROM markers WHERE id=$1
	`, id)
	m, err := scanMarker(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Marker{}, ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) List(ctx context.Context) ([]Marker, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, description, lat, lng, photo_urls, reviews, created_by, created_at
		FROM markers
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	markers := []Marker{}
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// AppendReview stamps the review with the database clock.
func (s *PostgresStore) AppendReview(ctx context.Context, id string, r Review) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE markers
		SET reviews = reviews || jsonb_build_array(
			jsonb_build_object('text', $2::text, 'name', $3::text, 'created_at', now())
		)
		WHERE id=$1
	`, id, r.Text, r.Name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendPhotoURLs(ctx context.Context, id string, urls []string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE markers SET photo_urls = photo_urls || $2::text[] WHERE id=$1
	`, id, urls)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMarker(row pgx.Row) (Marker, error) {
	var m Marker
	var reviews []byte
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Lat, &m.Lng, &m.PhotoURLs, &reviews, &m.CreatedBy, &m.CreatedAt); err != nil {
		return Marker{}, err
	}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &m.Reviews); err != nil {
			return Marker{}, err
		}
	}
	return normalize(m), nil
}
