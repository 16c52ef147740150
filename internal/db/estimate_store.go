package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/timeutil"
)

// EstimateRecord is a persisted single-point estimate.
type EstimateRecord struct {
	EstimateID string         `json:"estimate_id"`
	Domain     plate.Domain   `json:"domain"`
	Epsilon    float64        `json:"epsilon"`
	Estimate   plate.Estimate `json:"estimate"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EstimateStore provides persistence for single-point estimates.
type EstimateStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewEstimateStore creates an EstimateStore. A nil clock uses the real clock.
func NewEstimateStore(db *sql.DB, clock timeutil.Clock) *EstimateStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &EstimateStore{db: db, clock: clock}
}

// Insert persists rec. If EstimateID is empty, a UUID is generated.
func (s *EstimateStore) Insert(rec *EstimateRecord) error {
	if rec.EstimateID == "" {
		rec.EstimateID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now().UTC()
	}
	hits, err := json.Marshal(rec.Estimate.Hits)
	if err != nil {
		return fmt.Errorf("encoding hits: %w", err)
	}

	d, est := rec.Domain, rec.Estimate
	err = retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT INTO point_estimates (
				estimate_id, width, height,
				temp_bottom, temp_right, temp_left, temp_top,
				x, y, temperature, stddev, stderr, trials, epsilon, seed,
				total_steps, longest_walk, hits_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.EstimateID, d.Width, d.Height,
			d.Temperatures[plate.WallBottom], d.Temperatures[plate.WallRight],
			d.Temperatures[plate.WallLeft], d.Temperatures[plate.WallTop],
			est.Point.X, est.Point.Y, est.Temperature, est.StdDev, est.StdErr, est.Trials, rec.Epsilon,
			int64(est.Seed), est.TotalSteps, est.LongestWalk, string(hits), rec.CreatedAt.UnixNano(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting estimate: %w", err)
	}
	return nil
}

// List returns up to limit estimates, newest first. A limit of zero or less
// returns all of them.
func (s *EstimateStore) List(limit int) ([]*EstimateRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT estimate_id, width, height, temp_bottom, temp_right, temp_left, temp_top,
			x, y, temperature, stddev, stderr, trials, epsilon, seed,
			total_steps, longest_walk, hits_json, created_at
		FROM point_estimates ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing estimates: %w", err)
	}
	defer rows.Close()

	var out []*EstimateRecord
	for rows.Next() {
		var (
			rec       EstimateRecord
			seed      int64
			hits      string
			createdAt int64
		)
		t := &rec.Domain.Temperatures
		est := &rec.Estimate
		if err := rows.Scan(
			&rec.EstimateID, &rec.Domain.Width, &rec.Domain.Height,
			&t[plate.WallBottom], &t[plate.WallRight], &t[plate.WallLeft], &t[plate.WallTop],
			&est.Point.X, &est.Point.Y, &est.Temperature, &est.StdDev, &est.StdErr, &est.Trials, &rec.Epsilon,
			&seed, &est.TotalSteps, &est.LongestWalk, &hits, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning estimate: %w", err)
		}
		if err := json.Unmarshal([]byte(hits), &est.Hits); err != nil {
			return nil, fmt.Errorf("decoding hits of estimate %s: %w", rec.EstimateID, err)
		}
		est.Seed = uint64(seed)
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}
