package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

type Sqlite struct {
	pool *sql.DB
}

type FailedJob struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Output string `json:"output"`
	Job    Job    `json:"job"`
}

func NewSqlite(path string) (*Sqlite, error) {
	pool, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &Sqlite{
		pool: pool,
	}, nil
}

func (s *Sqlite) Close() error {
	return s.pool.Close()
}

//go:embed migrations/*.sql
var embedMigrations embed.FS

func (s *Sqlite) RunMigrations() error {
	migrationFs, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create fs.FS: %w", err)
	}

	d, err := iofs.New(migrationFs, ".")
	if err != nil {
		return fmt.Errorf("failed to create new instance: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.pool, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to get driver with instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to make new instance of migration: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed doing migrations: %w", err)
	}

	return nil
}

// GetJobs returns the jobs that still have to run, oldest first.
func (s *Sqlite) GetJobs() ([]Job, error) {
	querySQL := `SELECT id, path, output_path, factor, mode FROM jobs WHERE done = false AND failed = false ORDER BY id`
	rows, err := s.pool.Query(querySQL)
	if err != nil {
		return []Job{}, err
	}

	defer rows.Close()
	jobs := []Job{}
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Path, &j.OutputPath, &j.Factor, &j.Mode); err != nil {
			return jobs, err
		}
		jobs = append(jobs, j)
	}

	// Check for errors from iterating over rows
	if err := rows.Err(); err != nil {
		return []Job{}, err
	}

	return jobs, nil
}

func (s *Sqlite) InsertJob(job *Job) (int64, error) {
	insertSQL := `INSERT INTO jobs (path, output_path, factor, mode) VALUES (?, ?, ?, ?)`
	result, err := s.pool.Exec(insertSQL, job.Path, job.OutputPath, job.Factor, job.Mode)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	job.ID = id
	return id, nil
}

func (s *Sqlite) MarkJobAsDone(job *Job) error {
	_, err := s.pool.Exec(`UPDATE jobs SET done = true WHERE id = ?`, job.ID)
	return err
}

func (s *Sqlite) GetJobRetries(job *Job) (int, error) {
	retries := 0
	err := s.pool.QueryRow(`SELECT retries FROM jobs WHERE id = ?`, job.ID).Scan(&retries)
	if err != nil {
		return 0, err
	}

	return retries, nil
}

func (s *Sqlite) UpdateJobRetries(job *Job, retries int) error {
	_, err := s.pool.Exec(`UPDATE jobs SET retries = ? WHERE id = ?`, retries, job.ID)
	return err
}

// InsertJobResult records the outcome of one run of a job.
func (s *Sqlite) InsertJobResult(result *JobResult) error {
	return s.insertJobResult(s.pool, result)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Sqlite) insertJobResult(db execer, result *JobResult) error {
	degraded := result.DegradedPairs
	if degraded == nil {
		degraded = []int{}
	}

	degradedJSON, err := json.Marshal(degraded)
	if err != nil {
		return err
	}

	insertSQL := `INSERT INTO job_results (job_id, status, frames_in, frames_out, degraded_pairs, error, output)
				VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := db.Exec(insertSQL, result.JobID, result.Status, result.FramesIn, result.FramesOut,
		string(degradedJSON), result.Error, result.Output)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	result.ID = id
	return nil
}

// FailJob records the final result and takes the job out of the queue for good.
func (s *Sqlite) FailJob(job *Job, result *JobResult) (err error) {
	tx, err := s.pool.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.insertJobResult(tx, result); err != nil {
		return err
	}

	if _, err = tx.Exec(`UPDATE jobs SET failed = true WHERE id = ?`, job.ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Sqlite) DeleteJobByID(id int64) (err error) {
	tx, err := s.pool.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM job_results WHERE job_id = ?`, id); err != nil {
		return err
	}

	if _, err = tx.Exec(`DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Sqlite) GetJobResults(jobID int64) ([]JobResult, error) {
	querySQL := `SELECT id, job_id, status, frames_in, frames_out, degraded_pairs, error, output
				FROM job_results WHERE job_id = ? ORDER BY id`
	rows, err := s.pool.Query(querySQL, jobID)
	if err != nil {
		return []JobResult{}, err
	}

	defer rows.Close()
	results := []JobResult{}
	for rows.Next() {
		var r JobResult
		var degraded string
		if err := rows.Scan(&r.ID, &r.JobID, &r.Status, &r.FramesIn, &r.FramesOut, &degraded, &r.Error, &r.Output); err != nil {
			return results, err
		}

		if err := json.Unmarshal([]byte(degraded), &r.DegradedPairs); err != nil {
			return results, fmt.Errorf("parsing degraded pairs of result %d: %w", r.ID, err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return []JobResult{}, err
	}

	return results, nil
}

// GetFailedJobs returns every failed job with its last recorded result.
func (s *Sqlite) GetFailedJobs() ([]FailedJob, error) {
	querySQL := `SELECT r.id, r.status, r.error, r.output, j.id, j.path, j.output_path, j.factor, j.mode
				FROM jobs j
				INNER JOIN job_results r ON r.id = (SELECT MAX(id) FROM job_results WHERE job_id = j.id)
				WHERE j.failed = true
				ORDER BY j.id`
	rows, err := s.pool.Query(querySQL)
	if err != nil {
		return []FailedJob{}, err
	}

	defer rows.Close()
	jobs := []FailedJob{}
	for rows.Next() {
		var f FailedJob
		if err := rows.Scan(&f.ID, &f.Status, &f.Error, &f.Output, &f.Job.ID, &f.Job.Path, &f.Job.OutputPath, &f.Job.Factor, &f.Job.Mode); err != nil {
			return jobs, err
		}
		jobs = append(jobs, f)
	}

	if err := rows.Err(); err != nil {
		return []FailedJob{}, err
	}

	return jobs, nil
}
