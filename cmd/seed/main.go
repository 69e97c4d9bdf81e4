package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"learnhub-billing/internal/config"
	"learnhub-billing/internal/infra/db/migrations"
	pg "learnhub-billing/internal/infra/db/postgres"
	"learnhub-billing/internal/infra/logging"
)

// seed loads a small catalog for local runs and manual end-to-end checks.
// The catalog is normally owned by the content service.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	reset := flag.Bool("reset", false, "wipe orders, payments, entitlements and usage before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := migrations.Up(cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if *reset {
		logger.Info().Msg("wiping billing tables")
		if _, err := pool.Exec(ctx, `
			TRUNCATE ai_usage, chapter_entitlements, course_entitlements, payments, orders`); err != nil {
			logger.Fatal().Err(err).Msg("truncate")
		}
	}

	var courses int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM courses`).Scan(&courses); err != nil {
		logger.Fatal().Err(err).Msg("count courses")
	}
	if courses > 0 {
		logger.Info().Int("courses", courses).Msg("catalog already present; no changes")
		return
	}

	if err := seedCatalog(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().Msg("seeding complete")
}

type chapterSeed struct {
	id, title string
	free      bool
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, logger *zerolog.Logger) error {
	return pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		stmts := []struct {
			sql  string
			args []any
		}{
			{`INSERT INTO subjects (id, title, first_chapter_free) VALUES ($1,$2,$3)`, []any{"physics", "Physics", true}},
			{`INSERT INTO subjects (id, title, first_chapter_free) VALUES ($1,$2,$3)`, []any{"math", "Higher Math", false}},
			{`INSERT INTO courses (id, subject_id, title, price, currency) VALUES ($1,$2,$3,$4,'BDT')`, []any{"hsc-physics-1", "physics", "HSC Physics 1st Paper", "1499.00"}},
			{`INSERT INTO courses (id, subject_id, title, price, currency) VALUES ($1,$2,$3,$4,'BDT')`, []any{"hsc-math-1", "math", "HSC Higher Math 1st Paper", "1299.00"}},
			{`INSERT INTO users (id, full_name, email, phone) VALUES ($1,$2,$3,$4)`, []any{"demo-student", "Demo Student", "student@example.com", "01700000001"}},
		}
		for _, s := range stmts {
			if _, err := tx.Exec(ctx, s.sql, s.args...); err != nil {
				return err
			}
		}

		chapters := map[string][]chapterSeed{
			"hsc-physics-1": {{"phy-1-vectors", "Vectors", false}, {"phy-1-dynamics", "Dynamics", false}, {"phy-1-work", "Work, Energy and Power", false}},
			"hsc-math-1":    {{"math-1-matrices", "Matrices", true}, {"math-1-lines", "Straight Lines", false}, {"math-1-circles", "Circles", false}},
		}
		for courseID, list := range chapters {
			for i, ch := range list {
				_, err := tx.Exec(ctx, `
					INSERT INTO chapters (id, course_id, subject_id, title, order_index, is_free)
					SELECT $1, $2, subject_id, $3, $4, $5 FROM courses WHERE id = $2`,
					ch.id, courseID, ch.title, i+1, ch.free)
				if err != nil {
					return fmt.Errorf("chapter %s: %w", ch.id, err)
				}
			}
			logger.Info().Str("course_id", courseID).Int("chapters", len(list)).Msg("seeded course")
		}
		return nil
	})
}
