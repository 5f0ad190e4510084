// Package report materializes the relational schema into static JSON
// artifacts for the reporting front end: a dashboard summary, a detailed
// statistics document, paginated listings, and one detail document per
// submission.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/smookymolina/formulario-doxx/internal/storage/postgres"
)

// Source is the read surface of the relational schema the job consumes.
type Source interface {
	Dashboard(ctx context.Context) (postgres.Dashboard, error)
	DetailedStats(ctx context.Context) (postgres.DetailedStats, error)
	ListSubmissions(ctx context.Context, page, perPage int) (postgres.ListingPage, error)
	SubmissionIDs(ctx context.Context) ([]int64, error)
	SubmissionDetail(ctx context.Context, id int64) (postgres.Detail, error)
}

type Generator struct {
	src     Source
	dir     string
	perPage int
	timeout time.Duration
	log     zerolog.Logger
}

func NewGenerator(src Source, dir string, perPage int, timeout time.Duration, log zerolog.Logger) *Generator {
	return &Generator{src: src, dir: dir, perPage: perPage, timeout: timeout, log: log}
}

// Run regenerates the whole artifact set. The job is fail-fast: the first
// error aborts the run and may leave artifacts from a previous successful
// run in place. Each individual file is written atomically (temp +
// rename), so a reader never observes a half-written document.
func (g *Generator) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(g.dir, "respuestas"), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	dashboard, err := g.dashboard(ctx)
	if err != nil {
		return err
	}
	if err := g.writeJSON(filepath.Join(g.dir, "dashboard.json"), dashboard); err != nil {
		return err
	}
	g.log.Info().Msg("dashboard.json generated")

	stats, err := g.detailedStats(ctx)
	if err != nil {
		return err
	}
	if err := g.writeJSON(filepath.Join(g.dir, "statistics.json"), stats); err != nil {
		return err
	}
	g.log.Info().Msg("statistics.json generated")

	pages, err := g.listingPages(ctx)
	if err != nil {
		return err
	}
	g.log.Info().Int("pages", pages).Msg("listing pages generated")

	details, err := g.detailDocs(ctx)
	if err != nil {
		return err
	}
	g.log.Info().Int("documents", details).Msg("detail documents generated")

	return nil
}

func (g *Generator) dashboard(ctx context.Context) (postgres.Dashboard, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	d, err := g.src.Dashboard(ctx)
	if err != nil {
		return d, fmt.Errorf("dashboard aggregates: %w", err)
	}
	return d, nil
}

func (g *Generator) detailedStats(ctx context.Context) (postgres.DetailedStats, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	ds, err := g.src.DetailedStats(ctx)
	if err != nil {
		return ds, fmt.Errorf("detailed stats: %w", err)
	}
	return ds, nil
}

// listingPages writes respuestas_page_{N}.json for every page and returns
// how many pages exist. An empty table produces no page files.
func (g *Generator) listingPages(ctx context.Context) (int, error) {
	page := 1
	totalPages := 0
	for {
		callCtx, cancel := g.bound(ctx)
		listing, err := g.src.ListSubmissions(callCtx, page, g.perPage)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("list page %d: %w", page, err)
		}

		totalPages = listing.TotalPages
		if totalPages == 0 {
			return 0, nil
		}

		path := filepath.Join(g.dir, "respuestas_page_"+strconv.Itoa(page)+".json")
		if err := g.writeJSON(path, listing); err != nil {
			return 0, err
		}

		if page >= totalPages {
			return totalPages, nil
		}
		page++
	}
}

func (g *Generator) detailDocs(ctx context.Context) (int, error) {
	idsCtx, cancel := g.bound(ctx)
	ids, err := g.src.SubmissionIDs(idsCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("submission ids: %w", err)
	}

	for _, id := range ids {
		callCtx, cancel := g.bound(ctx)
		detail, err := g.src.SubmissionDetail(callCtx, id)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("detail %d: %w", id, err)
		}

		path := filepath.Join(g.dir, "respuestas", strconv.FormatInt(id, 10)+".json")
		if err := g.writeJSON(path, detail); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (g *Generator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Generator) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return nil
}
