package store

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// AttachAdminRoutes mounts debug endpoints for the run database under
// /debug/ on mux: a live SQL console and a run count summary.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://eventpca.db", s.db, &tailsql.DBOptions{
		Label: "Run DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("run-stats", "Run, batch and block counts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var runs, batches, blocks int
		err := s.db.QueryRowContext(r.Context(), `
			SELECT
				(SELECT COUNT(*) FROM runs),
				(SELECT COUNT(*) FROM batches),
				(SELECT COUNT(*) FROM sample_blocks)`).Scan(&runs, &batches, &blocks)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to count rows: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "runs %d\nbatches %d\nsample_blocks %d\n", runs, batches, blocks)
	}))
	return nil
}
