package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"slices"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rzpsarthak13/depository/pkg/depository"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		database string
	)

	cmd := &cobra.Command{
		Use:   "serve <table>",
		Short: "Serve the records of a table over HTTP",
		Long: `serve exposes one table as JSON records:

  POST   /<table>        create a record
  GET    /<table>        list records, filtered by ?field=value
  GET    /<table>/{id}   fetch a record by primary key
  PUT    /<table>/{id}   update the given fields of a record
  DELETE /<table>/{id}   delete a record
  GET    /health         health check`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			table := args[0]
			model, pk, err := tableModel(ctx, database, table)
			if err != nil {
				return err
			}
			repo, err := conn.Repository(depository.Config{
				Model:      func() depository.ModelFactory { return model },
				Table:      table,
				Database:   database,
				PrimaryKey: pk,
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:    addr,
				Handler: newRecordHandler(table, repo, a.logger),
				BaseContext: func(net.Listener) context.Context {
					return ctx
				},
				ReadHeaderTimeout: 10 * time.Second,
			}

			eg, egctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				a.logger.Info("serving records", "addr", addr, "table", table, "database", database)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-egctx.Done()
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVarP(&database, "database", "d", "default", "registered database holding the table")
	return cmd
}

// tableModel derives a model and its primary key from the columns of table.
// Tables carrying both created_at and updated_at get timestamped records.
func tableModel(ctx context.Context, database, table string) (*depository.ModelSchema, string, error) {
	db, err := depository.ResolveDatabase(database)
	if err != nil {
		return nil, "", err
	}
	cs, err := db.Columns(ctx, table)
	if err != nil {
		return nil, "", err
	}

	names := cs.Names()
	stamped := slices.Contains(names, "created_at") && slices.Contains(names, "updated_at")
	fields := make([]string, 0, len(names))
	for _, name := range names {
		if stamped && (name == "created_at" || name == "updated_at") {
			continue
		}
		fields = append(fields, name)
	}

	model := depository.NewModelSchema(table, fields...)
	if stamped {
		model = model.WithTimestamps()
	}
	return model, cs.PrimaryKey, nil
}

type recordHandler struct {
	repo   *depository.Repository
	fields map[string]bool
	pk     string
	logger *slog.Logger
}

func newRecordHandler(table string, repo *depository.Repository, logger *slog.Logger) http.Handler {
	h := &recordHandler{
		repo:   repo,
		fields: make(map[string]bool),
		pk:     repo.Config().PrimaryKey(),
		logger: logger,
	}
	for _, f := range repo.Config().Factory().Fields() {
		h.fields[f] = true
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", h.health)
	r.Route("/"+table, func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
	return r
}

func (h *recordHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"databases": depository.RegisteredDatabases(),
	})
}

func (h *recordHandler) create(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.repo.Create(r.Context(), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec.Attributes())
}

func (h *recordHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := h.repo.Query()
	for _, k := range keys {
		values := query[k]
		switch {
		case k == "limit":
			n, err := strconv.Atoi(values[0])
			if err != nil || n < 0 {
				h.fail(w, r, badRequest("invalid limit %q", values[0]))
				return
			}
			result = result.Limit(n)
		case k == "order":
			for _, f := range values {
				desc := strings.HasPrefix(f, "-")
				f = strings.TrimPrefix(f, "-")
				if !h.fields[f] {
					h.fail(w, r, badRequest("cannot order by unknown field %q", f))
					return
				}
				if desc {
					result = result.OrderAppend(depository.Desc(f))
				} else {
					result = result.OrderAppend(depository.Asc(f))
				}
			}
		case !h.fields[k]:
			h.fail(w, r, badRequest("unknown field %q", k))
			return
		case len(values) == 1:
			result = result.Where(depository.Eq{k: values[0]})
		default:
			result = result.Where(depository.Eq{k: values})
		}
	}

	records, err := result.Records(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]depository.Row, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Attributes())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *recordHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.repo.Find(r.Context(), parseKey(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Attributes())
}

func (h *recordHandler) update(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.repo.Update(r.Context(), parseKey(chi.URLParam(r, "id")), func(rec depository.Record) error {
		for k, v := range body {
			if k == h.pk {
				continue
			}
			rec.Set(k, v)
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Attributes())
}

func (h *recordHandler) remove(w http.ResponseWriter, r *http.Request) {
	key := parseKey(chi.URLParam(r, "id"))
	if _, err := h.repo.Find(r.Context(), key); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.repo.Delete(r.Context(), key); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON object whose keys are all model fields. Numbers stay
// json.Number so integer columns coerce them exactly.
func (h *recordHandler) decode(r *http.Request) (depository.Row, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, badRequest("invalid JSON: %v", err)
	}

	var unknown []string
	for k := range body {
		if !h.fields[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, badRequest("unknown field(s) %s", strings.Join(unknown, ", "))
	}
	return depository.Row(body), nil
}

func (h *recordHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, depository.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, depository.ErrCoercion),
		errors.Is(err, depository.ErrUnknownConversionType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseKey treats numeric path segments as integer keys.
func parseKey(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
