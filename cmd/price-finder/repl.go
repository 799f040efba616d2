package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Checker-Finance/price-finder/internal/history"
	"github.com/Checker-Finance/price-finder/internal/render"
	"github.com/Checker-Finance/price-finder/internal/search"
)

const helpText = `Enter a product number (e.g. 474479) to search.
Commands:
  :history   show recent searches
  :clear     clear the history
  :persist   save the history again
  :help      show this help
  :quit      exit`

type repl struct {
	ctrl  *search.Controller
	store history.Store
	in    *bufio.Scanner
	out   io.Writer
}

func newREPL(ctrl *search.Controller, store history.Store, in io.Reader, out io.Writer) *repl {
	return &repl{ctrl: ctrl, store: store, in: bufio.NewScanner(in), out: out}
}

func (r *repl) run(ctx context.Context) error {
	render.Hint(r.out, "price-finder (%s history). Type :help for commands.", r.store.Mode())
	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(r.in.Text())
		if quit := r.handle(ctx, line); quit {
			return nil
		}
	}
}

// handle executes one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	switch line {
	case ":quit", ":q", ":exit":
		return true
	case ":help":
		render.Hint(r.out, "%s", helpText)
	case ":history":
		_ = render.History(r.out, r.ctrl.History())
	case ":clear":
		if err := r.store.Clear(ctx); err != nil {
			render.Warn(r.out, "History cleared locally, but not saved: %v", err)
			return false
		}
		render.Info(r.out, "History cleared.")
	case ":persist":
		if err := r.store.Persist(ctx); err != nil {
			render.Fail(r.out, "Save failed: %v", err)
			return false
		}
		render.Info(r.out, "History saved.")
	default:
		r.search(ctx, line)
	}
	return false
}

func (r *repl) search(ctx context.Context, query string) {
	if id := strings.TrimSpace(query); id != "" {
		render.Hint(r.out, "Searching %s...", id)
	}
	res, err := r.ctrl.Submit(ctx, query)
	switch {
	case errors.Is(err, search.ErrInvalidInput):
		render.Warn(r.out, "Please enter a product number.")
	case errors.Is(err, search.ErrNotFound):
		render.Warn(r.out, "Product %s not found.", strings.TrimSpace(query))
	case errors.Is(err, search.ErrBusy):
		render.Warn(r.out, "A search is already running.")
	case err != nil:
		render.Fail(r.out, "The catalog is unavailable, please try again.")
	default:
		_ = render.Record(r.out, res.Record)
		if res.PersistErr != nil {
			render.Warn(r.out, "(history not saved; run :persist to retry)")
		}
	}
}
