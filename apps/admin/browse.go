package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/peterh/liner"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/client/apiclient"
	"github.com/trezcool/sdoims/client/listcache"
	"github.com/trezcool/sdoims/core/opcr"
	"github.com/trezcool/sdoims/core/resource"
	"github.com/trezcool/sdoims/core/ticket"
)

// browsable maps the resources the browser can list to their path; the ones with a realtime channel are followed.
var browsable = map[string]struct{ path, channel string }{
	"divisions":         {path: "/v1/divisions"},
	"districts":         {path: "/v1/districts"},
	"schools":           {path: "/v1/schools"},
	"permissions":       {path: "/v1/permissions"},
	"roles":             {path: "/v1/roles"},
	"users":             {path: "/v1/users"},
	"ticket-categories": {path: "/v1/ticket-categories"},
	"tickets":           {path: "/v1/tickets", channel: ticket.Channel},
	"dcp-batches":       {path: "/v1/dcp-batches"},
	"dcp-items":         {path: "/v1/dcp-items"},
	"dcp-recipients":    {path: "/v1/dcp-recipients"},
	"opcrs":             {path: "/v1/opcrs", channel: opcr.Channel},
	"sbm-checklists":    {path: "/v1/sbm-checklists"},
	"sbm-indicators":    {path: "/v1/sbm-indicators"},
}

// row is any listed record, kept as decoded JSON.
type row map[string]interface{}

func (r row) GetID() int64 {
	id, _ := r["id"].(float64)
	return int64(id)
}

// label picks the field that names the record best.
func (r row) label() string {
	for _, key := range []string{"name", "title", "email", "code", "contact_person"} {
		if v, ok := r[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// browser renders one resource list and keeps it current.
type browser struct {
	name  string
	cache *listcache.Cache[row]
	sub   *apiclient.Subscription

	mu  sync.Mutex // guards out
	out io.Writer
}

func newBrowser(ctx context.Context, client *apiclient.Client, name string, out io.Writer, debounce time.Duration) (*browser, error) {
	target, ok := browsable[name]
	if !ok {
		return nil, errors.Errorf("unknown resource %q, one of: %s", name, strings.Join(browsableNames(), ", "))
	}

	q := resource.Query{Page: 1}
	first, err := apiclient.List[row](ctx, client, target.path, q)
	if err != nil {
		return nil, err
	}

	b := &browser{name: name, out: out}
	b.cache = listcache.New(first, q, apiclient.Fetcher[row](client, target.path), listcache.Options[row]{
		Debounce: debounce,
		OnChange: b.render,
		OnError: func(err error) {
			b.printf("error: %v\n", err)
		},
	})

	if target.channel != "" {
		if b.sub, err = client.Subscribe(ctx, target.channel); err != nil {
			b.printf("live updates unavailable: %v\n", err)
		} else {
			go apiclient.Follow(ctx, b.sub, b.cache)
		}
	}

	b.render(first)
	return b, nil
}

func (b *browser) close() {
	b.cache.Close()
	if b.sub != nil {
		_ = b.sub.Close()
	}
}

func (b *browser) printf(format string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}

func (b *browser) render(page resource.Page[row]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.cache.Query()
	fmt.Fprintf(b.out, "\n%s", b.name)
	if q.Search != "" {
		fmt.Fprintf(b.out, " matching %q", q.Search)
	}
	fmt.Fprintln(b.out)

	w := tabwriter.NewWriter(b.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUPDATED")
	for _, r := range page.Data {
		updated, _ := r["updated_at"].(string)
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.GetID(), r.label(), updated)
	}
	_ = w.Flush()
	fmt.Fprintf(b.out, "%d-%d of %d, page %d of %d\n", page.From, page.To, page.Total, page.CurrentPage, page.LastPage)
}

// exec runs one REPL command and reports whether the browser should stop.
func (b *browser) exec(line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "quit", "exit", "q":
		return true
	case "help", "?":
		b.printf("search TERM | page N | next | prev | refresh | quit\n")
	case "search", "s":
		b.cache.Search(arg)
	case "page", "p":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			b.printf("page takes a positive number\n")
			return false
		}
		b.cache.GoTo(n)
	case "next", "n":
		page := b.cache.Page()
		if page.CurrentPage >= page.LastPage {
			b.printf("already on the last page\n")
			return false
		}
		b.cache.GoTo(page.CurrentPage + 1)
	case "prev":
		page := b.cache.Page()
		if page.CurrentPage <= 1 {
			b.printf("already on the first page\n")
			return false
		}
		b.cache.GoTo(page.CurrentPage - 1)
	case "refresh", "r":
		b.cache.Refresh()
	default:
		b.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (b *browser) completer(line string) []string {
	var out []string
	for _, cmd := range []string{"search ", "page ", "next", "prev", "refresh", "help", "quit"} {
		if strings.HasPrefix(cmd, strings.ToLower(line)) {
			out = append(out, cmd)
		}
	}
	return out
}

func (cli *commandLine) browse(baseURL, email, pwd, name string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := apiclient.New(baseURL, nil)
	if err != nil {
		return err
	}
	if err = client.Login(ctx, email, pwd); err != nil {
		return err
	}
	b, err := newBrowser(ctx, client, name, cli.out, listcache.DefaultDebounce)
	if err != nil {
		return err
	}
	defer b.close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(b.completer)

	history := historyFile()
	if f, err := os.Open(history); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		input, err := line.Prompt(name + "> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "reading input")
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if b.exec(input) {
			return nil
		}
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sdoims_history")
	}
	return filepath.Join(home, ".sdoims_history")
}

func browsableNames() []string {
	names := make([]string, 0, len(browsable))
	for name := range browsable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
