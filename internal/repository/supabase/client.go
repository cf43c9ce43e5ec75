package supabase

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"unicode"

	"github.com/nedpals/supabase-go"
	postgrest "github.com/nedpals/supabase-go/postgrest/pkg"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
)

// Table names shared with the postgres backend
const (
	tablePackages   = "packages"
	tableHistory    = "package_status_history"
	tableScans      = "scans"
	tableItems      = "inventory_items"
	tableMovements  = "inventory_movements"
	tableUsers      = "users"
	selectAll       = "*"
	uniqueViolation = "23505"
)

// NewClient creates the PostgREST client for the hosted backend. It returns
// nil when the supabase backend is not selected.
func NewClient(cfg *config.Configuration) (*supabase.Client, error) {
	if cfg.Backend.Type != types.BackendSupabase {
		return nil, nil
	}
	client := supabase.CreateClient(cfg.Supabase.BaseURL, cfg.Supabase.ServiceKey)
	if client == nil {
		return nil, ierr.NewError("failed to create supabase client").
			WithHint("Supabase backend is misconfigured").
			Mark(ierr.ErrSystem)
	}
	return client, nil
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func wrapError(err error, hint string, details map[string]any) error {
	switch {
	case strings.Contains(err.Error(), uniqueViolation) || strings.Contains(err.Error(), "duplicate key"):
		return ierr.WithError(err).
			WithHint("A record with the same key already exists").
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	case isTransient(err):
		return ierr.WithError(err).
			WithHint("The backend is temporarily unavailable, please try again").
			WithReportableDetails(details).
			Mark(ierr.ErrUnavailable)
	default:
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrDatabase)
	}
}

// listRange pushes ordering and paging into the request. Later columns break
// ties on earlier ones in the same direction. It must be called before any
// filter is added, since filters return the narrower builder.
func listRange(sel *postgrest.SelectRequestBuilder, order string, limit, offset int, columns ...string) *postgrest.SelectRequestBuilder {
	dir := types.OrderDesc
	if order == types.OrderAsc {
		dir = types.OrderAsc
	}
	keys := make([]string, len(columns))
	for i, c := range columns {
		keys[i] = c + "." + dir
	}
	// OrderBy appends the direction to the last column itself
	sel.OrderBy(strings.TrimSuffix(strings.Join(keys, ","), "."+dir), dir)

	switch {
	case limit > 0:
		sel.LimitWithOffset(limit, offset)
	case offset > 0:
		sel.LimitWithOffset(types.FILTER_MAX_LIMIT, offset)
	}
	return sel
}

// matchAny adds a case-insensitive substring match on any of columns.
// postgrest-go has no helper for or=(...), so the group is written through
// Filter with the opening parenthesis folded into the operator.
func matchAny(q *postgrest.FilterRequestBuilder, needle string, columns ...string) *postgrest.FilterRequestBuilder {
	// the query string goes out unescaped, so whitespace becomes a wildcard
	needle = strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(",.:()*\"&#+%", r):
			return -1
		case unicode.IsSpace(r):
			return '*'
		}
		return r
	}, strings.Join(strings.Fields(needle), " "))
	if needle == "" || len(columns) == 0 {
		return q
	}
	conds := make([]string, len(columns))
	for i, c := range columns {
		conds[i] = c + ".ilike.*" + needle + "*"
	}
	first := strings.SplitN(conds[0], ".", 2)
	rest := append([]string{first[1]}, conds[1:]...)
	return q.Filter("or", "("+first[0], strings.Join(rest, ",")+")")
}
