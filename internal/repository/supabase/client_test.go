package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nedpals/supabase-go"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Range  string
}

// restServer answers PostgREST calls from a queue of canned bodies
type restServer struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses []any
}

func (s *restServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Range:  r.Header.Get("Range"),
	})

	var body any = []any{}
	if len(s.responses) > 0 {
		body, s.responses = s.responses[0], s.responses[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newRestClient(t *testing.T, responses ...any) (*supabase.Client, *restServer) {
	t.Helper()
	rs := &restServer{responses: responses}
	srv := httptest.NewServer(rs)
	t.Cleanup(srv.Close)
	return supabase.CreateClient(srv.URL, "service-key"), rs
}

func TestHistoryListPushesOrderAndLimit(t *testing.T) {
	rows := []statushistory.History{
		{ID: "psh_2", PackageID: "pkg_1", ToStatus: types.PackageStatusInTransit},
		{ID: "psh_1", PackageID: "pkg_1", ToStatus: types.PackageStatusHandedOver},
	}
	client, rs := newRestClient(t, rows)
	repo := NewStatusHistoryRepository(client, logger.NewNoopLogger())

	got, err := repo.ListByPackage(context.Background(), types.NewHistoryFilter("pkg_1", 2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "psh_2", got[0].ID)

	require.Len(t, rs.requests, 1)
	req := rs.requests[0]
	assert.Equal(t, "/rest/v1/"+tableHistory, req.Path)
	assert.Equal(t, "eq.pkg_1", req.Query.Get("package_id"))
	assert.Equal(t, "created_at.desc,id.desc", req.Query.Get("order"))
	assert.Equal(t, "0-1", req.Range)
}

func TestPackageListPushesFilters(t *testing.T) {
	client, rs := newRestClient(t)
	repo := NewPackageRepository(client, logger.NewNoopLogger())

	filter := types.NewPackageFilter()
	filter.Statuses = []types.PackageStatus{types.PackageStatusInTransit, types.PackageStatusDelivered}
	filter.ShortCodes = []string{"ABC123"}
	filter.Sort = lo.ToPtr("short_code")
	filter.Order = lo.ToPtr(types.OrderAsc)
	filter.Limit = lo.ToPtr(10)
	filter.Offset = lo.ToPtr(20)

	got, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.Len(t, rs.requests, 1)
	req := rs.requests[0]
	assert.Equal(t, "in.(in_transit,delivered)", req.Query.Get("status"))
	assert.Equal(t, "in.(ABC123)", req.Query.Get("short_code"))
	assert.Equal(t, "short_code.asc,id.asc", req.Query.Get("order"))
	assert.Equal(t, "20-29", req.Range)
}

func TestMatchAny(t *testing.T) {
	client, rs := newRestClient(t)
	repo := NewInventoryRepository(client, logger.NewNoopLogger())

	filter := types.NewInventoryItemFilter()
	filter.Search = " box (large) "
	_, err := repo.ListItems(context.Background(), filter)
	require.NoError(t, err)

	require.Len(t, rs.requests, 1)
	assert.Equal(t, "(name.ilike.*box*large*,sku.ilike.*box*large*)", rs.requests[0].Query.Get("or"))
	assert.Equal(t, fmt.Sprintf("0-%d", types.FILTER_DEFAULT_LIMIT-1), rs.requests[0].Range)
}

func TestUpdateStatusWinsOnReturnedRow(t *testing.T) {
	id := uuid.NewString()
	current := parcel.Package{ID: id, ShortCode: "ABC123", Status: types.PackageStatusHandedOver, Version: 3}
	updated := current
	updated.Status = types.PackageStatusInTransit
	updated.Version = 4

	client, rs := newRestClient(t, []parcel.Package{current}, []parcel.Package{updated})
	repo := NewPackageRepository(client, logger.NewNoopLogger())

	got, err := repo.UpdateStatus(context.Background(), &parcel.StatusUpdate{
		ID:        id,
		From:      types.PackageStatusHandedOver,
		To:        types.PackageStatusInTransit,
		UpdatedBy: "user_1",
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, types.PackageStatusInTransit, got.Status)
	assert.Equal(t, 4, got.Version)

	// no re-read after the PATCH
	require.Len(t, rs.requests, 2)
	patch := rs.requests[1]
	assert.Equal(t, http.MethodPatch, patch.Method)
	assert.Equal(t, "eq.handed_over", patch.Query.Get("status"))
	assert.Equal(t, "eq.3", patch.Query.Get("version"))
}

func TestUpdateStatusConflictWhenNoRowChanged(t *testing.T) {
	id := uuid.NewString()
	current := parcel.Package{ID: id, ShortCode: "ABC123", Status: types.PackageStatusHandedOver, Version: 3}
	winner := current
	winner.Status = types.PackageStatusReturned
	winner.Version = 4

	client, _ := newRestClient(t, []parcel.Package{current}, []parcel.Package{}, []parcel.Package{winner})
	repo := NewPackageRepository(client, logger.NewNoopLogger())

	_, err := repo.UpdateStatus(context.Background(), &parcel.StatusUpdate{
		ID:        id,
		From:      types.PackageStatusHandedOver,
		To:        types.PackageStatusInTransit,
		UpdatedAt: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, ierr.IsVersionConflict(err))
	assert.Equal(t, "Package ABC123 was changed to returned by someone else", ierr.Hint(err))
}

func TestWrapError(t *testing.T) {
	dup := wrapError(fmt.Errorf(`duplicate key value violates unique constraint "packages_short_code_key" (23505)`), "failed", nil)
	assert.True(t, ierr.IsAlreadyExists(dup))

	netErr := wrapError(&net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}, "failed", nil)
	assert.True(t, ierr.IsUnavailable(netErr))

	other := wrapError(fmt.Errorf("permission denied for table packages"), "failed", nil)
	assert.True(t, ierr.IsDatabase(other))
}
