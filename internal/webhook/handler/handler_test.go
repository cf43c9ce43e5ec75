package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/httpclient"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/svix"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/webhook/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiver struct {
	mu      sync.Mutex
	status  int
	bodies  []payload.Envelope
	eventID []string
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, _ := io.ReadAll(req.Body)
	var env payload.Envelope
	_ = json.Unmarshal(b, &env)
	r.bodies = append(r.bodies, env)
	r.eventID = append(r.eventID, req.Header.Get(HeaderEventID))
	w.WriteHeader(r.status)
}

func newHandler(t *testing.T, endpoints ...config.WebhookEndpoint) Handler {
	cfg := config.GetDefaultConfig()
	cfg.Tracking.Origin = "https://parcels.test"
	cfg.Webhook.Enabled = true
	cfg.Webhook.MaxRetries = 0
	cfg.Webhook.Endpoints = endpoints

	svixClient, err := svix.NewClient(cfg)
	require.NoError(t, err)
	require.False(t, svixClient.Enabled())

	return NewHandler(nil, cfg, payload.NewPayloadBuilderFactory(cfg),
		httpclient.NewDefaultClient(cfg), logger.NewNoopLogger(), svixClient)
}

func statusMessage(t *testing.T, to types.PackageStatus) *message.Message {
	event := publisher.StatusChangedEvent{
		EventID:    "evt_1",
		PackageID:  "pkg_1",
		ShortCode:  "ABC123",
		FromStatus: types.PackageStatusHandedOver,
		ToStatus:   to,
		Mode:       types.ScanModeBulk,
		ActorID:    "usr_secret_actor",
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(event)
	require.NoError(t, err)
	msg := message.NewMessage(event.EventID, b)
	msg.Metadata.Set("to_status", string(to))
	return msg
}

func TestProcessMessageDeliversToSubscribedEndpoints(t *testing.T) {
	all := &receiver{status: http.StatusOK}
	branch := &receiver{status: http.StatusOK}
	allSrv := httptest.NewServer(all)
	defer allSrv.Close()
	branchSrv := httptest.NewServer(branch)
	defer branchSrv.Close()

	h := newHandler(t,
		config.WebhookEndpoint{Name: "all", URL: allSrv.URL},
		config.WebhookEndpoint{Name: "branch", URL: branchSrv.URL, Statuses: []types.PackageStatus{types.PackageStatusAtBranch}},
	)

	require.NoError(t, h.ProcessMessage(statusMessage(t, types.PackageStatusInTransit)))

	require.Len(t, all.bodies, 1)
	assert.Empty(t, branch.bodies)
	assert.Equal(t, "evt_1", all.eventID[0])
	assert.Equal(t, types.TopicPackageStatusEvent, all.bodies[0].EventType)

	data, ok := all.bodies[0].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://parcels.test/track/ABC123", data["tracking_url"])
	assert.Equal(t, "in_transit", data["to_status"])
	assert.NotContains(t, data, "actor_id")
}

func TestProcessMessageFailureClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"server error is retried", http.StatusServiceUnavailable, true},
		{"client error is dropped", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recv := &receiver{status: tt.status}
			srv := httptest.NewServer(recv)
			defer srv.Close()

			err := newHandler(t, config.WebhookEndpoint{Name: "r", URL: srv.URL}).
				ProcessMessage(statusMessage(t, types.PackageStatusDelivered))
			require.Error(t, err)
			assert.Equal(t, tt.retryable, ierr.IsUnavailable(err))
		})
	}
}

func TestProcessMessageDropsMalformedEvents(t *testing.T) {
	recv := &receiver{status: http.StatusOK}
	srv := httptest.NewServer(recv)
	defer srv.Close()

	msg := message.NewMessage("evt_bad", []byte(`{"event_id":"evt_bad"}`))
	err := newHandler(t, config.WebhookEndpoint{Name: "r", URL: srv.URL}).ProcessMessage(msg)
	assert.NoError(t, err)
	assert.Empty(t, recv.bodies)
}
