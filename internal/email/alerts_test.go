package email

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg_1", nil
}

func newTestAlerts(sender Sender) *AlertService {
	cfg := config.GetDefaultConfig()
	cfg.Tracking.Origin = "https://parcels.test"
	cfg.Alerts.Email = config.EmailAlertConfig{
		Enabled:     true,
		APIKey:      "re_test",
		FromAddress: "alerts@parcels.test",
		Recipients:  []string{"ops@parcels.test"},
		Statuses:    []types.PackageStatus{types.PackageStatusReturned},
	}
	return newAlertService(cfg, sender, nil, logger.NewNoopLogger())
}

func eventMessage(t *testing.T, to types.PackageStatus) *message.Message {
	event := publisher.StatusChangedEvent{
		EventID:    "evt_1",
		PackageID:  "pkg_1",
		ShortCode:  "ABC123",
		FromStatus: types.PackageStatusAtBranch,
		ToStatus:   to,
		Location:   lo.ToPtr("Main branch"),
		Mode:       types.ScanModeSingle,
		Forced:     true,
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(event)
	require.NoError(t, err)
	msg := message.NewMessage(event.EventID, b)
	msg.Metadata.Set("to_status", string(to))
	return msg
}

func TestAlertSentForWatchedStatus(t *testing.T) {
	sender := &fakeSender{}
	require.NoError(t, newTestAlerts(sender).ProcessMessage(eventMessage(t, types.PackageStatusReturned)))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ops@parcels.test"}, msg.To)
	assert.Equal(t, "[parcelbase] ABC123 is now returned", msg.Subject)
	assert.Contains(t, msg.Text, "from at_branch to returned (forced by an admin)")
	assert.Contains(t, msg.Text, "Location: Main branch")
	assert.Contains(t, msg.Text, "https://parcels.test/track/ABC123")
}

func TestAlertSkipsOtherStatuses(t *testing.T) {
	sender := &fakeSender{}
	require.NoError(t, newTestAlerts(sender).ProcessMessage(eventMessage(t, types.PackageStatusDelivered)))
	assert.Empty(t, sender.sent)
}

func TestAlertProviderFailureIsRetryable(t *testing.T) {
	sender := &fakeSender{err: ierr.NewError("resend down").Mark(ierr.ErrUnavailable)}
	err := newTestAlerts(sender).ProcessMessage(eventMessage(t, types.PackageStatusReturned))
	require.Error(t, err)
	assert.True(t, ierr.IsUnavailable(err))
}

func TestDisabledClientRefusesToSend(t *testing.T) {
	c := NewClient(config.GetDefaultConfig())
	assert.False(t, c.Enabled())
	_, err := c.Send(context.Background(), Message{To: []string{"ops@parcels.test"}})
	assert.True(t, ierr.IsInvalidOperation(err))
}
