package publisher_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/testutil"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishStatusChanged(t *testing.T) {
	ps := testutil.NewInMemoryPubSub()
	p := publisher.NewEventPublisher(ps, logger.NewNoopLogger())

	event := &publisher.StatusChangedEvent{
		PackageID:  "pkg_1",
		ShortCode:  "ABC123",
		FromStatus: types.PackageStatusPrinted,
		ToStatus:   types.PackageStatusHandedOver,
		Mode:       types.ScanModeSingle,
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, p.PublishStatusChanged(testutil.SetupContext(), event))
	require.NotEmpty(t, event.EventID)

	msgs := ps.GetMessages(types.TopicPackageStatusEvent)
	require.Len(t, msgs, 1)
	assert.Equal(t, event.EventID, msgs[0].UUID)
	assert.Equal(t, "pkg_1", msgs[0].Metadata.Get("package_id"))
	assert.Equal(t, "handed_over", msgs[0].Metadata.Get("to_status"))

	var decoded publisher.StatusChangedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &decoded))
	assert.Equal(t, "ABC123", decoded.ShortCode)
}

func TestPublishKeepsGivenEventID(t *testing.T) {
	ps := testutil.NewInMemoryPubSub()
	p := publisher.NewEventPublisher(ps, logger.NewNoopLogger())

	event := &publisher.StatusChangedEvent{EventID: "evt_fixed", PackageID: "pkg_1", ToStatus: types.PackageStatusDelivered}
	require.NoError(t, p.PublishStatusChanged(testutil.SetupContext(), event))
	assert.Equal(t, "evt_fixed", ps.GetMessages(types.TopicPackageStatusEvent)[0].UUID)
}

func TestPublishFailureIsReturned(t *testing.T) {
	ps := testutil.NewInMemoryPubSub()
	ps.FailPublish(testutil.ErrBackendDown())
	p := publisher.NewEventPublisher(ps, logger.NewNoopLogger())

	err := p.PublishStatusChanged(testutil.SetupContext(), &publisher.StatusChangedEvent{PackageID: "pkg_1"})
	assert.Error(t, err)
}
