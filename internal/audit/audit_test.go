package audit_test

import (
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/audit"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/testutil"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type AuditSuite struct {
	suite.Suite
	pubsub   *testutil.InMemoryPubSub
	history  *testutil.InMemoryHistoryStore
	scans    *testutil.InMemoryScanStore
	enqueuer audit.Enqueuer
	consumer *audit.Consumer
}

func TestAudit(t *testing.T) {
	suite.Run(t, new(AuditSuite))
}

func (s *AuditSuite) SetupTest() {
	log := logger.NewNoopLogger()
	s.pubsub = testutil.NewInMemoryPubSub()
	s.history = testutil.NewInMemoryHistoryStore()
	s.scans = testutil.NewInMemoryScanStore()
	s.enqueuer = audit.NewRetryPublisher(s.pubsub, log)
	s.consumer = audit.NewConsumer(s.history, s.scans, s.pubsub, log)
}

func (s *AuditSuite) historyRecord() *audit.Record {
	ctx := testutil.SetupContext()
	return &audit.Record{
		Kind: types.AuditRecordStatusHistory,
		History: statushistory.New(ctx, "pkg_1",
			lo.ToPtr(types.PackageStatusHandedOver), types.PackageStatusInTransit, nil, nil),
	}
}

func (s *AuditSuite) TestEnqueuePublishesRecord() {
	record := s.historyRecord()
	s.Require().NoError(s.enqueuer.Enqueue(testutil.SetupContext(), record))

	msgs := s.pubsub.GetMessages(types.TopicAuditRetry)
	s.Require().Len(msgs, 1)
	s.Equal("pkg_1", msgs[0].Metadata.Get("package_id"))
	s.Equal(string(types.AuditRecordStatusHistory), msgs[0].Metadata.Get("kind"))
	s.NotEmpty(msgs[0].Metadata.Get("request_id"))
}

func (s *AuditSuite) TestEnqueueRejectsEmptyRecord() {
	err := s.enqueuer.Enqueue(testutil.SetupContext(), &audit.Record{Kind: types.AuditRecordScan})
	s.True(ierr.IsValidation(err))
	s.Empty(s.pubsub.GetMessages(types.TopicAuditRetry))
}

func (s *AuditSuite) TestEnqueueFailsWhenPublishFails() {
	s.pubsub.FailPublish(testutil.ErrBackendDown())
	err := s.enqueuer.Enqueue(testutil.SetupContext(), s.historyRecord())
	s.Error(err)
}

func (s *AuditSuite) TestReplayIsIdempotent() {
	record := s.historyRecord()
	s.Require().NoError(s.enqueuer.Enqueue(testutil.SetupContext(), record))
	msg := s.pubsub.GetMessages(types.TopicAuditRetry)[0]

	s.Require().NoError(s.consumer.Handle(msg))
	s.Require().NoError(s.consumer.Handle(msg))

	s.Equal([]string{"create", "create"}, s.history.Calls())
	stored, err := s.history.Get(testutil.SetupContext(), record.History.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusInTransit, stored.ToStatus)
}

func (s *AuditSuite) TestReplayScanRecord() {
	ctx := testutil.SetupContext()
	scan := scanlog.New(ctx, "pkg_1", "ABC123", nil, types.ScanModeBulk)
	payload, err := json.Marshal(audit.Record{Kind: types.AuditRecordScan, Scan: scan})
	s.Require().NoError(err)

	s.Require().NoError(s.consumer.Handle(message.NewMessage("m1", payload)))
	_, err = s.scans.Get(ctx, scan.ID)
	s.NoError(err)
}

func (s *AuditSuite) TestReplayFailureIsReturned() {
	s.history.FailNext("create", testutil.ErrBackendDown())
	payload, err := json.Marshal(s.historyRecord())
	s.Require().NoError(err)

	err = s.consumer.Handle(message.NewMessage("m1", payload))
	s.True(ierr.IsUnavailable(err))
}

func (s *AuditSuite) TestMalformedPayloadIsValidationError() {
	err := s.consumer.Handle(message.NewMessage("m1", []byte("not json")))
	s.True(ierr.IsValidation(err))
}
