package types

// PubSubType defines the type of pubsub implementation
type PubSubType string

const (
	// MemoryPubSub uses the in-process gochannel implementation
	MemoryPubSub PubSubType = "memory"
	// KafkaPubSub shares events between server instances through kafka
	KafkaPubSub PubSubType = "kafka"
)

const (
	TopicAuditRetry         = "audit.retry"
	TopicPoison             = "events.poison"
	TopicPackageStatusEvent = "package.status_changed"
)

// AuditRecordKind names the trailing write an audit retry carries
type AuditRecordKind string

const (
	AuditRecordStatusHistory AuditRecordKind = "status_history"
	AuditRecordScan          AuditRecordKind = "scan"
)
