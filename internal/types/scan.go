package types

import (
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/samber/lo"
)

// ScanMode selects how a scan session treats resolved packages
type ScanMode string

const (
	// ScanModeSingle shows each package and waits for an explicit status choice
	ScanModeSingle ScanMode = "single"
	// ScanModeBulk applies a preselected status to every resolved package
	ScanModeBulk ScanMode = "bulk"
	// ScanModeManual marks status changes made without a scan
	ScanModeManual ScanMode = "manual"
)

func (m ScanMode) Validate() error {
	allowed := []ScanMode{ScanModeSingle, ScanModeBulk}
	if !lo.Contains(allowed, m) {
		return ierr.NewErrorf("invalid scan mode %q", m).
			WithHint("Scan mode must be single or bulk").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SessionState is the screen a scan session is currently showing
type SessionState string

const (
	SessionStateIdleScanning  SessionState = "idle_scanning"
	SessionStateLoadingLookup SessionState = "loading_lookup"
	SessionStateNotFound      SessionState = "not_found"
	SessionStatePackageDetail SessionState = "package_detail"
	SessionStateStatusPicker  SessionState = "status_picker"
	SessionStateClosed        SessionState = "closed"
)

// CameraWanted reports whether the camera should run while in state s.
func (s SessionState) CameraWanted() bool {
	return s == SessionStateIdleScanning
}

// DecodeOutcome tells the caller what happened to a decoded frame
type DecodeOutcome string

const (
	DecodeOutcomeAccepted  DecodeOutcome = "accepted"
	DecodeOutcomeIgnored   DecodeOutcome = "ignored"
	DecodeOutcomeDuplicate DecodeOutcome = "duplicate"
	DecodeOutcomeBusy      DecodeOutcome = "busy"
	DecodeOutcomeBlocked   DecodeOutcome = "blocked"
	DecodeOutcomeClosed    DecodeOutcome = "closed"
)

type NotificationLevel string

const (
	NotificationLevelInfo    NotificationLevel = "info"
	NotificationLevelSuccess NotificationLevel = "success"
	NotificationLevelWarning NotificationLevel = "warning"
	NotificationLevelError   NotificationLevel = "error"
)

// BulkResultStatus tags one entry of the bulk results list
type BulkResultStatus string

const (
	BulkResultSuccess BulkResultStatus = "success"
	BulkResultPartial BulkResultStatus = "audit_incomplete"
	BulkResultFailure BulkResultStatus = "failure"
)

// CameraFacingEnvironment is the rear camera on phones.
const CameraFacingEnvironment = "environment"
