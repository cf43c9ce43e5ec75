package types

import (
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/samber/lo"
)

// PackageStatus is the lifecycle label of a package
type PackageStatus string

const (
	PackageStatusJustCreated    PackageStatus = "just_created"
	PackageStatusCreated        PackageStatus = "created"
	PackageStatusQueuedForPrint PackageStatus = "queued_for_print"
	PackageStatusPrinted        PackageStatus = "printed"
	PackageStatusHandedOver     PackageStatus = "handed_over"
	PackageStatusInTransit      PackageStatus = "in_transit"
	PackageStatusAtBranch       PackageStatus = "at_branch"
	PackageStatusDelivered      PackageStatus = "delivered"
	PackageStatusReturned       PackageStatus = "returned"
	PackageStatusCanceled       PackageStatus = "canceled"
)

// PackageStatuses lists every status in lifecycle order.
var PackageStatuses = []PackageStatus{
	PackageStatusJustCreated,
	PackageStatusCreated,
	PackageStatusQueuedForPrint,
	PackageStatusPrinted,
	PackageStatusHandedOver,
	PackageStatusInTransit,
	PackageStatusAtBranch,
	PackageStatusDelivered,
	PackageStatusReturned,
	PackageStatusCanceled,
}

// packageStatusTransitions is the allowed-transitions table. Statuses that
// are not keys are terminal.
var packageStatusTransitions = map[PackageStatus][]PackageStatus{
	PackageStatusJustCreated: {
		PackageStatusCreated,
		PackageStatusQueuedForPrint,
		PackageStatusCanceled,
	},
	PackageStatusCreated: {
		PackageStatusQueuedForPrint,
		PackageStatusPrinted,
		PackageStatusHandedOver,
		PackageStatusCanceled,
	},
	PackageStatusQueuedForPrint: {
		PackageStatusCreated,
		PackageStatusPrinted,
		PackageStatusCanceled,
	},
	PackageStatusPrinted: {
		PackageStatusQueuedForPrint,
		PackageStatusHandedOver,
		PackageStatusCanceled,
	},
	PackageStatusHandedOver: {
		PackageStatusInTransit,
		PackageStatusAtBranch,
		PackageStatusReturned,
		PackageStatusCanceled,
	},
	PackageStatusInTransit: {
		PackageStatusAtBranch,
		PackageStatusDelivered,
		PackageStatusReturned,
	},
	PackageStatusAtBranch: {
		PackageStatusInTransit,
		PackageStatusDelivered,
		PackageStatusReturned,
	},
	PackageStatusDelivered: {
		PackageStatusReturned,
	},
}

func (s PackageStatus) String() string {
	return string(s)
}

func (s PackageStatus) Validate() error {
	if !lo.Contains(PackageStatuses, s) {
		return ierr.NewErrorf("invalid package status %q", s).
			WithHintf("Unknown package status %q", s).
			WithReportableDetails(map[string]any{
				"status":  s,
				"allowed": PackageStatuses,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NextStatuses returns the statuses a package may move to from s.
func (s PackageStatus) NextStatuses() []PackageStatus {
	return append([]PackageStatus(nil), packageStatusTransitions[s]...)
}

func (s PackageStatus) CanTransitionTo(to PackageStatus) bool {
	return lo.Contains(packageStatusTransitions[s], to)
}

func (s PackageStatus) IsTerminal() bool {
	_, ok := packageStatusTransitions[s]
	return !ok
}

// ValidateTransition checks that a package in status s may move to to.
func (s PackageStatus) ValidateTransition(to PackageStatus) error {
	if err := to.Validate(); err != nil {
		return err
	}
	if s == to {
		return ierr.NewErrorf("package already in status %s", to).
			WithHintf("Package is already %s", to).
			Mark(ierr.ErrInvalidOperation)
	}
	if !s.CanTransitionTo(to) {
		return ierr.NewErrorf("transition %s -> %s is not allowed", s, to).
			WithHintf("A package in status %s cannot be moved to %s", s, to).
			WithReportableDetails(map[string]any{
				"from":    s,
				"to":      to,
				"allowed": s.NextStatuses(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// StatusTransition describes one row of the transition table.
type StatusTransition struct {
	From PackageStatus   `json:"from"`
	To   []PackageStatus `json:"to"`
}

// StatusTransitions returns the whole transition table in lifecycle order.
func StatusTransitions() []StatusTransition {
	return lo.Map(PackageStatuses, func(s PackageStatus, _ int) StatusTransition {
		return StatusTransition{From: s, To: s.NextStatuses()}
	})
}
