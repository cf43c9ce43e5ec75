package types

import (
	"github.com/samber/lo"
)

// PackageFilter narrows package listings
type PackageFilter struct {
	*QueryFilter
	*TimeRangeFilter

	Statuses            []PackageStatus `json:"statuses,omitempty" form:"statuses"`
	DestinationBranchID string          `json:"destination_branch_id,omitempty" form:"destination_branch_id"`
	ShortCodes          []string        `json:"short_codes,omitempty" form:"short_codes"`
}

func NewPackageFilter() *PackageFilter {
	return &PackageFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *PackageFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	f.ShortCodes = lo.Compact(f.ShortCodes)
	return nil
}

// HistoryFilter narrows status-history and scan listings of one package
type HistoryFilter struct {
	*QueryFilter

	PackageID string `json:"package_id" form:"-"`
}

func NewHistoryFilter(packageID string, limit int) *HistoryFilter {
	qf := NewDefaultQueryFilter()
	if limit > 0 {
		qf.Limit = lo.ToPtr(limit)
	}
	return &HistoryFilter{QueryFilter: qf, PackageID: packageID}
}

func (f *HistoryFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	return f.QueryFilter.Validate()
}
