package types

// MovementReason explains a stock change in the inventory ledger
type MovementReason string

const (
	MovementReasonPackageCreated MovementReason = "package_created"
	MovementReasonAdjustment     MovementReason = "adjustment"
	MovementReasonRestock        MovementReason = "restock"
	MovementReasonCompensation   MovementReason = "compensation"
)

type InventoryItemFilter struct {
	*QueryFilter

	SKUs   []string `json:"skus,omitempty" form:"skus"`
	Search string   `json:"search,omitempty" form:"search"`
}

func NewInventoryItemFilter() *InventoryItemFilter {
	return &InventoryItemFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *InventoryItemFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	return f.QueryFilter.Validate()
}
