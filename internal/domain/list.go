package domain

const (
	SortByName         SortField = "name"
	SortByID           SortField = "id"
	SortByRegisteredAt SortField = "registeredAt"
	SortByProtocol     SortField = "protocol"
)

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortField names a registration attribute that listings can be ordered by.
type SortField string

// SortOrder is the direction of a sorted listing.
type SortOrder string

// ListOptions filters, sorts, and paginates registry listings. Filtering is
// applied first, then sorting, then pagination; the reported total is the
// post-filter, pre-pagination count. Pages are 1-indexed.
type ListOptions struct {
	Enabled   *bool
	Protocol  Protocol
	Tags      []string
	SortBy    SortField
	SortOrder SortOrder
	Page      int
	Limit     int
}
