// internal/sources/filter.go
package sources

import (
	"time"

	"ucap-workers/internal/models"
)

type dateRange struct {
	from, to *time.Time
}

// parseRange reads the filter bounds. Any unparsable bound disables date
// filtering altogether.
func parseRange(filter models.FilterSpec, loc *time.Location) (dateRange, bool) {
	var r dateRange
	if filter.DateFrom == "" && filter.DateTo == "" {
		return r, false
	}
	if filter.DateFrom != "" {
		t, ok := models.ParseBound(filter.DateFrom, loc)
		if !ok {
			return dateRange{}, false
		}
		r.from = &t
	}
	if filter.DateTo != "" {
		t, ok := models.ParseBound(filter.DateTo, loc)
		if !ok {
			return dateRange{}, false
		}
		r.to = &t
	}
	return r, true
}

func (r dateRange) contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	if r.from != nil && t.Before(*r.from) {
		return false
	}
	if r.to != nil && t.After(*r.to) {
		return false
	}
	return true
}

func filterByDate[T any](items []T, r dateRange, date func(T) *time.Time) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if r.contains(date(item)) {
			out = append(out, item)
		}
	}
	return out
}

func copyOf[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// ApplyFilter returns a filtered copy of bundle. The input is never modified
// since it may be shared through the cache.
func ApplyFilter(bundle *models.EntityBundle, filter models.FilterSpec, loc *time.Location) *models.EntityBundle {
	out := models.NewEntityBundle()
	if bundle == nil {
		return out
	}

	out.Organizations = copyOf(bundle.Organizations)
	out.Persons = copyOf(bundle.Persons)
	out.Customers = copyOf(bundle.Customers)
	out.Transactions = copyOf(bundle.Transactions)

	switch filter.EntityType {
	case models.EntityOrganizations:
		out.Persons, out.Customers, out.Transactions = []models.Person{}, []models.Customer{}, []models.Transaction{}
	case models.EntityPersons:
		out.Organizations, out.Customers, out.Transactions = []models.Organization{}, []models.Customer{}, []models.Transaction{}
	case models.EntityCustomers:
		out.Organizations, out.Persons, out.Transactions = []models.Organization{}, []models.Person{}, []models.Transaction{}
	case models.EntityTransactions:
		out.Organizations, out.Persons, out.Customers = []models.Organization{}, []models.Person{}, []models.Customer{}
	}

	if r, ok := parseRange(filter, loc); ok {
		out.Organizations = filterByDate(out.Organizations, r, func(o models.Organization) *time.Time { return o.CreatedAt })
		out.Persons = filterByDate(out.Persons, r, func(p models.Person) *time.Time { return p.HireDate })
		out.Customers = filterByDate(out.Customers, r, func(c models.Customer) *time.Time { return c.CreatedAt })
		out.Transactions = filterByDate(out.Transactions, r, func(t models.Transaction) *time.Time { return t.TxDate })
	}

	if filter.Limit > 0 {
		out.Organizations = models.Truncate(out.Organizations, filter.Limit)
		out.Persons = models.Truncate(out.Persons, filter.Limit)
		out.Customers = models.Truncate(out.Customers, filter.Limit)
		out.Transactions = models.Truncate(out.Transactions, filter.Limit)
	}

	return out
}
