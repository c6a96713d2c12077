// internal/models/entity.go
package models

import (
	"strings"
	"time"
)

// SystemType identifies one of the backing systems of record.
type SystemType string

const (
	SystemERP SystemType = "erp"
	SystemHR  SystemType = "hr"
	SystemFIN SystemType = "fin"
)

// AllSystems lists the supported systems in their canonical order.
var AllSystems = []SystemType{SystemERP, SystemHR, SystemFIN}

// ParseSystem returns the system for a trimmed, lower-cased name.
func ParseSystem(name string) (SystemType, bool) {
	s := SystemType(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllSystems {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// EntityType is one of the four canonical collections.
type EntityType string

const (
	EntityOrganizations EntityType = "organizations"
	EntityPersons       EntityType = "persons"
	EntityCustomers     EntityType = "customers"
	EntityTransactions  EntityType = "transactions"
)

var AllEntityTypes = []EntityType{EntityOrganizations, EntityPersons, EntityCustomers, EntityTransactions}

func ParseEntityType(name string) (EntityType, bool) {
	e := EntityType(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllEntityTypes {
		if e == known {
			return e, true
		}
	}
	return "", false
}

// Keyed is implemented by every canonical entity. An empty key means the
// entity has no identity and is never deduplicated.
type Keyed interface {
	PrimaryKey() string
}

type Organization struct {
	OrgID        string     `json:"org_id"`
	OrgName      string     `json:"org_name"`
	OrgType      string     `json:"org_type,omitempty"`
	ParentOrgID  string     `json:"parent_org_id,omitempty"`
	OrgCode      string     `json:"org_code,omitempty"`
	ManagerName  string     `json:"manager_name,omitempty"`
	ContactInfo  string     `json:"contact_info,omitempty"`
	Address      string     `json:"address,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	SourceSystem SystemType `json:"source_system"`
}

func (o Organization) PrimaryKey() string { return o.OrgID }

type Person struct {
	PersonID       string     `json:"person_id"`
	PersonName     string     `json:"person_name"`
	EmployeeNumber string     `json:"employee_number,omitempty"`
	OrgID          string     `json:"org_id,omitempty"`
	Position       string     `json:"position,omitempty"`
	Department     string     `json:"department,omitempty"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	HireDate       *time.Time `json:"hire_date,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	SourceSystem   SystemType `json:"source_system"`
}

func (p Person) PrimaryKey() string { return p.PersonID }

type Customer struct {
	CustomerID    string     `json:"customer_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerCode  string     `json:"customer_code,omitempty"`
	CustomerType  string     `json:"customer_type,omitempty"`
	TaxNum        string     `json:"tax_num,omitempty"`
	Industry      string     `json:"industry,omitempty"`
	ContactPerson string     `json:"contact_person,omitempty"`
	ContactPhone  string     `json:"contact_phone,omitempty"`
	ContactEmail  string     `json:"contact_email,omitempty"`
	Address       string     `json:"address,omitempty"`
	CreditLevel   string     `json:"credit_level,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	SourceSystem  SystemType `json:"source_system"`
}

func (c Customer) PrimaryKey() string { return c.CustomerID }

type Transaction struct {
	TxID              string     `json:"tx_id"`
	TransactionNumber string     `json:"transaction_number,omitempty"`
	TxType            string     `json:"tx_type"`
	Amount            float64    `json:"amount"`
	Currency          string     `json:"currency"`
	TxDate            *time.Time `json:"tx_date,omitempty"`
	CustomerID        string     `json:"customer_id,omitempty"`
	PersonID          string     `json:"person_id,omitempty"`
	OrgID             string     `json:"org_id,omitempty"`
	Description       string     `json:"description,omitempty"`
	ProductInfo       string     `json:"product_info,omitempty"`
	PaymentMethod     string     `json:"payment_method,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	SourceSystem      SystemType `json:"source_system"`
}

func (t Transaction) PrimaryKey() string { return t.TxID }

// EntityBundle is what a single source returns for one filter.
type EntityBundle struct {
	Organizations []Organization `json:"organizations"`
	Persons       []Person       `json:"persons"`
	Customers     []Customer     `json:"customers"`
	Transactions  []Transaction  `json:"transactions"`
}

// NewEntityBundle returns a bundle whose collections are empty, never nil.
func NewEntityBundle() *EntityBundle {
	return &EntityBundle{
		Organizations: []Organization{},
		Persons:       []Person{},
		Customers:     []Customer{},
		Transactions:  []Transaction{},
	}
}

// Counts returns the per-entity-type sizes of the bundle.
func (b *EntityBundle) Counts() map[EntityType]int {
	return map[EntityType]int{
		EntityOrganizations: len(b.Organizations),
		EntityPersons:       len(b.Persons),
		EntityCustomers:     len(b.Customers),
		EntityTransactions:  len(b.Transactions),
	}
}

// ZeroCounts is the counts record of a failed or timed-out source.
func ZeroCounts() map[EntityType]int {
	return map[EntityType]int{
		EntityOrganizations: 0,
		EntityPersons:       0,
		EntityCustomers:     0,
		EntityTransactions:  0,
	}
}

// Dedup removes repeated primary keys keeping the first occurrence. Items
// with an empty key are always kept.
func Dedup[T Keyed](items []T) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key := item.PrimaryKey()
		if key == "" {
			out = append(out, item)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Truncate caps a slice at limit when limit is positive.
func Truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
