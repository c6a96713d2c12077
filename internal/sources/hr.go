// internal/sources/hr.go
package sources

import (
	"fmt"
	"time"

	"ucap-workers/internal/models"
)

// MapHR maps hr_* rows. Organization managers are resolved through the
// person table, so persons are indexed first.
func MapHR(raw RawSet, loc *time.Location) (*models.EntityBundle, error) {
	const sys = models.SystemHR
	bundle := models.NewEntityBundle()

	names := make(map[string]string)
	for _, r := range raw[models.EntityPersons] {
		rawID := str(r["hr_person_id"])
		id, err := normalizeID(rawID, sys)
		if err != nil {
			return nil, fmt.Errorf("person: %w", err)
		}
		names[rawID] = str(r["person_name"])

		bundle.Persons = append(bundle.Persons, models.Person{
			PersonID:       id,
			PersonName:     str(r["person_name"]),
			EmployeeNumber: str(r["employee_id"]),
			OrgID:          orgOrUnknown(str(r["department_id"]), sys),
			Position:       str(r["position"]),
			Department:     str(r["department_id"]),
			Email:          validateEmail(r["email"]),
			Phone:          validatePhone(r["phone"]),
			HireDate:       normalizeDate(r["hire_date"], sys, loc),
			Status:         "active",
			CreatedAt:      firstDate(r, sys, loc, "created_time", "hire_date"),
			SourceSystem:   sys,
		})
	}

	for _, r := range raw[models.EntityOrganizations] {
		id, err := normalizeID(str(r["hr_org_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("organization: %w", err)
		}
		name := str(r["org_name"])
		bundle.Organizations = append(bundle.Organizations, models.Organization{
			OrgID:        id,
			OrgName:      name,
			OrgType:      normalizeOrgType(name, name),
			ParentOrgID:  optionalID(str(r["parent_org_id"]), sys),
			ManagerName:  names[str(r["manager_id"])],
			Address:      str(r["location"]),
			Status:       normalizeStatus(r["status"]),
			CreatedAt:    firstDate(r, sys, loc, "establishment_date", "created_time"),
			SourceSystem: sys,
		})
	}

	for _, r := range raw[models.EntityCustomers] {
		id, err := normalizeID(str(r["hr_customer_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("customer: %w", err)
		}
		bundle.Customers = append(bundle.Customers, models.Customer{
			CustomerID:    id,
			CustomerName:  str(r["customer_name"]),
			CustomerType:  str(r["customer_type"]),
			TaxNum:        str(r["business_license"]),
			ContactPerson: str(r["contact_person"]),
			ContactPhone:  str(r["contact_phone"]),
			ContactEmail:  validateEmail(r["contact_email"]),
			Address:       str(r["company_address"]),
			Status:        "active",
			CreatedAt:     firstDate(r, sys, loc, "created_time", "updated_time"),
			SourceSystem:  sys,
		})
	}

	for _, r := range raw[models.EntityTransactions] {
		id, err := normalizeID(str(r["hr_transaction_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("transaction: %w", err)
		}
		amount, err := normalizeAmount(r["amount"])
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", id, err)
		}

		// employee_id carries hr_person_id values
		bundle.Transactions = append(bundle.Transactions, models.Transaction{
			TxID:              id,
			TransactionNumber: str(r["transaction_number"]),
			TxType:            normalizeTransactionType(r["transaction_type"]),
			Amount:            amount,
			Currency:          "CNY",
			TxDate:            normalizeDate(r["transaction_date"], sys, loc),
			PersonID:          optionalID(str(r["employee_id"]), sys),
			OrgID:             orgOrUnknown(str(r["department_id"]), sys),
			Description:       cleanText(firstOf(r, "transaction_description", "comments")),
			Status:            normalizeStatus(r["status"]),
			CreatedAt:         firstDate(r, sys, loc, "created_time", "transaction_date"),
			SourceSystem:      sys,
		})
	}

	return bundle, nil
}
