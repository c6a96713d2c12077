// internal/sources/fin.go
package sources

import (
	"fmt"
	"time"

	"ucap-workers/internal/models"
)

// MapFIN maps fin_* rows. Persons and transactions carry a cost center code
// that is resolved to an organization through org_code.
func MapFIN(raw RawSet, loc *time.Location) (*models.EntityBundle, error) {
	const sys = models.SystemFIN
	bundle := models.NewEntityBundle()

	orgByCode := make(map[string]string)
	for _, r := range raw[models.EntityOrganizations] {
		code := str(r["org_code"])
		if id := optionalID(str(r["fin_org_id"]), sys); id != "" && code != "" {
			orgByCode[code] = id
		}
	}

	costCenterOrg := func(r RawRecord) string {
		code := str(r["cost_center"])
		if code == "" {
			return orgOrUnknown("", sys)
		}
		if id, ok := orgByCode[code]; ok {
			return id
		}
		return orgOrUnknown(code, sys)
	}

	for _, r := range raw[models.EntityOrganizations] {
		id, err := normalizeID(str(r["fin_org_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("organization: %w", err)
		}
		bundle.Organizations = append(bundle.Organizations, models.Organization{
			OrgID:        id,
			OrgName:      str(r["org_name"]),
			OrgType:      normalizeOrgType(str(r["org_type"]), str(r["org_name"])),
			ParentOrgID:  optionalID(str(r["parent_org_id"]), sys),
			OrgCode:      str(r["org_code"]),
			ManagerName:  cleanText(r["manager_name"]),
			Address:      cleanText(r["address"]),
			Status:       normalizeStatus(r["status"]),
			CreatedAt:    firstDate(r, sys, loc, "created_time", "updated_time"),
			SourceSystem: sys,
		})
	}

	for _, r := range raw[models.EntityPersons] {
		id, err := normalizeID(str(r["fin_person_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("person: %w", err)
		}
		bundle.Persons = append(bundle.Persons, models.Person{
			PersonID:       id,
			PersonName:     str(r["person_name"]),
			EmployeeNumber: str(r["employee_code"]),
			OrgID:          costCenterOrg(r),
			Position:       cleanText(r["position"]),
			Department:     cleanText(r["department"]),
			Email:          validateEmail(r["email"]),
			Phone:          validatePhone(r["phone"]),
			HireDate:       normalizeDate(r["hire_date"], sys, loc),
			Status:         normalizeStatus(r["status"]),
			CreatedAt:      firstDate(r, sys, loc, "created_time", "updated_time", "hire_date"),
			SourceSystem:   sys,
		})
	}

	for _, r := range raw[models.EntityCustomers] {
		id, err := normalizeID(str(r["fin_customer_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("customer: %w", err)
		}
		bundle.Customers = append(bundle.Customers, models.Customer{
			CustomerID:    id,
			CustomerName:  str(r["customer_name"]),
			CustomerCode:  str(r["customer_code"]),
			CustomerType:  str(r["customer_type"]),
			TaxNum:        str(r["tax_number"]),
			Industry:      str(r["industry"]),
			ContactPerson: cleanText(r["contact_person"]),
			ContactPhone:  validatePhone(r["contact_phone"]),
			ContactEmail:  validateEmail(r["contact_email"]),
			Address:       cleanText(r["billing_address"]),
			CreditLevel:   cleanText(r["credit_rating"]),
			Status:        normalizeStatus(r["status"]),
			CreatedAt:     firstDate(r, sys, loc, "registration_date", "created_time", "updated_time"),
			SourceSystem:  sys,
		})
	}

	for _, r := range raw[models.EntityTransactions] {
		id, err := normalizeID(str(r["fin_transaction_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("transaction: %w", err)
		}
		amount, err := normalizeAmount(r["amount"])
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", id, err)
		}

		bundle.Transactions = append(bundle.Transactions, models.Transaction{
			TxID:              id,
			TransactionNumber: str(r["transaction_number"]),
			TxType:            normalizeTransactionType(r["transaction_type"]),
			Amount:            amount,
			Currency:          "CNY",
			TxDate:            normalizeDate(r["transaction_date"], sys, loc),
			CustomerID:        optionalID(str(r["customer_id"]), sys),
			PersonID:          optionalID(firstOf(r, "created_by", "approver"), sys),
			OrgID:             costCenterOrg(r),
			Description:       cleanText(r["description"]),
			PaymentMethod:     cleanText(r["payment_method"]),
			Status:            normalizeStatus(r["status"]),
			CreatedAt:         firstDate(r, sys, loc, "created_time", "value_date", "transaction_date"),
			SourceSystem:      sys,
		})
	}

	return bundle, nil
}
