// internal/sources/erp.go
package sources

import (
	"fmt"
	"time"

	"ucap-workers/internal/models"
)

// erpDefaultOrg is used when a transaction's sales person cannot be resolved.
const erpDefaultOrg = "ORG000001"

// MapERP maps erp_* rows. Transactions reach their org through the sales
// person's department.
func MapERP(raw RawSet, loc *time.Location) (*models.EntityBundle, error) {
	const sys = models.SystemERP
	bundle := models.NewEntityBundle()

	for _, r := range raw[models.EntityOrganizations] {
		id, err := normalizeID(str(r["erp_org_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("organization: %w", err)
		}
		bundle.Organizations = append(bundle.Organizations, models.Organization{
			OrgID:        id,
			OrgName:      str(r["org_name"]),
			OrgType:      normalizeOrgType(str(r["org_type"]), str(r["org_name"])),
			ParentOrgID:  optionalID(str(r["parent_org_id"]), sys),
			OrgCode:      str(r["org_code"]),
			ContactInfo:  cleanText(r["contact_info"]),
			Address:      cleanText(r["address"]),
			Status:       normalizeStatus(r["status"]),
			CreatedAt:    firstDate(r, sys, loc, "created_time", "updated_time", "established_date"),
			SourceSystem: sys,
		})
	}

	departments := make(map[string]string)
	for _, r := range raw[models.EntityPersons] {
		rawID := str(r["erp_person_id"])
		id, err := normalizeID(rawID, sys)
		if err != nil {
			return nil, fmt.Errorf("person: %w", err)
		}
		departments[rawID] = str(r["department_id"])

		bundle.Persons = append(bundle.Persons, models.Person{
			PersonID:       id,
			PersonName:     str(r["person_name"]),
			EmployeeNumber: str(r["employee_number"]),
			OrgID:          orgOrUnknown(str(r["department_id"]), sys),
			Position:       cleanText(r["position"]),
			Department:     cleanText(r["department_id"]),
			Email:          validateEmail(r["email"]),
			Phone:          validatePhone(r["contact_phone"]),
			HireDate:       normalizeDate(r["hire_date"], sys, loc),
			Status:         normalizeStatus(r["employment_status"]),
			CreatedAt:      firstDate(r, sys, loc, "created_time", "hire_date"),
			SourceSystem:   sys,
		})
	}

	for _, r := range raw[models.EntityCustomers] {
		id, err := normalizeID(str(r["erp_customer_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("customer: %w", err)
		}
		bundle.Customers = append(bundle.Customers, models.Customer{
			CustomerID:    id,
			CustomerName:  str(r["customer_name"]),
			CustomerCode:  str(r["customer_code"]),
			CustomerType:  str(r["customer_type"]),
			Industry:      str(r["industry"]),
			ContactPerson: str(r["contact_person"]),
			ContactPhone:  validatePhone(r["contact_phone"]),
			ContactEmail:  validateEmail(r["contact_email"]),
			Address:       str(r["address"]),
			CreditLevel:   str(r["credit_level"]),
			Status:        normalizeStatus(r["status"]),
			CreatedAt:     normalizeDate(r["created_time"], sys, loc),
			SourceSystem:  sys,
		})
	}

	for _, r := range raw[models.EntityTransactions] {
		id, err := normalizeID(str(r["erp_transaction_id"]), sys)
		if err != nil {
			return nil, fmt.Errorf("transaction: %w", err)
		}
		amount, err := normalizeAmount(r["total_amount"])
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", id, err)
		}

		salesPerson := str(r["sales_person"])
		orgRaw := erpDefaultOrg
		if dept, ok := departments[salesPerson]; ok && dept != "" {
			orgRaw = dept
		}

		var product string
		if code, name := str(r["product_code"]), str(r["product_name"]); code != "" || name != "" {
			product = cleanText(code + "/" + name)
		}

		bundle.Transactions = append(bundle.Transactions, models.Transaction{
			TxID:              id,
			TransactionNumber: str(r["transaction_number"]),
			TxType:            normalizeTransactionType(r["transaction_type"]),
			Amount:            amount,
			Currency:          "CNY",
			TxDate:            normalizeDate(r["transaction_date"], sys, loc),
			CustomerID:        optionalID(str(r["customer_id"]), sys),
			PersonID:          optionalID(salesPerson, sys),
			OrgID:             orgOrUnknown(orgRaw, sys),
			Description:       cleanText(r["notes"]),
			ProductInfo:       product,
			PaymentMethod:     cleanText(r["payment_terms"]),
			Status:            normalizeStatus(r["status"]),
			CreatedAt:         firstDate(r, sys, loc, "created_time", "updated_time"),
			SourceSystem:      sys,
		})
	}

	return bundle, nil
}
