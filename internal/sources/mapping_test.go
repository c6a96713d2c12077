// internal/sources/mapping_test.go
package sources

import (
	"testing"
	"time"

	"ucap-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helper Tests
// ==========================

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		system  models.SystemType
		want    string
		wantErr bool
	}{
		{"plain", "ORG000001", models.SystemERP, "erp_ORG000001", false},
		{"already prefixed", "hr_PER_00001", models.SystemHR, "hr_PER_00001", false},
		{"special characters", "CC/100 A", models.SystemFIN, "fin_CC_100_A", false},
		{"empty", "", models.SystemERP, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeID(tt.raw, tt.system)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    float64
		wantErr bool
	}{
		{"float", 12.3456, 12.35, false},
		{"int64", int64(7), 7, false},
		{"currency and separators", "¥1,234.50", 1234.5, false},
		{"negative", "-200.10", -200.1, false},
		{"nil", nil, 0, false},
		{"blank", "  ", 0, false},
		{"text", "twelve", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	loc := time.UTC

	erp := normalizeDate("2024-03-15 08:30:00", models.SystemERP, loc)
	require.NotNil(t, erp)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 30, 0, 0, loc), *erp)

	// HR stores day/month/year
	hr := normalizeDate("05/04/2024", models.SystemHR, loc)
	require.NotNil(t, hr)
	assert.Equal(t, time.April, hr.Month())
	assert.Equal(t, 5, hr.Day())

	// FIN stores month-day-year
	fin := normalizeDate("04-05-2024", models.SystemFIN, loc)
	require.NotNil(t, fin)
	assert.Equal(t, time.April, fin.Month())

	assert.Nil(t, normalizeDate("not a date", models.SystemERP, loc))
	assert.Nil(t, normalizeDate(nil, models.SystemERP, loc))
	assert.Nil(t, normalizeDate(time.Time{}, models.SystemERP, loc))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, "active", normalizeStatus("在职"))
	assert.Equal(t, "inactive", normalizeStatus("离职"))
	assert.Equal(t, "inactive", normalizeStatus("INACTIVE"))
	assert.Equal(t, "completed", normalizeStatus("已入账"))
	assert.Equal(t, "cancelled", normalizeStatus("order cancelled"))
	assert.Equal(t, "active", normalizeStatus(nil))
	assert.Equal(t, "active", normalizeStatus("unknown"))
}

func TestNormalizeTransactionType(t *testing.T) {
	assert.Equal(t, "sales", normalizeTransactionType("销售订单"))
	assert.Equal(t, "salary", normalizeTransactionType("薪资调整"))
	assert.Equal(t, "receipt", normalizeTransactionType("收款"))
	assert.Equal(t, "payment", normalizeTransactionType("PAYMENT"))
	assert.Equal(t, "expense", normalizeTransactionType("other"))
}

func TestNormalizeOrgType(t *testing.T) {
	assert.Equal(t, "cost_center", normalizeOrgType("成本中心", ""))
	assert.Equal(t, "company", normalizeOrgType("", "华东分公司"))
	assert.Equal(t, "dept", normalizeOrgType("", "技术部"))
	assert.Equal(t, "team", normalizeOrgType("Team", ""))
	assert.Equal(t, "dept", normalizeOrgType("", ""))
}

func TestContactValidation(t *testing.T) {
	assert.Equal(t, "a.b@example.com", validateEmail("A.B@example.com"))
	assert.Empty(t, validateEmail("not-an-email"))
	assert.Empty(t, validateEmail("Name <a@b.com>"))

	assert.Equal(t, "+86 138-0000-0000", validatePhone("+86 138-0000-0000"))
	assert.Empty(t, validatePhone("call me"))
	assert.Empty(t, validatePhone("123"))
}

// ==========================
// Mapper Tests
// ==========================

func TestMapHR(t *testing.T) {
	raw := RawSet{
		models.EntityOrganizations: {
			{"hr_org_id": "HR_ORG_1", "org_name": "人力资源部", "manager_id": "HR_PER_1", "location": "上海", "establishment_date": "01/02/2020"},
		},
		models.EntityPersons: {
			{"hr_person_id": "HR_PER_1", "person_name": "李四", "employee_id": "E100", "department_id": "HR_ORG_1", "hire_date": "15/03/2021", "email": "li@example.com"},
		},
		models.EntityCustomers: {
			{"hr_customer_id": "HC1", "customer_name": "Globex", "business_license": "91310000X", "company_address": "北京"},
		},
		models.EntityTransactions: {
			{"hr_transaction_id": "HT1", "transaction_type": "薪资调整", "amount": "5,000", "transaction_date": "01/06/2024", "employee_id": "HR_PER_1", "department_id": "HR_ORG_1", "comments": "  raise   approved "},
		},
	}

	bundle, err := MapHR(raw, time.UTC)
	require.NoError(t, err)

	require.Len(t, bundle.Organizations, 1)
	org := bundle.Organizations[0]
	assert.Equal(t, "hr_HR_ORG_1", org.OrgID)
	assert.Equal(t, "李四", org.ManagerName)
	assert.Equal(t, "dept", org.OrgType)
	assert.Equal(t, "上海", org.Address)
	require.NotNil(t, org.CreatedAt)
	assert.Equal(t, time.February, org.CreatedAt.Month())

	require.Len(t, bundle.Persons, 1)
	person := bundle.Persons[0]
	assert.Equal(t, "hr_HR_PER_1", person.PersonID)
	assert.Equal(t, "E100", person.EmployeeNumber)
	assert.Equal(t, "hr_HR_ORG_1", person.OrgID)
	require.NotNil(t, person.HireDate)
	assert.Equal(t, time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), *person.HireDate)

	require.Len(t, bundle.Customers, 1)
	assert.Equal(t, "91310000X", bundle.Customers[0].TaxNum)
	assert.Equal(t, "北京", bundle.Customers[0].Address)

	require.Len(t, bundle.Transactions, 1)
	tx := bundle.Transactions[0]
	assert.Equal(t, "salary", tx.TxType)
	assert.Equal(t, 5000.0, tx.Amount)
	assert.Equal(t, "hr_HR_PER_1", tx.PersonID)
	assert.Equal(t, "raise approved", tx.Description)
	assert.Equal(t, "CNY", tx.Currency)
}

func TestMapFIN_CostCenterResolution(t *testing.T) {
	raw := RawSet{
		models.EntityOrganizations: {
			{"fin_org_id": "FORG1", "org_name": "华东成本中心", "org_code": "CC100"},
		},
		models.EntityPersons: {
			{"fin_person_id": "FP1", "person_name": "王五", "cost_center": "CC100"},
			{"fin_person_id": "FP2", "person_name": "赵六", "cost_center": "CC999"},
			{"fin_person_id": "FP3", "person_name": "钱七"},
		},
		models.EntityTransactions: {
			{"fin_transaction_id": "FT1", "transaction_type": "付款", "amount": "$300", "cost_center": "CC100", "approver": "FP1", "value_date": "03-01-2024"},
		},
	}

	bundle, err := MapFIN(raw, time.UTC)
	require.NoError(t, err)

	require.Len(t, bundle.Organizations, 1)
	assert.Equal(t, "cost_center", bundle.Organizations[0].OrgType)

	require.Len(t, bundle.Persons, 3)
	assert.Equal(t, "fin_FORG1", bundle.Persons[0].OrgID)
	assert.Equal(t, "fin_CC999", bundle.Persons[1].OrgID)
	assert.Equal(t, "fin_unknown_org", bundle.Persons[2].OrgID)

	require.Len(t, bundle.Transactions, 1)
	tx := bundle.Transactions[0]
	assert.Equal(t, "fin_FORG1", tx.OrgID)
	assert.Equal(t, "fin_FP1", tx.PersonID)
	assert.Equal(t, "payment", tx.TxType)
	assert.Equal(t, 300.0, tx.Amount)
	assert.Nil(t, tx.TxDate)
	require.NotNil(t, tx.CreatedAt)
	assert.Equal(t, time.March, tx.CreatedAt.Month())
}

func TestMapERP_MissingIdentifier(t *testing.T) {
	_, err := MapERP(RawSet{
		models.EntityCustomers: {{"customer_name": "no id"}},
	}, time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer")
}
