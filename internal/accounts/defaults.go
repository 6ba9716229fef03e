package accounts

import "github.com/cleared-dev/bookkeeper/internal/model"

// Well-known numbers in the default chart.
const (
	NumberCash               = "1010"
	NumberAccountsReceivable = "1100"
	NumberAccountsPayable    = "2000"
)

// DefaultChart returns the default chart of accounts for an entity type.
func DefaultChart(entityType string) []model.Account {
	switch entityType {
	case "small_business":
		return smallBusinessChart()
	default:
		return smallBusinessChart()
	}
}

func smallBusinessChart() []model.Account {
	chart := []model.Account{
		{Number: NumberCash, Name: "Cash", Type: model.AccountTypeAsset, Description: "Operating cash and bank balances"},
		{Number: NumberAccountsReceivable, Name: "Accounts Receivable", Type: model.AccountTypeAsset, Description: "Amounts owed by customers"},
		{Number: "1500", Name: "Equipment", Type: model.AccountTypeAsset, Description: "Long-lived equipment at cost"},
		{Number: NumberAccountsPayable, Name: "Accounts Payable", Type: model.AccountTypeLiability, Description: "Amounts owed to suppliers"},
		{Number: "2100", Name: "Loans Payable", Type: model.AccountTypeLiability, Description: "Outstanding loan principal"},
		{Number: "3000", Name: "Owner's Equity", Type: model.AccountTypeEquity, Description: "Owner capital contributions"},
		{Number: "3100", Name: "Owner's Draws", Type: model.AccountTypeEquity, Description: "Owner withdrawals"},
		{Number: "4000", Name: "Sales Revenue", Type: model.AccountTypeRevenue, Description: "Revenue from product sales"},
		{Number: "4100", Name: "Service Revenue", Type: model.AccountTypeRevenue, Description: "Revenue from services rendered"},
		{Number: "5000", Name: "Cost of Goods Sold", Type: model.AccountTypeExpense},
		{Number: "5100", Name: "Rent Expense", Type: model.AccountTypeExpense},
		{Number: "5200", Name: "Salaries Expense", Type: model.AccountTypeExpense},
		{Number: "5300", Name: "Utilities Expense", Type: model.AccountTypeExpense},
		{Number: "5400", Name: "Office Supplies", Type: model.AccountTypeExpense},
	}
	for i := range chart {
		chart[i].Active = true
		if chart[i].NormalBalance == "" {
			chart[i].NormalBalance = model.DefaultNormalBalance(chart[i].Type)
		}
	}
	return chart
}
