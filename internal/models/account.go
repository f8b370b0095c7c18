package models

import "github.com/shopspring/decimal"

// Account is a balance-holding record looked up by email.
// Password is carried through untouched; nothing in this module writes it.
type Account struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	Name     string          `json:"name,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
	Password string          `json:"password,omitempty"`
}

// DashboardData is derived on demand and never stored.
type DashboardData struct {
	TotalBalance    decimal.Decimal `json:"totalBalance"`
	MonthlyIncome   decimal.Decimal `json:"monthlyIncome"`
	MonthlyExpenses decimal.Decimal `json:"monthlyExpenses"`
}
