package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bookkeeper/internal/config"
	"github.com/cleared-dev/bookkeeper/internal/importer"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

func TestBuildSubmission(t *testing.T) {
	sub, err := buildSubmission("2024-03-01", "Rent", "R-3", []string{"5100=1200"}, []string{" 1010 = 1200.00 "})
	require.NoError(t, err)
	assert.Equal(t, "Rent", sub.Description)
	require.Len(t, sub.Lines, 2)
	assert.Equal(t, model.Debit, sub.Lines[0].Side)
	assert.Equal(t, "1010", sub.Lines[1].AccountNumber)
	assert.Equal(t, model.Credit, sub.Lines[1].Side)
	assert.Equal(t, "1200", sub.Lines[1].Amount.String())
}

func TestBuildSubmission_Errors(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		debits  []string
		wantErr string
	}{
		{"no equals", "2024-03-01", []string{"5100"}, "ACCOUNT=AMOUNT"},
		{"bad amount", "2024-03-01", []string{"5100=abc"}, "parsing amount"},
		{"bad date", "03/01/2024", []string{"5100=1"}, "parsing date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildSubmission(tt.date, "", "", tt.debits, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildSubmission_DefaultsToToday(t *testing.T) {
	sub, err := buildSubmission("", "", "", []string{"1010=1"}, nil)
	require.NoError(t, err)
	assert.False(t, sub.Date.IsZero())
}

func TestParserRegistry(t *testing.T) {
	cfg := config.Default("Test", "small_business")
	cfg.BankAccounts = []config.BankAccount{
		{Name: "Checking", Format: "chase", Account: "1010", IncomeAccount: "4100", ExpenseAccount: "5400"},
		{Name: "Savings", Format: "chase", Account: "1020"},
	}
	reg, err := parserRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, "chase", reg.ForFile("chase_jan.csv").Format())
	assert.Equal(t, "journal", reg.ForFile("entries.csv").Format())

	chase, ok := reg.Get("chase").(*importer.ChaseParser)
	require.True(t, ok)
	assert.Equal(t, "1010", chase.Account)
	assert.Equal(t, "4100", chase.IncomeAccount)

	cfg.BankAccounts = append(cfg.BankAccounts, config.BankAccount{Name: "Broker", Format: "ofx", Account: "1030"})
	_, err = parserRegistry(cfg)
	assert.ErrorContains(t, err, `bank account "Broker": unsupported format "ofx"`)
}

func TestParserRegistry_NoBanks(t *testing.T) {
	reg, err := parserRegistry(config.Default("Test", ""))
	require.NoError(t, err)
	assert.Nil(t, reg.Get("chase"))
}
