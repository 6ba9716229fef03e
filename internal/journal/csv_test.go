package journal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bookkeeper/internal/model"
)

const sampleCSV = `entry,date,description,reference,account,debit,credit,memo
a,2024-01-15,Invoice 1042,INV-1042,1010,1000.00,,
a,,,,4000,,1000.00,consulting
b,2024-01-20,Rent,,5100,1200.00,,January
b,,,,1010,,1200.00,
`

func TestReadSubmissions(t *testing.T) {
	subs, err := ReadSubmissions(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, subs, 2)

	a := subs[0]
	assert.Equal(t, date(2024, 1, 15), a.Date)
	assert.Equal(t, "Invoice 1042", a.Description)
	assert.Equal(t, "INV-1042", a.Reference)
	require.Len(t, a.Lines, 2)
	assert.Equal(t, "1010", a.Lines[0].AccountNumber)
	assert.Equal(t, model.Debit, a.Lines[0].Side)
	assert.True(t, a.Lines[0].Amount.Equal(dec("1000")))
	assert.Equal(t, model.Credit, a.Lines[1].Side)
	assert.Equal(t, "consulting", a.Lines[1].Description)

	b := subs[1]
	assert.Equal(t, "Rent", b.Description)
	assert.Equal(t, "January", b.Lines[0].Description)
}

func TestReadSubmissions_InterleavedKeys(t *testing.T) {
	in := "x,2024-02-01,First,,1010,5,,\n" +
		"y,2024-02-02,Second,,1010,7,,\n" +
		"x,,,,4000,,5,\n" +
		"y,,,,4000,,7,\n"
	subs, err := ReadSubmissions(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "First", subs[0].Description)
	assert.Len(t, subs[0].Lines, 2)
	assert.Len(t, subs[1].Lines, 2)
}

func TestReadSubmissions_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"both sides", "a,2024-01-01,x,,1010,5,5,\n", "exactly one"},
		{"no side", "a,2024-01-01,x,,1010,,,\n", "exactly one"},
		{"bad amount", "a,2024-01-01,x,,1010,five,,\n", "parsing debit"},
		{"bad date", "a,01/15/2024,x,,1010,5,,\n", "parsing date"},
		{"missing date", "a,,x,,1010,5,,\n", "date is required"},
		{"missing key", ",2024-01-01,x,,1010,5,,\n", "entry key"},
		{"wrong width", "a,2024-01-01,x\n", "wrong number of fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSubmissions(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestReadSubmissions_RowNumbers(t *testing.T) {
	in := Header + "\na,2024-01-01,x,,1010,5,,\na,,,,4000,,oops,\n"
	_, err := ReadSubmissions(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}

func TestWriteEntries_RoundTrip(t *testing.T) {
	entries := []model.Entry{
		{
			ID:          "2024-01-001",
			Date:        date(2024, 1, 15),
			Description: "Invoice, with comma",
			Reference:   "INV-1",
			Lines: []model.Line{
				{LineNo: 1, AccountNumber: "1010", Amount: dec("100.005"), Side: model.Debit},
				{LineNo: 2, AccountNumber: "4000", Amount: dec("100"), Side: model.Credit, Description: "memo"},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, entries))
	assert.Contains(t, buf.String(), "100.005")
	assert.Contains(t, buf.String(), "100.00")

	subs, err := ReadSubmissions(&buf)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Invoice, with comma", subs[0].Description)
	assert.Equal(t, "INV-1", subs[0].Reference)
	require.Len(t, subs[0].Lines, 2)
	assert.True(t, subs[0].Lines[0].Amount.Equal(dec("100.005")))
	assert.Equal(t, "memo", subs[0].Lines[1].Description)
}
