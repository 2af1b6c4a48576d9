package overdue_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/svc/account"
	"github.com/dmitrymomot/billingkit/svc/overdue"
)

func sampleEmailData() overdue.EmailData {
	earliest := day(2014, 5, 1)
	return overdue.EmailData{
		Account: &account.Account{
			Name:     "Acme Corp",
			Email:    "billing@acme.test",
			Currency: "USD",
			TimeZone: "UTC",
		},
		BillingState: &overdue.BillingState{
			NumberOfUnpaidInvoices:      2,
			BalanceOfUnpaidInvoices:     decimal.RequireFromString("149.90"),
			DateOfEarliestUnpaidInvoice: &earliest,
		},
		StateName: "WARNING",
	}
}

func TestEmailGeneratorDefaultTemplate(t *testing.T) {
	g := overdue.NewEmailGenerator()

	subject, body, err := g.Generate(overdue.EmailNotification{
		Subject: "Your account needs attention",
		IsHTML:  true,
	}, sampleEmailData())
	require.NoError(t, err)

	assert.Equal(t, "Your account needs attention", subject)
	assert.Contains(t, body, "Dear Acme Corp")
	assert.Contains(t, body, "<strong>WARNING</strong>")
	assert.Contains(t, body, "May 1, 2014")
}

func TestEmailGeneratorSubjectTemplate(t *testing.T) {
	g := overdue.NewEmailGenerator()

	subject, _, err := g.Generate(overdue.EmailNotification{
		Subject: "{{.Account.Name}}: {{.UnpaidInvoices}} unpaid invoices",
		IsHTML:  true,
	}, sampleEmailData())
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp: 2 unpaid invoices", subject)
}

func TestEmailGeneratorCustomTemplate(t *testing.T) {
	g := overdue.NewEmailGenerator()
	require.NoError(t, g.AddTemplate("terse", "<p>Pay {{.UnpaidBalance}} now.</p>"))

	t.Run("html mode keeps markup", func(t *testing.T) {
		_, body, err := g.Generate(overdue.EmailNotification{
			Subject:      "Pay up",
			TemplateName: "terse",
			IsHTML:       true,
		}, sampleEmailData())
		require.NoError(t, err)
		assert.Contains(t, body, "<p>")
	})

	t.Run("text mode strips markup", func(t *testing.T) {
		_, body, err := g.Generate(overdue.EmailNotification{
			Subject:      "Pay up",
			TemplateName: "terse",
		}, sampleEmailData())
		require.NoError(t, err)
		assert.NotContains(t, body, "<p>")
		assert.Contains(t, body, "now.")
	})
}

func TestEmailGeneratorUnknownTemplate(t *testing.T) {
	g := overdue.NewEmailGenerator()

	_, _, err := g.Generate(overdue.EmailNotification{
		Subject:      "x",
		TemplateName: "branded",
		IsHTML:       true,
	}, sampleEmailData())
	assert.ErrorIs(t, err, overdue.ErrTemplateNotFound)
}

func TestFormatAmount(t *testing.T) {
	amount := decimal.RequireFromString("149.90")

	assert.Contains(t, overdue.FormatAmount(amount, "USD"), "$")
	assert.Equal(t, "149.90", overdue.FormatAmount(amount, ""), "unknown currency falls back to the bare number")
	assert.Equal(t, "149.90", overdue.FormatAmount(amount, "not-a-code"))
}

func TestEmailDataHelpers(t *testing.T) {
	t.Run("nil billing state", func(t *testing.T) {
		d := overdue.EmailData{StateName: "WARNING"}
		assert.Empty(t, d.UnpaidBalance())
		assert.Zero(t, d.UnpaidInvoices())
		assert.Empty(t, d.EarliestUnpaidDate())
	})

	t.Run("earliest date honors the account time zone", func(t *testing.T) {
		d := sampleEmailData()
		d.Account.TimeZone = "Pacific/Auckland"
		// Midnight UTC on May 1 is already May 1 afternoon in Auckland.
		assert.Equal(t, "May 1, 2014", d.EarliestUnpaidDate())
	})
}
