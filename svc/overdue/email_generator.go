package overdue

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/billingkit/svc/account"
)

var ErrTemplateNotFound = errors.New("overdue email template not found")

// EmailData is the payload overdue email templates render against.
type EmailData struct {
	Account      *account.Account
	BillingState *BillingState
	StateName    string
}

// UnpaidBalance formats the unpaid balance in the account's currency,
// e.g. "$ 42.50". Falls back to the bare number when the currency code is
// missing or unknown.
func (d EmailData) UnpaidBalance() string {
	if d.BillingState == nil {
		return ""
	}
	code := ""
	if d.Account != nil {
		code = d.Account.Currency
	}
	return FormatAmount(d.BillingState.BalanceOfUnpaidInvoices, code)
}

// UnpaidInvoices returns the number of unpaid invoices.
func (d EmailData) UnpaidInvoices() int {
	if d.BillingState == nil {
		return 0
	}
	return d.BillingState.NumberOfUnpaidInvoices
}

// EarliestUnpaidDate returns the earliest unpaid invoice date in the
// account's time zone, or "" when there is none.
func (d EmailData) EarliestUnpaidDate() string {
	if d.BillingState == nil || d.BillingState.DateOfEarliestUnpaidInvoice == nil {
		return ""
	}
	t := *d.BillingState.DateOfEarliestUnpaidInvoice
	if d.Account != nil {
		t = t.In(d.Account.Location())
	}
	return t.Format("January 2, 2006")
}

// FormatAmount renders a monetary amount with its currency symbol using the
// English locale.
func FormatAmount(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2)
	}
	f, _ := amount.Float64()
	return message.NewPrinter(language.English).Sprint(currency.Symbol(unit.Amount(f)))
}

// EmailGenerator renders enter-state emails from named templates. Subjects
// are rendered as text templates against the same data, so a configured
// subject like "Account {{.Account.Name}} is overdue" works.
type EmailGenerator struct {
	html *template.Template
	text *texttemplate.Template
}

const defaultTemplateName = "overdue_default"

// defaultTemplate is used when a ladder state references no template of its
// own. Kept deliberately plain; deployments override it with branded ones.
const defaultTemplate = `<html><body>
<p>Dear {{.Account.Name}},</p>
<p>Your account has entered the <strong>{{.StateName}}</strong> state.</p>
{{if .BillingState}}<p>You currently have {{.UnpaidInvoices}} unpaid invoice(s)
with a total balance of {{.UnpaidBalance}}{{with .EarliestUnpaidDate}}, the
earliest dating from {{.}}{{end}}.</p>{{end}}
<p>Please settle the outstanding balance to restore full service.</p>
</body></html>`

// NewEmailGenerator creates a generator with the built-in default template.
// Additional named templates are registered with AddTemplate.
func NewEmailGenerator() *EmailGenerator {
	g := &EmailGenerator{
		html: template.New("overdue"),
		text: texttemplate.New("overdue"),
	}
	template.Must(g.html.New(defaultTemplateName).Parse(defaultTemplate))
	texttemplate.Must(g.text.New(defaultTemplateName).Parse(stripTags(defaultTemplate)))
	return g
}

// AddTemplate registers a named template body. The same source is parsed
// both as HTML and as text, so the EmailNotification.IsHTML flag selects
// the rendering mode at send time.
func (g *EmailGenerator) AddTemplate(name, body string) error {
	if _, err := g.html.New(name).Parse(body); err != nil {
		return err
	}
	if _, err := g.text.New(name).Parse(stripTags(body)); err != nil {
		return err
	}
	return nil
}

// Generate renders the subject and body for a notification.
func (g *EmailGenerator) Generate(notice EmailNotification, data EmailData) (subject, body string, err error) {
	subject, err = g.renderSubject(notice.Subject, data)
	if err != nil {
		return "", "", err
	}

	name := notice.TemplateName
	if name == "" {
		name = defaultTemplateName
	}

	var sb strings.Builder
	if notice.IsHTML {
		t := g.html.Lookup(name)
		if t == nil {
			return "", "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
		}
		err = t.Execute(&sb, data)
	} else {
		t := g.text.Lookup(name)
		if t == nil {
			return "", "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
		}
		err = t.Execute(&sb, data)
	}
	if err != nil {
		return "", "", err
	}
	return subject, sb.String(), nil
}

func (g *EmailGenerator) renderSubject(src string, data EmailData) (string, error) {
	if !strings.Contains(src, "{{") {
		return src, nil
	}
	t, err := texttemplate.New("subject").Parse(src)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// stripTags removes HTML tags for the plain-text rendering of a template.
// Template actions survive untouched since they contain no angle brackets.
func stripTags(src string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range src {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
