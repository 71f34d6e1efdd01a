package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const billHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Bill {{.Bill.ID}}</title>
  <style>
    body { margin: 0; padding: 32px; font-family: "Helvetica Neue", Arial, sans-serif; color: #111827; }
    .bill { max-width: 720px; margin: 0 auto; }
    .header { display: flex; justify-content: space-between; border-bottom: 2px solid #1f2937; padding-bottom: 16px; margin-bottom: 24px; }
    .meta { text-align: right; font-size: 14px; }
    .label { color: #6b7280; text-transform: uppercase; letter-spacing: 0.04em; font-size: 11px; }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    th, td { padding: 10px; border-bottom: 1px solid #e5e7eb; text-align: left; }
    .amount { text-align: right; }
    .totals { margin-top: 16px; font-size: 14px; text-align: right; }
    .totals .grand { font-size: 18px; font-weight: 700; }
  </style>
</head>
<body>
  <div class="bill">
    <div class="header">
      <div>
        <div><strong>{{.Company}}</strong></div>
        <div>{{.Customer.Name}}</div>
        <div>{{.Customer.Email}}</div>
      </div>
      <div class="meta">
        <div class="label">Bill</div>
        <div><strong>{{.Bill.ID}}</strong></div>
        <div>Period: {{.Bill.Month}}</div>
        <div>Status: {{.Bill.Status}}</div>
        <div>Issued: {{formatDate .Bill.GeneratedAt}}</div>
        <div>Due: {{formatDate .Bill.DueDate}}</div>
      </div>
    </div>

    <table>
      <thead>
        <tr><th>SIM</th><th>Plan</th><th class="amount">Amount</th></tr>
      </thead>
      <tbody>
        {{range .Lines}}
        <tr>
          <td>{{.Msisdn}}</td>
          <td>{{.PlanCode}}</td>
          <td class="amount">{{formatCents .TotalCents}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div>Subtotal: {{formatCents .Bill.SubtotalCents}}</div>
      <div>Tax: {{formatCents .Bill.TaxCents}}</div>
      <div>Surcharge: {{formatCents .Bill.SurchargeCents}}</div>
      {{if gt .Bill.PenaltyCents 0}}<div>Late penalty: {{formatCents .Bill.PenaltyCents}}</div>{{end}}
      <div class="grand">Total due: {{formatCents .Bill.TotalCents}}</div>
    </div>
  </div>
</body>
</html>`

type htmlRenderer struct {
	tmpl *template.Template
}

// NewRenderer builds the HTML bill renderer.
func NewRenderer() (Renderer, error) {
	tmpl, err := template.New("bill").Funcs(template.FuncMap{
		"formatDate":  formatDate,
		"formatCents": formatCents,
	}).Parse(billHTMLTemplate)
	if err != nil {
		return nil, err
	}
	return &htmlRenderer{tmpl: tmpl}, nil
}

func (r *htmlRenderer) RenderHTML(input RenderInput) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatDate(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return at.Format("Jan 2, 2006")
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
