package service

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/shhady/leadform/backend/model"
)

// NotSpecified is shown for answers left empty.
const NotSpecified = "לא צוין"

type EmailFile struct {
	Label    string
	URL      string
	Attached bool
}

type EmailData struct {
	FinishedWork            string
	EndDate                 string
	ClosingPapers           string
	FinancialIssues         string
	Disability              string
	DisabilityClaim         string
	CurrentEmploymentStatus string
	Salary                  string
	EmployerName            string
	TransparentCall         string
	FullName                string
	Phone                   string
	IDNumber                string
	City                    string
	Agent                   string
	Files                   []EmailFile
}

var fileLabels = map[model.SlotName]string{
	model.SlotIDFront:      "צילום ת.ז - צד 1",
	model.SlotIDBack:       "צילום ת.ז - צד 2",
	model.SlotIDAttachment: "צילום ספח ת.ז",
	model.SlotBankApproval: "אישור ניהול חשבון בנק",
}

//go:embed templates/submission.html
var submissionEmailHTML string

var submissionEmailTmpl = template.Must(
	template.New("submission").
		Funcs(template.FuncMap{
			"orNone": func(s string) string {
				if s == "" {
					return NotSpecified
				}
				return s
			},
		}).
		Parse(submissionEmailHTML),
)

// NewEmailData maps a payload onto the summary template.
func NewEmailData(p *Payload) EmailData {
	d := EmailData{
		FinishedWork:            p.Get(string(model.FieldFinishedWork)),
		EndDate:                 p.Get(string(model.FieldEndDate)),
		ClosingPapers:           p.Get(string(model.FieldClosingPapers)),
		FinancialIssues:         p.Get(string(model.FieldFinancialIssues)),
		Disability:              p.Get(string(model.FieldDisability)),
		DisabilityClaim:         p.Get(string(model.FieldDisabilityClaim)),
		CurrentEmploymentStatus: p.Get(string(model.FieldCurrentEmploymentStatus)),
		Salary:                  p.Get(string(model.FieldSalary)),
		EmployerName:            p.Get(string(model.FieldEmployerName)),
		TransparentCall:         p.Get(string(model.FieldTransparentCall)),
		FullName:                p.Get(string(model.FieldFullName)),
		Phone:                   p.Get(string(model.FieldPhone)),
		IDNumber:                p.Get(string(model.FieldIDNumber)),
		City:                    p.Get(string(model.FieldCity)),
		Agent:                   p.Get(AgentField),
	}
	for _, slot := range model.Slots {
		ref := p.Get(string(slot))
		f := EmailFile{Label: fileLabels[slot]}
		if ref == PDFSentinel {
			f.Attached = true
		} else {
			f.URL = ref
		}
		d.Files = append(d.Files, f)
	}
	return d
}

// RenderSubmissionEmailHTML renders the RTL summary mailed for a submission.
func RenderSubmissionEmailHTML(data EmailData) (string, error) {
	var buf bytes.Buffer
	if err := submissionEmailTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

// SubmissionSubject is the subject line for a submission email.
func SubmissionSubject(fullName string) string {
	return "טופס חדש - " + fullName
}

// AttachmentFilename names the mailed bank approval document.
func AttachmentFilename(fullName string) string {
	return "bank-approval-" + fullName + ".pdf"
}
