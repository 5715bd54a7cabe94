package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"github.com/shhady/leadform/backend/model"
)

const (
	// PDFSentinel replaces the bankApproval reference when the document
	// travels as a file part instead of a URL.
	PDFSentinel = "pdf-attachment"
	// PDFPart is the multipart field name carrying the bank approval PDF.
	PDFPart = "bankApprovalPdf"
	// AgentField tags the payload with the referring agent.
	AgentField = "agentName"
)

// Payload is what gets sent to the submission endpoint.
type Payload struct {
	Fields     map[string]string
	Attachment *model.Attachment
}

// Get returns the named value, empty when absent.
func (p *Payload) Get(name string) string {
	return p.Fields[name]
}

// BuildPayload merges the answers with the upload references. All slots must
// be resolved.
func BuildPayload(sub *model.Submission) *Payload {
	p := &Payload{Fields: make(map[string]string, len(model.Fields)+len(model.Slots)+1)}

	for _, f := range model.Fields {
		p.Fields[string(f)] = sub.Fields[f]
	}
	if sub.Agent != "" {
		p.Fields[AgentField] = sub.Agent
	}

	for _, name := range model.Slots {
		slot := sub.Slot(name)
		if slot.Attachment != nil {
			p.Fields[string(name)] = PDFSentinel
			att := *slot.Attachment
			p.Attachment = &att
			continue
		}
		p.Fields[string(name)] = slot.URL
	}
	return p
}

// Encode serialises the payload. A payload carrying a file is sent as
// multipart/form-data, anything else as JSON.
func (p *Payload) Encode() ([]byte, string, error) {
	if p.Attachment == nil {
		body, err := json.Marshal(p.Fields)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode payload: %w", err)
		}
		return body, "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, p.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	contentType := p.Attachment.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     PDFPart,
		"filename": p.Attachment.Filename,
	}))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(p.Attachment.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// ParsePayload reads a payload sent by Encode or by a browser. The literal
// strings "null" and "undefined" in multipart values are treated as empty.
func ParsePayload(r *http.Request, maxBytes int64) (*Payload, error) {
	p := &Payload{Fields: make(map[string]string)}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
				p.Fields[k] = ""
			case string:
				p.Fields[k] = val
			default:
				p.Fields[k] = fmt.Sprint(val)
			}
		}
		return p, nil
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	for k, vals := range r.MultipartForm.Value {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		if v == "null" || v == "undefined" {
			v = ""
		}
		p.Fields[k] = v
	}

	if files := r.MultipartForm.File[PDFPart]; len(files) > 0 {
		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", PDFPart, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", PDFPart, err)
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
			contentType = "application/pdf"
		}
		p.Attachment = &model.Attachment{Filename: fh.Filename, ContentType: contentType, Data: data}
	}
	return p, nil
}
