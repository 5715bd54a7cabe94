package service

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhady/leadform/backend/model"
)

func completeSubmission() *model.Submission {
	sub := model.NewSubmission("s1", "agent1")
	for _, f := range model.Fields {
		sub.Fields[f] = "כן"
	}
	sub.Fields[model.FieldFullName] = "ישראל ישראלי"
	sub.Fields[model.FieldPhone] = "0521234567"
	sub.Fields[model.FieldIDNumber] = "123456789"
	sub.Fields[model.FieldEndDate] = "31/12/2024"
	sub.Fields[model.FieldSalary] = ""
	for _, name := range model.Slots {
		*sub.Slot(name) = model.Slot{
			State:    model.SlotResolved,
			Progress: 100,
			URL:      "https://res.cloudinary.com/shhady/image/upload/v1/" + string(name) + ".jpg",
		}
	}
	return sub
}

func withPDF(sub *model.Submission) *model.Submission {
	*sub.Slot(model.SlotBankApproval) = model.Slot{
		State:    model.SlotResolved,
		Progress: 100,
		Attachment: &model.Attachment{
			Filename:    "approval.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4 test"),
		},
	}
	return sub
}

func TestBuildPayloadURLs(t *testing.T) {
	p := BuildPayload(completeSubmission())

	assert.Nil(t, p.Attachment)
	assert.Equal(t, "agent1", p.Get(AgentField))
	assert.Equal(t, "0521234567", p.Get("phone"))
	assert.Equal(t, "", p.Get("salary"))
	for _, name := range model.Slots {
		assert.Contains(t, p.Get(string(name)), string(name)+".jpg")
	}
	// every answer is present, even empty ones
	for _, f := range model.Fields {
		_, ok := p.Fields[string(f)]
		assert.True(t, ok, f)
	}
}

func TestBuildPayloadPDF(t *testing.T) {
	p := BuildPayload(withPDF(completeSubmission()))

	assert.Equal(t, PDFSentinel, p.Get(string(model.SlotBankApproval)))
	require.NotNil(t, p.Attachment)
	assert.Equal(t, "approval.pdf", p.Attachment.Filename)
}

func TestBuildPayloadWithoutAgent(t *testing.T) {
	sub := completeSubmission()
	sub.Agent = ""
	p := BuildPayload(sub)

	_, ok := p.Fields[AgentField]
	assert.False(t, ok)
}

func TestEncodeJSON(t *testing.T) {
	p := BuildPayload(completeSubmission())

	body, contentType, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, p.Fields, decoded)
}

func TestEncodeMultipart(t *testing.T) {
	p := BuildPayload(withPDF(completeSubmission()))

	body, contentType, err := p.Encode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))

	req := httptest.NewRequest(http.MethodPost, "/api/send-email", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	require.NoError(t, req.ParseMultipartForm(1<<20))

	assert.Equal(t, PDFSentinel, req.FormValue("bankApproval"))
	assert.Equal(t, "ישראל ישראלי", req.FormValue("fullName"))

	files := req.MultipartForm.File[PDFPart]
	require.Len(t, files, 1)
	assert.Equal(t, "application/pdf", files[0].Header.Get("Content-Type"))
}

func TestParsePayloadRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		sub  *model.Submission
	}{
		{"json", completeSubmission()},
		{"multipart", withPDF(completeSubmission())},
	} {
		t.Run(tc.name, func(t *testing.T) {
			orig := BuildPayload(tc.sub)
			body, contentType, err := orig.Encode()
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/send-email", bytes.NewReader(body))
			req.Header.Set("Content-Type", contentType)

			parsed, err := ParsePayload(req, 8<<20)
			require.NoError(t, err)
			assert.Equal(t, orig.Fields, parsed.Fields)
			if orig.Attachment == nil {
				assert.Nil(t, parsed.Attachment)
			} else {
				require.NotNil(t, parsed.Attachment)
				assert.Equal(t, orig.Attachment.Data, parsed.Attachment.Data)
			}
		})
	}
}

func TestParsePayloadNullStrings(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("fullName", "דנה"))
	require.NoError(t, w.WriteField("salary", "null"))
	require.NoError(t, w.WriteField("employerName", "undefined"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/send-email", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	p, err := ParsePayload(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "דנה", p.Get("fullName"))
	assert.Equal(t, "", p.Get("salary"))
	assert.Equal(t, "", p.Get("employerName"))
	assert.Nil(t, p.Attachment)
}

func TestParsePayloadJSONNonStrings(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/send-email",
		strings.NewReader(`{"fullName":"דנה","salary":12000,"city":null}`))
	req.Header.Set("Content-Type", "application/json")

	p, err := ParsePayload(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "12000", p.Get("salary"))
	assert.Equal(t, "", p.Get("city"))
}

func TestParsePayloadInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/send-email", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")

	_, err := ParsePayload(req, 1<<20)
	assert.Error(t, err)
}
