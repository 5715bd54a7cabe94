// Package form normalises and validates the answers typed into the lead form.
package form

import (
	"strconv"
	"strings"

	"github.com/shhady/leadform/backend/model"
)

const (
	PhoneDigits      = 10
	NationalIDDigits = 9
	maxDateLength    = len("DD/MM/YYYY")
)

// Localized validation messages.
const (
	MsgPhone      = "מספר טלפון חייב להכיל 10 ספרות ולהתחיל ב-0"
	MsgNationalID = "מספר תעודת זהות חייב להכיל 9 ספרות"
	MsgRequired   = "שדה חובה"
)

// Result is the outcome of applying one input event to a field.
// When Accepted is false the input was rejected and Value is the previous
// value unchanged.
type Result struct {
	Value    string `json:"value"`
	Error    string `json:"error"`
	Accepted bool   `json:"accepted"`
}

// Apply normalises raw for field given the currently stored value.
func Apply(field model.FieldName, previous, raw string) Result {
	switch field {
	case model.FieldPhone:
		return FormatPhone(previous, raw)
	case model.FieldIDNumber:
		return FormatNationalID(previous, raw)
	case model.FieldEndDate:
		value, ok := MaskDate(previous, raw)
		if !ok {
			return Result{Value: previous}
		}
		return Result{Value: value, Accepted: true}
	default:
		return Result{Value: raw, Accepted: true}
	}
}

// FormatPhone keeps digits only. A leading digit other than 0 or more than
// ten digits rejects the input.
func FormatPhone(previous, raw string) Result {
	cleaned := digitsOnly(raw)
	if cleaned != "" && cleaned[0] != '0' {
		return Result{Value: previous, Error: PhoneError(previous)}
	}
	if len(cleaned) > PhoneDigits {
		return Result{Value: previous, Error: PhoneError(previous)}
	}
	return Result{Value: cleaned, Error: PhoneError(cleaned), Accepted: true}
}

// PhoneError returns the validation message for a stored phone value.
func PhoneError(value string) string {
	if value != "" && (len(value) != PhoneDigits || !strings.HasPrefix(value, "0")) {
		return MsgPhone
	}
	return ""
}

// FormatNationalID keeps digits only and rejects more than nine.
func FormatNationalID(previous, raw string) Result {
	cleaned := digitsOnly(raw)
	if len(cleaned) > NationalIDDigits {
		return Result{Value: previous, Error: NationalIDError(previous)}
	}
	return Result{Value: cleaned, Error: NationalIDError(cleaned), Accepted: true}
}

// NationalIDError returns the validation message for a stored id value.
func NationalIDError(value string) string {
	if value != "" && len(value) != NationalIDDigits {
		return MsgNationalID
	}
	return ""
}

// MaskDate formats keystrokes into DD/MM/YYYY. Shrinking input is a deletion
// and is stored as typed. Input that grows by more than one character is
// treated as a paste: its digits are replayed one at a time.
func MaskDate(previous, raw string) (string, bool) {
	if len(raw) < len(previous) {
		return raw, true
	}
	if len(raw)-len(previous) > 1 {
		return replayDate(raw), true
	}
	return maskDateKeystroke(raw)
}

func replayDate(raw string) string {
	digits := digitsOnly(raw)
	if len(digits) > 8 {
		digits = digits[:8]
	}
	value := ""
	for _, d := range digits {
		if next, ok := maskDateKeystroke(value + string(d)); ok {
			value = next
		}
	}
	return value
}

func maskDateKeystroke(value string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '/' {
			return r
		}
		return -1
	}, value)
	if len(cleaned) > maxDateLength {
		return "", false
	}

	parts := strings.Split(cleaned, "/")
	formatted := cleaned

	if parts[0] != "" && !strings.Contains(value, "/") && len(parts[0]) == 2 {
		if day, _ := strconv.Atoi(parts[0]); day > 0 && day <= 31 {
			formatted = parts[0] + "/"
		} else {
			formatted = "31/"
		}
	}

	if len(parts) == 2 && len(parts[1]) == 2 {
		if month, _ := strconv.Atoi(parts[1]); month > 0 && month <= 12 {
			formatted += "/"
		} else {
			formatted = parts[0] + "/12/"
		}
	}

	if len(parts) > 2 && len(parts[2]) > 4 {
		formatted = parts[0] + "/" + parts[1] + "/" + parts[2][:4]
	}

	return formatted, true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
