package form

import (
	"errors"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/shhady/leadform/backend/model"
)

var (
	phonePattern      = regexp.MustCompile(`^0\d{9}$`)
	nationalIDPattern = regexp.MustCompile(`^\d{9}$`)
)

// answers mirrors the scalar fields for struct validation. Salary is the only
// optional answer.
type answers struct {
	FinishedWork            string `validate:"required" field:"finishedWork"`
	EndDate                 string `validate:"required" field:"endDate"`
	ClosingPapers           string `validate:"required" field:"closingPapers"`
	FinancialIssues         string `validate:"required" field:"financialIssues"`
	Disability              string `validate:"required" field:"disability"`
	DisabilityClaim         string `validate:"required" field:"disabilityClaim"`
	CurrentEmploymentStatus string `validate:"required" field:"currentEmploymentStatus"`
	Salary                  string `validate:"omitempty,numeric" field:"salary"`
	EmployerName            string `validate:"required" field:"employerName"`
	TransparentCall         string `validate:"required" field:"transparentCall"`
	FullName                string `validate:"required" field:"fullName"`
	Phone                   string `validate:"required,phone_il" field:"phone"`
	IDNumber                string `validate:"required,national_id" field:"idNumber"`
	City                    string `validate:"required" field:"city"`
}

// Validator checks a submission's answers before it is sent.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	_ = v.RegisterValidation("phone_il", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return nationalIDPattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Check returns a localized message per invalid field. An empty map means the
// answers are complete.
func (v *Validator) Check(fields map[model.FieldName]string) (map[model.FieldName]string, error) {
	a := answers{
		FinishedWork:            fields[model.FieldFinishedWork],
		EndDate:                 fields[model.FieldEndDate],
		ClosingPapers:           fields[model.FieldClosingPapers],
		FinancialIssues:         fields[model.FieldFinancialIssues],
		Disability:              fields[model.FieldDisability],
		DisabilityClaim:         fields[model.FieldDisabilityClaim],
		CurrentEmploymentStatus: fields[model.FieldCurrentEmploymentStatus],
		Salary:                  fields[model.FieldSalary],
		EmployerName:            fields[model.FieldEmployerName],
		TransparentCall:         fields[model.FieldTransparentCall],
		FullName:                fields[model.FieldFullName],
		Phone:                   fields[model.FieldPhone],
		IDNumber:                fields[model.FieldIDNumber],
		City:                    fields[model.FieldCity],
	}

	problems := make(map[model.FieldName]string)
	err := v.validate.Struct(a)
	if err == nil {
		return problems, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	for _, fe := range verrs {
		name := model.FieldName(fe.Field())
		problems[name] = message(fe.Tag())
	}
	return problems, nil
}

func message(tag string) string {
	switch tag {
	case "phone_il":
		return MsgPhone
	case "national_id":
		return MsgNationalID
	case "numeric":
		return "יש להזין מספר בלבד"
	default:
		return MsgRequired
	}
}
