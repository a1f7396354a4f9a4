package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/logistics-platform/booking-dashboard/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	customMu     sync.Mutex
	customTags   = map[string]string{}
)

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// InitValidator initializes the shared validator and gin's binding validator
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(jsonTagName)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonTagName)
		}
	})
	return validate
}

// RegisterValidation adds a custom tag to both validators. message is used
// when formatting failures of that tag.
func RegisterValidation(tag, message string, fn validator.Func) error {
	v := InitValidator()
	if err := v.RegisterValidation(tag, fn); err != nil {
		return err
	}
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := engine.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	customMu.Lock()
	customTags[tag] = message
	customMu.Unlock()
	return nil
}

// validationFields maps each failed field to its message
func validationFields(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}
	return fields
}

func formatValidationError(e validator.FieldError) string {
	customMu.Lock()
	msg, ok := customTags[e.Tag()]
	customMu.Unlock()
	if ok {
		return msg
	}

	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gtefield":
		return "must not be before " + e.Param()
	default:
		return "is invalid"
	}
}

// BindAndValidate binds the JSON body into obj and validates it
func BindAndValidate(c *gin.Context, obj any) *apperrors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return toValidationError(err)
	}
	return nil
}

// BindQueryAndValidate binds query parameters into obj and validates it
func BindQueryAndValidate(c *gin.Context, obj any) *apperrors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) *apperrors.AppError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return apperrors.ErrValidationWithFields("validation failed", validationFields(validationErrors))
	}
	return apperrors.ErrValidation("invalid request: " + err.Error())
}

// sanitize strips null bytes and surrounding whitespace
func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// InputSanitizer sanitizes query parameters
func InputSanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		for key, values := range query {
			for i, v := range values {
				values[i] = sanitize(v)
			}
			query[key] = values
		}
		c.Request.URL.RawQuery = query.Encode()

		c.Next()
	}
}

// ContentType rejects non-JSON bodies on POST/PUT/PATCH
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case "POST", "PUT", "PATCH":
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength > 0 && !strings.HasPrefix(contentType, "application/json") {
				AbortWithAppError(c, apperrors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", 415))
				return
			}
		}
		c.Next()
	}
}
