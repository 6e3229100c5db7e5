package dto

import (
	"html"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"age-verification-gateway/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// variableSymbolRe matches the numeric payment reference a bank transfer carries,
// optionally written with the "VS" prefix banks print on statements.
var variableSymbolRe = regexp.MustCompile(`^(?i:vs)?[0-9]{1,10}$`)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	for tag, fn := range map[string]validator.Func{
		"variable_symbol": isVariableSymbol,
		"webhook_url":     isWebhookURL,
		"identity_method": isIdentityMethod,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}

func isVariableSymbol(fl validator.FieldLevel) bool {
	return variableSymbolRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// isWebhookURL accepts absolute http(s) URLs without credentials. Empty passes
// so that an empty value can clear the webhook.
func isWebhookURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || u.User != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// isIdentityMethod accepts the methods a shop may enable. Revalidate is not one.
func isIdentityMethod(fl validator.FieldLevel) bool {
	m, err := domain.ParseVerificationMethod(fl.Field().String())
	return err == nil && m.IsIdentityMethod()
}

// SanitizeStruct trims and HTML-escapes the string and *string fields of a
// struct pointer. Anything else is left alone.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	for _, sf := range reflect.VisibleFields(rv.Elem().Type()) {
		if !sf.IsExported() {
			continue
		}
		f := rv.Elem().FieldByIndex(sf.Index)
		if f.Kind() == reflect.Pointer && !f.IsNil() {
			f = f.Elem()
		}
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(html.EscapeString(strings.TrimSpace(f.String())))
		}
	}
}
