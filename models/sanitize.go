package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Descriptions may carry basic formatting; scripts, iframes and event handler
// attributes are stripped.
var descriptionPolicy = bluemonday.UGCPolicy()

func cleanDescription(s string) string {
	return strings.TrimSpace(descriptionPolicy.Sanitize(s))
}

// hasSafeContent fails a field that is empty once sanitized, e.g. "<script>x</script>".
func hasSafeContent(fl validator.FieldLevel) bool {
	return cleanDescription(fl.Field().String()) != ""
}
