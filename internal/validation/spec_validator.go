package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/uupq/yutto-plus-sub000/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("safe_url", validateSafeURL)
}

// Validator returns the shared validator instance with the custom
// safe_url validation registered.
func Validator() *validator.Validate {
	return validate
}

// ValidateSpec checks a job spec at submission time. A failure here is
// a scheduling error: the job is rejected before entering the queue.
func ValidateSpec(spec domain.JobSpec) error {
	if err := validate.Struct(spec); err != nil {
		return fmt.Errorf("invalid job spec: %w", err)
	}

	if strings.ContainsAny(spec.OutputName, `/\`) {
		return fmt.Errorf("output name %q must not contain path separators", spec.OutputName)
	}

	return nil
}

// ValidateURLs rejects stream URLs pointing at loopback, private or
// link-local hosts. Applied at the API boundary.
func ValidateURLs(urls []string) error {
	for _, u := range urls {
		if err := validate.Var(u, "required,safe_url"); err != nil {
			return fmt.Errorf("invalid URL %q: %w", u, err)
		}
	}
	return nil
}

func validateSafeURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host == "" {
		return false
	}

	host := u.Hostname()

	forbiddenHosts := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
		"169.254.169.254",
	}

	for _, forbidden := range forbiddenHosts {
		if strings.EqualFold(host, forbidden) {
			return false
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() {
			return false
		}
	}

	return true
}
