package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker matches sender addresses against a list of protected domains.
// Subdomains of a listed domain match as well.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if domain != "" {
			normalized = append(normalized, domain)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized protected domain checker", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// Domains returns the normalized domain list
func (c *Checker) Domains() []string {
	return c.domains
}

// IsWhitelisted checks if the sender's domain is protected.
// sender may be a bare address or a display form such as "Jane <jane@example.com>".
func (c *Checker) IsWhitelisted(sender string) bool {
	if c == nil || len(c.domains) == 0 {
		return false
	}

	domain := SenderDomain(sender)
	if domain == "" {
		return false
	}

	for _, protected := range c.domains {
		if domain == protected || strings.HasSuffix(domain, "."+protected) {
			if c.logger != nil {
				c.logger.Debug("Sender domain is protected",
					zap.String("domain", domain),
					zap.String("sender", sender))
			}
			return true
		}
	}

	return false
}

// SenderDomain extracts the lower-cased domain of an address, or "" if there is none
func SenderDomain(sender string) string {
	address := sender
	if parsed, err := mail.ParseAddress(sender); err == nil {
		address = parsed.Address
	}

	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(address[at+1:], "> "))
}
