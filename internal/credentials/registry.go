package credentials

import (
	"fmt"
	"strings"
)

// Service identifies an external service an owner can hold a credential for
type Service int

const (
	ServiceOpenAI Service = iota + 1
	ServiceGmail
)

// Services lists every supported service kind
var Services = []Service{ServiceOpenAI, ServiceGmail}

// String returns the wire name of the service
func (s Service) String() string {
	switch s {
	case ServiceOpenAI:
		return "openai"
	case ServiceGmail:
		return "gmail"
	default:
		return fmt.Sprintf("service(%d)", int(s))
	}
}

// RequiresUserCredential reports whether the service refuses to fall back to
// the system-wide default credential
func (s Service) RequiresUserCredential() bool {
	switch s {
	case ServiceGmail:
		return true
	default:
		return false
	}
}

// ParseService resolves a wire name into a Service
func ParseService(name string) (Service, error) {
	for _, s := range Services {
		if strings.EqualFold(strings.TrimSpace(name), s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unsupported service: %q", name)
}
