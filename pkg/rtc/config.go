package rtc

import "fmt"

// IceCredentialType selects how an ICE server credential is interpreted
type IceCredentialType int

const (
	IceCredentialUnspecified IceCredentialType = iota
	IceCredentialPassword
	IceCredentialOAuth
)

func (t IceCredentialType) String() string {
	switch t {
	case IceCredentialPassword:
		return "password"
	case IceCredentialOAuth:
		return "oauth"
	default:
		return "unspecified"
	}
}

// ParseIceCredentialType accepts the W3C names plus "" for unspecified.
func ParseIceCredentialType(s string) (IceCredentialType, error) {
	switch s {
	case "", "unspecified":
		return IceCredentialUnspecified, nil
	case "password":
		return IceCredentialPassword, nil
	case "oauth":
		return IceCredentialOAuth, nil
	}
	return IceCredentialUnspecified, fmt.Errorf("unknown ice credential type %q", s)
}

// IceTransportPolicy restricts which candidates may be used
type IceTransportPolicy int

const (
	IceTransportPolicyAll IceTransportPolicy = iota
	IceTransportPolicyRelay
)

func (p IceTransportPolicy) String() string {
	if p == IceTransportPolicyRelay {
		return "relay"
	}
	return "all"
}

func ParseIceTransportPolicy(s string) (IceTransportPolicy, error) {
	switch s {
	case "", "all":
		return IceTransportPolicyAll, nil
	case "relay":
		return IceTransportPolicyRelay, nil
	}
	return IceTransportPolicyAll, fmt.Errorf("unknown ice transport policy %q", s)
}

// IceServer describes one STUN or TURN server. Username and Credential are
// optional; nil means "not set".
type IceServer struct {
	URLs           []string
	Username       *string
	Credential     *string
	CredentialType IceCredentialType
}

// Configuration is the backend-neutral peer connection configuration
type Configuration struct {
	IceServers         []IceServer
	IceTransportPolicy IceTransportPolicy
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
