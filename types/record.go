// Package types defines the DNS record model and sentinel errors used
// throughout the jw238ddns module.
package types

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// RecordType is the tag of a DNSRecord.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeCNAME RecordType = "CNAME"
)

// DefaultTTL is the TTL attached to every pushed record.
const DefaultTTL uint32 = 86400

// IsValid reports whether the RecordType is one the daemon can register.
func (rt RecordType) IsValid() bool {
	switch rt {
	case RecordTypeA, RecordTypeCNAME:
		return true
	default:
		return false
	}
}

// DNSRecord is a single registered binding. Type selects how Value is
// interpreted: an IPv4 literal for A, the alias target FQDN for CNAME.
type DNSRecord struct {
	Name  string     `json:"name" yaml:"name"`   // FQDN, the store key
	Type  RecordType `json:"type" yaml:"type"`   // A or CNAME
	TTL   uint32     `json:"ttl" yaml:"ttl"`     // seconds
	Value string     `json:"value" yaml:"value"` // IPv4 address or target FQDN
}

// NewARecord returns an A record binding fqdn to ip.
func NewARecord(fqdn, ip string) *DNSRecord {
	return &DNSRecord{
		Name:  NormalizeName(fqdn),
		Type:  RecordTypeA,
		TTL:   DefaultTTL,
		Value: strings.TrimSpace(ip),
	}
}

// NewCNAMERecord returns a CNAME record named fqdn aliasing target.
func NewCNAMERecord(fqdn, target string) *DNSRecord {
	return &DNSRecord{
		Name:  NormalizeName(fqdn),
		Type:  RecordTypeCNAME,
		TTL:   DefaultTTL,
		Value: NormalizeName(target),
	}
}

// NormalizeName lower-cases a domain name and strips surrounding
// whitespace and the trailing root dot.
func NormalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// Validate performs the basic checks every record must pass: a non-empty
// name, a known tag and a non-empty value.
func (r *DNSRecord) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecordType, r.Type)
	}
	if r.Value == "" {
		return fmt.Errorf("%w: empty value for %s", ErrInvalidValue, r.Name)
	}
	return nil
}

// ValidateStrict runs Validate and additionally checks that names are
// syntactically valid domain names and that A values are IPv4 literals.
func (r *DNSRecord) ValidateStrict() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, ok := dns.IsDomainName(r.Name); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidName, r.Name)
	}

	switch r.Type {
	case RecordTypeA:
		if _, err := ParseIPv4(r.Value); err != nil {
			return err
		}
	case RecordTypeCNAME:
		if _, ok := dns.IsDomainName(r.Value); !ok {
			return fmt.Errorf("%w: CNAME target %q", ErrInvalidName, r.Value)
		}
		if r.Value == r.Name {
			return fmt.Errorf("%w: %s aliases itself", ErrInvalidValue, r.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRecordType, r.Type)
	}
	return nil
}

// ParseIPv4 parses a dotted-quad literal into its four octets.
func ParseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("%w: %q is not IPv4", ErrInvalidAddress, s)
	}
	return v4, nil
}

// String renders the record the way nsupdate would see it.
func (r *DNSRecord) String() string {
	return fmt.Sprintf("%s %d %s %s", r.Name, r.TTL, r.Type, r.Value)
}

// Sentinel errors for record handling and storage.
var (
	ErrInvalidName       = errors.New("invalid domain name")
	ErrInvalidAddress    = errors.New("invalid IPv4 address")
	ErrInvalidValue      = errors.New("invalid record value")
	ErrInvalidRecordType = errors.New("invalid DNS record type")
	ErrStorageIO         = errors.New("storage I/O failure")
	ErrUnsupportedSchema = errors.New("unsupported storage schema version")
)
