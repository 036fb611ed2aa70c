package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// TLS version constants
const (
	VersionTLS12 = 0x0303
	VersionTLS13 = 0x0304
)

// TLS 1.3 Cipher Suites
const (
	TLS_AES_128_GCM_SHA256       = 0x1301
	TLS_AES_256_GCM_SHA384       = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 = 0x1303
)

// TLS 1.2 AEAD Cipher Suites (following Go's crypto/tls constants)
const (
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256         = 0xc02f
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256       = 0xc02b
	TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384         = 0xc030
	TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384       = 0xc02c
	TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256   = 0xcca8
	TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256 = 0xcca9
)

// CipherSuiteInfo describes a cipher suite a notarized session may use.
type CipherSuiteInfo struct {
	ID         uint16
	Name       string
	ShortName  string
	TLSVersion uint16 // VersionTLS12 or VersionTLS13
	Algorithm  string // "AES-128-GCM", "AES-256-GCM", "ChaCha20-Poly1305"
}

// AllCipherSuites lists the AEAD suites a handshake summary may name.
var AllCipherSuites = []CipherSuiteInfo{
	{TLS_AES_128_GCM_SHA256, "TLS_AES_128_GCM_SHA256", "AES_128_GCM", VersionTLS13, "AES-128-GCM"},
	{TLS_AES_256_GCM_SHA384, "TLS_AES_256_GCM_SHA384", "AES_256_GCM", VersionTLS13, "AES-256-GCM"},
	{TLS_CHACHA20_POLY1305_SHA256, "TLS_CHACHA20_POLY1305_SHA256", "CHACHA20_POLY1305", VersionTLS13, "ChaCha20-Poly1305"},
	{TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256", "ECDHE-RSA-AES128-GCM-SHA256", VersionTLS12, "AES-128-GCM"},
	{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256", "ECDHE-ECDSA-AES128-GCM-SHA256", VersionTLS12, "AES-128-GCM"},
	{TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384, "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384", "ECDHE-RSA-AES256-GCM-SHA384", VersionTLS12, "AES-256-GCM"},
	{TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384", "ECDHE-ECDSA-AES256-GCM-SHA384", VersionTLS12, "AES-256-GCM"},
	{TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256, "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256", "ECDHE-RSA-CHACHA20-POLY1305", VersionTLS12, "ChaCha20-Poly1305"},
	{TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256, "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256", "ECDHE-ECDSA-CHACHA20-POLY1305", VersionTLS12, "ChaCha20-Poly1305"},
}

var (
	cipherSuiteByName = make(map[string]uint16)
	cipherSuiteByID   = make(map[uint16]*CipherSuiteInfo)
)

func init() {
	for i := range AllCipherSuites {
		info := &AllCipherSuites[i]
		cipherSuiteByID[info.ID] = info
		cipherSuiteByName[info.Name] = info.ID
		cipherSuiteByName[info.ShortName] = info.ID
	}
}

// ParseCipherSuite converts a cipher suite string (hex or name) to its ID.
func ParseCipherSuite(cipherSuite string) (uint16, error) {
	if cipherSuite == "" {
		return 0, Errorf(KindConfig, "parse cipher suite", "empty cipher suite")
	}
	if strings.HasPrefix(cipherSuite, "0x") {
		val, err := strconv.ParseUint(cipherSuite[2:], 16, 16)
		if err != nil {
			return 0, Errorf(KindConfig, "parse cipher suite", "invalid hex cipher suite %q: %w", cipherSuite, err)
		}
		return uint16(val), nil
	}
	if id, found := cipherSuiteByName[cipherSuite]; found {
		return id, nil
	}
	return 0, Errorf(KindConfig, "parse cipher suite", "unknown cipher suite %q", cipherSuite)
}

// GetCipherSuiteInfo returns the catalogue entry for id.
func GetCipherSuiteInfo(id uint16) (*CipherSuiteInfo, bool) {
	info, found := cipherSuiteByID[id]
	return info, found
}

// GetCipherSuiteName returns the human-readable name for a cipher suite ID
func GetCipherSuiteName(id uint16) string {
	if info, found := cipherSuiteByID[id]; found {
		return info.Name
	}
	return fmt.Sprintf("0x%04x", id)
}
