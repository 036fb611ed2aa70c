package proofverifier

import (
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"tlsn-notary/shared"
)

// Register custom formats on init
func init() {
	// digest: 32 bytes as plain hex, as roots, salts and digests are written
	gojsonschema.FormatCheckers.Add("digest", digestFormatChecker{})
	// hexbytes: 0x-prefixed hex of any length
	gojsonschema.FormatCheckers.Add("hexbytes", hexBytesFormatChecker{})
}

type digestFormatChecker struct{}

func (digestFormatChecker) IsFormat(input interface{}) bool {
	str, ok := input.(string)
	if !ok || len(str) != 64 {
		return false
	}
	_, err := hex.DecodeString(str)
	return err == nil
}

var hexBytesPattern = regexp.MustCompile(`^0x([0-9a-fA-F]{2})*$`)

type hexBytesFormatChecker struct{}

func (hexBytesFormatChecker) IsFormat(input interface{}) bool {
	str, ok := input.(string)
	return ok && hexBytesPattern.MatchString(str)
}

const bundleSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "header", "proof", "notary_key"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "header": {
      "type": "object",
      "required": ["header", "signature"],
      "properties": {
        "header": {
          "type": "object",
          "required": ["version", "session_id", "root", "leaf_count", "sent_len", "recv_len", "notarized_at", "handshake", "notary_key_id"],
          "properties": {
            "version": {"type": "integer", "minimum": 1},
            "session_id": {"type": "string", "minLength": 36, "maxLength": 36},
            "root": {"type": "string", "format": "digest"},
            "leaf_count": {"type": "integer", "minimum": 1},
            "sent_len": {"type": "integer", "minimum": 0},
            "recv_len": {"type": "integer", "minimum": 0},
            "notarized_at": {"type": "string", "format": "date-time"},
            "handshake": {
              "type": "object",
              "required": ["time", "server_name", "cipher_suite", "commitment"],
              "properties": {
                "time": {"type": "string", "format": "date-time"},
                "server_name": {"type": "string", "minLength": 1},
                "cipher_suite": {"type": "integer", "minimum": 0, "maximum": 65535},
                "commitment": {"type": "string", "format": "digest"}
              }
            },
            "notary_key_id": {"type": "string", "format": "hexbytes"}
          }
        },
        "signature": {"$ref": "#/definitions/keyed"}
      }
    },
    "proof": {
      "type": "object",
      "required": ["version", "root", "openings", "multi_proof"],
      "properties": {
        "version": {"type": "integer", "minimum": 1},
        "root": {"type": "string", "format": "digest"},
        "openings": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["id", "kind", "slice", "salt", "data", "digest"],
            "properties": {
              "id": {"type": "integer", "minimum": 0},
              "kind": {"enum": ["sha256", "blake3", "keccak256"]},
              "slice": {
                "type": "object",
                "required": ["direction", "start", "length"],
                "properties": {
                  "direction": {"enum": [1, 2]},
                  "start": {"type": "integer", "minimum": 0},
                  "length": {"type": "integer", "minimum": 1}
                }
              },
              "salt": {"type": "string", "format": "digest"},
              "data": {"type": "string"},
              "digest": {"type": "string", "format": "digest"}
            }
          }
        },
        "multi_proof": {
          "type": "object",
          "required": ["leaf_count", "siblings"],
          "properties": {
            "leaf_count": {"type": "integer", "minimum": 1},
            "siblings": {
              "type": ["array", "null"],
              "items": {"type": "string", "format": "digest"}
            }
          }
        }
      }
    },
    "handshake_data": {
      "type": "object",
      "required": ["server_name", "cipher_suite"],
      "properties": {
        "server_name": {"type": "string", "minLength": 1},
        "cipher_suite": {"type": "integer", "minimum": 0, "maximum": 65535},
        "client_random": {"type": "string", "format": "hexbytes"},
        "server_random": {"type": "string", "format": "hexbytes"},
        "cert_chain": {
          "type": ["array", "null"],
          "items": {"type": "string", "format": "hexbytes"}
        }
      }
    },
    "notary_key": {"$ref": "#/definitions/keyed"}
  },
  "definitions": {
    "keyed": {
      "type": "object",
      "required": ["algorithm"],
      "properties": {
        "algorithm": {"enum": ["secp256k1-eth", "p256-sha256"]},
        "bytes": {"type": "string", "format": "hexbytes"},
        "key": {"type": "string", "format": "hexbytes"}
      }
    }
  }
}`

var (
	compiledSchema *gojsonschema.Schema
	schemaErr      error
	schemaOnce     sync.Once
)

func bundleValidator() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(bundleSchema))
	})
	return compiledSchema, schemaErr
}

// ValidateSchema checks a bundle document's shape before it is decoded.
// All violations are reported together.
func ValidateSchema(data []byte) error {
	const op = "validate bundle schema"
	schema, err := bundleValidator()
	if err != nil {
		return shared.NewError(shared.KindConfig, op, err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return shared.NewError(shared.KindEncoding, op, err)
	}
	if !result.Valid() {
		var b strings.Builder
		for _, e := range result.Errors() {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.String())
		}
		return shared.Errorf(shared.KindEncoding, op, "%s", b.String())
	}
	return nil
}
