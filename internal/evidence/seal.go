package evidence

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/canonical"
)

// Reasons a contract fails verification.
const (
	ReasonHashMismatch       = "integrity_hash_mismatch"
	ReasonIntegrityMissing   = "integrity_missing"
	ReasonUnsupportedVersion = "unsupported_version"
	ReasonMalformedJSON      = "malformed_json"
	ReasonSchemaViolation    = "schema_violation"
)

// Seal hashes the canonical form of body and wraps it in the integrity
// envelope.
func Seal(body Body) (Contract, error) {
	h, err := canonical.Hash(body)
	if err != nil {
		return Contract{}, fmt.Errorf("seal evidence: %w", err)
	}
	return Contract{Body: body, Integrity: &Integrity{Algorithm: Algorithm, PayloadHash: h}}, nil
}

// Verified is the outcome of Verify. On success Contract holds the
// canonical-version contract and SourceVersion the version found on disk.
type Verified struct {
	Valid         bool
	Contract      *Contract
	SourceVersion string
	Reason        string
	Detail        string
}

func invalid(reason, detail string) Verified {
	return Verified{Reason: reason, Detail: detail}
}

//go:embed schema/evidence.schema.json
var schemaJSON []byte

const schemaURL = "https://pumuki.local/schema/evidence.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func evidenceSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("evidence schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Verify checks a serialized contract. The hash is recomputed over the body
// exactly as stored, so unknown fields are covered too; only integrity and
// the ledger are left out. Legacy contracts are re-canonicalized to the
// current version with a fresh hash.
func Verify(data []byte) Verified {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return invalid(ReasonMalformedJSON, err.Error())
	}
	version, _ := doc["version"].(string)
	if version != Version && version != LegacyVersion {
		return invalid(ReasonUnsupportedVersion, fmt.Sprintf("version=%v", doc["version"]))
	}
	schema, err := evidenceSchema()
	if err != nil {
		return invalid(ReasonSchemaViolation, err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		return invalid(ReasonSchemaViolation, err.Error())
	}

	integrity, ok := doc["integrity"].(map[string]any)
	if !ok {
		return invalid(ReasonIntegrityMissing, "")
	}
	want, _ := integrity["payload_hash"].(string)
	delete(doc, "integrity")
	delete(doc, "ledger")
	got, err := canonical.Hash(doc)
	if err != nil {
		return invalid(ReasonMalformedJSON, err.Error())
	}
	if got != want {
		return invalid(ReasonHashMismatch, fmt.Sprintf("expected %s, computed %s", want, got))
	}

	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return invalid(ReasonSchemaViolation, err.Error())
	}
	if version == LegacyVersion {
		c.Version = Version
		resealed, err := Seal(c.Body)
		if err != nil {
			return invalid(ReasonMalformedJSON, err.Error())
		}
		resealed.Ledger = c.Ledger
		c = resealed
	}
	return Verified{Valid: true, Contract: &c, SourceVersion: version}
}
