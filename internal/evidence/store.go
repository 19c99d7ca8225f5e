package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type ReadKind string

const (
	ReadMissing ReadKind = "missing"
	ReadInvalid ReadKind = "invalid"
	ReadValid   ReadKind = "valid"
)

// ReadResult is what a reader of a persisted contract gets back. Version is
// the raw version found on disk, when one could be read.
type ReadResult struct {
	Kind          ReadKind
	Contract      *Contract
	SourceVersion string
	Version       string
	Reason        string
	Detail        string
}

// Read loads and verifies the contract at path.
func Read(path string) ReadResult {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ReadResult{Kind: ReadMissing}
	}
	if err != nil {
		return ReadResult{Kind: ReadInvalid, Reason: ReasonMalformedJSON, Detail: err.Error()}
	}
	v := Verify(data)
	if !v.Valid {
		return ReadResult{Kind: ReadInvalid, Version: rawVersion(data), Reason: v.Reason, Detail: v.Detail}
	}
	return ReadResult{Kind: ReadValid, Contract: v.Contract, SourceVersion: v.SourceVersion, Version: v.SourceVersion}
}

func rawVersion(data []byte) string {
	var probe struct {
		Version any `json:"version"`
	}
	if json.Unmarshal(data, &probe) != nil || probe.Version == nil {
		return ""
	}
	return fmt.Sprint(probe.Version)
}

// Write persists c atomically: readers see either the old file or the new
// one, never a partial write.
func Write(path string, c Contract) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create evidence dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp evidence: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp evidence: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp evidence: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp evidence: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("chmod temp evidence: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace evidence: %w", err)
	}
	syncDir(dir)
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

var snapshotNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://pumuki.dev/evidence/snapshot"))

// SnapshotID derives a stable UUIDv5 from a payload hash.
func SnapshotID(payloadHash string) string {
	return uuid.NewSHA1(snapshotNamespace, []byte(payloadHash)).String()
}
