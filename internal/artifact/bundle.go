package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/internal/features"
	"github.com/salescast/salescast/internal/model"
)

// FormatVersion is bumped whenever the payload layout changes incompatibly.
const FormatVersion = 1

// Bundle is the unit of deployment: the selected regressor together with the
// frozen encoder, history snapshot, mean tables and the exact feature schema
// it was trained against. Loaded as one atomic object so the parts can never
// diverge; read-only after load.
type Bundle struct {
	TrainedAt   time.Time
	Cutoff      time.Time
	Schema      contracts.FeatureSchema
	Encoder     *features.Encoder
	History     *features.HistoryStore
	Means       *features.MeanTables
	ExogColumns []string
	FlagColumns []string
	Model       model.Regressor
}

// payload is the serialized form of a Bundle.
type payload struct {
	Version     int                     `json:"version"`
	TrainedAt   time.Time               `json:"trained_at"`
	Cutoff      time.Time               `json:"cutoff"`
	Schema      contracts.FeatureSchema `json:"schema"`
	Encoder     *features.Encoder       `json:"encoder"`
	History     *features.HistoryStore  `json:"history"`
	Means       *features.MeanTables    `json:"means"`
	ExogColumns []string                `json:"exogenous_columns"`
	FlagColumns []string                `json:"event_flag_columns"`
	Model       modelPayload            `json:"model"`
}

type modelPayload struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params"`
}

// envelope wraps the payload with a checksum over its canonical bytes.
type envelope struct {
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Save writes the bundle atomically: temp file in the target directory, then
// rename. A partial write can never be mistaken for a valid artifact because
// the checksum would not verify.
func (b *Bundle) Save(path string) error {
	if err := b.Validate(); err != nil {
		return err
	}

	params, err := b.Model.MarshalParams()
	if err != nil {
		return fmt.Errorf("marshal model params: %w", err)
	}

	p := payload{
		Version:     FormatVersion,
		TrainedAt:   b.TrainedAt,
		Cutoff:      b.Cutoff,
		Schema:      b.Schema,
		Encoder:     b.Encoder,
		History:     b.History,
		Means:       b.Means,
		ExogColumns: b.ExogColumns,
		FlagColumns: b.FlagColumns,
		Model:       modelPayload{Name: b.Model.Name(), Params: params},
	}

	payloadBytes, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal artifact payload: %w", err)
	}

	sum, err := checksum(payloadBytes)
	if err != nil {
		return fmt.Errorf("checksum artifact payload: %w", err)
	}
	env := envelope{
		Checksum: sum,
		Payload:  payloadBytes,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Load reads and verifies a bundle. Any disagreement between the parts is an
// ArtifactConsistencyError and no prediction may be attempted.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &contracts.ArtifactConsistencyError{Detail: "unreadable envelope: " + err.Error()}
	}
	got, err := checksum(env.Payload)
	if err != nil {
		return nil, &contracts.ArtifactConsistencyError{Detail: "unreadable payload: " + err.Error()}
	}
	if got != env.Checksum {
		return nil, &contracts.ArtifactConsistencyError{Detail: "payload checksum mismatch"}
	}

	var p payload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, &contracts.ArtifactConsistencyError{Detail: "unreadable payload: " + err.Error()}
	}
	if p.Version != FormatVersion {
		return nil, &contracts.ArtifactConsistencyError{Detail: fmt.Sprintf(
			"format version %d, this build reads %d", p.Version, FormatVersion)}
	}

	regressor, err := model.New(p.Model.Name)
	if err != nil {
		return nil, &contracts.ArtifactConsistencyError{Detail: err.Error()}
	}
	if err := regressor.UnmarshalParams(p.Model.Params); err != nil {
		return nil, &contracts.ArtifactConsistencyError{Detail: "model params: " + err.Error()}
	}

	b := &Bundle{
		TrainedAt:   p.TrainedAt,
		Cutoff:      p.Cutoff,
		Schema:      p.Schema,
		Encoder:     p.Encoder,
		History:     p.History,
		Means:       p.Means,
		ExogColumns: p.ExogColumns,
		FlagColumns: p.FlagColumns,
		Model:       regressor,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate cross-checks the bundle parts.
func (b *Bundle) Validate() error {
	if b.Schema.Len() == 0 {
		return &contracts.ArtifactConsistencyError{Detail: "empty feature schema"}
	}
	if b.Encoder == nil || b.Encoder.Empty() {
		return &contracts.ArtifactConsistencyError{Detail: "empty categorical encoder"}
	}
	if b.History == nil {
		return &contracts.ArtifactConsistencyError{Detail: "missing history snapshot"}
	}
	if b.Means == nil {
		return &contracts.ArtifactConsistencyError{Detail: "missing mean tables"}
	}
	if b.Model == nil || b.Model.NumFeatures() == 0 {
		return &contracts.ArtifactConsistencyError{Detail: "model is not fitted"}
	}
	if b.Model.NumFeatures() != b.Schema.Len() {
		return &contracts.ArtifactConsistencyError{Detail: fmt.Sprintf(
			"model fitted on %d features, schema declares %d", b.Model.NumFeatures(), b.Schema.Len())}
	}
	if expected := features.BuildSchema(b.ExogColumns, b.FlagColumns); !b.Schema.Equal(expected) {
		return &contracts.ArtifactConsistencyError{Detail: "schema does not match declared columns"}
	}
	return nil
}

// checksum hashes the compact JSON form. The envelope is written indented,
// which re-formats the embedded payload bytes, so hashing the raw bytes would
// never verify after a round trip; compacting first makes the checksum a
// property of the payload's content, not its whitespace.
func checksum(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
