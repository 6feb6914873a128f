// Package export writes realized conversations to disk in the formats
// downstream review tools ingest.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/identity"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChatExporter projects a chat conversation into one persisted schema.
type ChatExporter interface {
	Format() model.ChatFormat
	Export(conv *model.ChatConversation) (model.Artifact, error)
}

// Set fans a conversation out to every selected chat exporter.
type Set struct {
	exporters []ChatExporter
	log       *logger.Logger
}

// NewSet builds the exporters selected by format under root. Embellishments
// are drawn from generators derived from seed.
func NewSet(format model.ChatFormat, root string, dir *model.Directory, seed int64, log *logger.Logger) *Set {
	log = log.Named("export")
	s := &Set{log: log}
	if format.Includes(model.ChatSlack) {
		s.exporters = append(s.exporters, NewWorkspace(root, dir, seed, log))
	}
	if format.Includes(model.ChatTeams) {
		s.exporters = append(s.exporters, NewPortable(root, seed+1, log))
	}
	if format.Includes(model.ChatWebex) {
		s.exporters = append(s.exporters, NewHosted(root, seed+2, log))
	}
	return s
}

// NewSetOf wraps explicit exporters.
func NewSetOf(log *logger.Logger, exporters ...ChatExporter) *Set {
	return &Set{exporters: exporters, log: log}
}

// Exporters returns the configured exporters.
func (s *Set) Exporters() []ChatExporter {
	return s.exporters
}

// Export runs every exporter. A failing format does not stop the others;
// the artifacts that were written are returned with the joined errors.
func (s *Set) Export(conv *model.ChatConversation) ([]model.Artifact, error) {
	var (
		artifacts []model.Artifact
		errs      []error
	)
	for _, e := range s.exporters {
		a, err := e.Export(conv)
		if err != nil {
			s.log.Error("chat export failed",
				zap.String("format", string(e.Format())),
				zap.String("conversation", conv.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("failed to export %s: %w", e.Format(), err))
			continue
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, errors.Join(errs...)
}

// readJSON loads a JSON array from path. A missing file is empty.
func readJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var out []T
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return out, nil
}

// writeJSON replaces path atomically with the indented encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return writeFile(path, data)
}

// writeFile writes through a temporary file so readers never observe a
// partial document.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// mergeByKey appends incoming entries whose key is not yet present. The
// order of existing entries is kept.
func mergeByKey[T any](existing, incoming []T, key func(T) string) []T {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]T, 0, len(existing)+len(incoming))
	for _, e := range existing {
		seen[key(e)] = true
		out = append(out, e)
	}
	for _, e := range incoming {
		k := key(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// mergeFile merges incoming into the JSON array stored at path and writes
// the result back.
func mergeFile[T any](path string, incoming []T, key func(T) string) ([]T, error) {
	existing, err := readJSON[T](path)
	if err != nil {
		return nil, err
	}
	merged := mergeByKey(existing, incoming, key)
	if err := writeJSON(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// CustodianFolder returns the folder name for an address: its local part.
func CustodianFolder(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	local = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, local)
	if local == "" || local == "." || local == ".." {
		return "unknown"
	}
	return local
}

// embellisher decides per-event reactions and edits.
type embellisher struct {
	rng *rand.Rand
}

// newEmbellisher seeds decisions from the exporter seed and the
// conversation name, so the result does not depend on export order.
func newEmbellisher(seed int64, conversation string) embellisher {
	return embellisher{rng: rand.New(rand.NewSource(seed ^ identity.Seed(conversation)))}
}

// reaction returns reactors for a message body, or nil if it gets none.
// Short messages draw reactions twice as often.
func (e embellisher) reaction(body string, candidates []string) []string {
	chance := 0.15
	if len(body) < 20 {
		chance = 0.3
	}
	if e.rng.Float64() >= chance || len(candidates) == 0 {
		return nil
	}
	n := 1 + e.rng.Intn(min(3, len(candidates)))
	picked := make([]string, 0, n)
	for _, i := range e.rng.Perm(len(candidates))[:n] {
		picked = append(picked, candidates[i])
	}
	return picked
}

// pick returns one of options.
func (e embellisher) pick(options []string) string {
	return options[e.rng.Intn(len(options))]
}

// edit returns when a long message was edited, if it was.
func (e embellisher) edit(body string, at time.Time) (time.Time, bool) {
	if e.rng.Float64() >= 0.1 || len(body) <= 50 {
		return time.Time{}, false
	}
	return at.Add(time.Duration(30+e.rng.Intn(271)) * time.Second), true
}
