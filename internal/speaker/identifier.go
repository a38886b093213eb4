package speaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soundbite-labs/soundbite-core/internal/speech"
)

// Unknown is reported when no bank clears the similarity threshold.
const Unknown = "Unknown"

// ErrInvalidEmbeddingShape marks an embedding that is not a flat vector.
// Higher-rank embeddings are rejected rather than reduced.
var ErrInvalidEmbeddingShape = errors.New("speaker embedding is not a flat vector")

// Result names the best-matching speaker bank and its mean similarity.
type Result struct {
	Name  string
	Score float64
}

type bank struct {
	name string
	refs [][]float64
}

type bankArtifact struct {
	Vectors [][]float64 `json:"vectors"`
}

// Identifier scores query embeddings against named reference banks. Banks
// are loaded once at construction and immutable afterwards; they are kept
// sorted by speaker name so ties always resolve the same way.
type Identifier struct {
	banks     []bank
	threshold float64
	log       *slog.Logger
}

const bankSuffix = "_embedding"

// NewIdentifier loads every {name}_embedding artifact under dir.
func NewIdentifier(dir string, threshold float64, log *slog.Logger) (*Identifier, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read embedding dir: %w", err)
	}

	id := &Identifier{
		threshold: threshold,
		log:       log.With(slog.String("component", "speaker-identifier")),
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), bankSuffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), bankSuffix)
		refs, err := loadBank(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("load bank %q: %w", name, err)
		}
		id.banks = append(id.banks, bank{name: name, refs: refs})
	}
	if len(id.banks) == 0 {
		return nil, fmt.Errorf("no speaker banks found in %s", dir)
	}
	sort.Slice(id.banks, func(i, j int) bool { return id.banks[i].name < id.banks[j].name })

	id.log.Info("speaker banks loaded", slog.Int("banks", len(id.banks)))
	return id, nil
}

func loadBank(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact bankArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse bank artifact: %w", err)
	}
	if len(artifact.Vectors) == 0 {
		return nil, errors.New("bank artifact holds no reference vectors")
	}
	return artifact.Vectors, nil
}

// Speakers returns the known bank names in their (stable) scoring order.
func (id *Identifier) Speakers() []string {
	names := make([]string, len(id.banks))
	for i, b := range id.banks {
		names[i] = b.name
	}
	return names
}

// Identify scores the embedding against every bank: cosine similarity per
// reference vector, averaged into one score per bank, best bank wins. A best
// score below the threshold overrides the decision to Unknown.
func (id *Identifier) Identify(emb speech.Embedding) (Result, error) {
	if !emb.Flat() {
		return Result{}, fmt.Errorf("%w: got rank %d", ErrInvalidEmbeddingShape, len(emb.Shape))
	}

	var best Result
	for i, b := range id.banks {
		score := meanSimilarity(emb.Data, b.refs)
		if i == 0 || score > best.Score {
			best = Result{Name: b.name, Score: score}
		}
	}
	if best.Score < id.threshold {
		best.Name = Unknown
	}
	return best, nil
}

func meanSimilarity(query []float64, refs [][]float64) float64 {
	var sum float64
	for _, ref := range refs {
		sum += cosine(query, ref)
	}
	return sum / float64(len(refs))
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
