package artifact

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/retrieval"
)

const formatVersion byte = 1

var magic = []byte("VQIDX")

// Snapshot is the on-disk form of a retrieval index.
type Snapshot struct {
	Version    int
	Model      string
	Cards      []domain.DefinitionCard
	Sources    []string
	Embeddings [][]float32
	Tokens     [][]string
	BuiltAt    time.Time
}

func FromIndex(snap retrieval.Snapshot, builtAt time.Time) Snapshot {
	out := Snapshot{
		Version:    int(formatVersion),
		Model:      snap.Model,
		Cards:      make([]domain.DefinitionCard, len(snap.Records)),
		Sources:    make([]string, len(snap.Records)),
		Embeddings: snap.Embeddings,
		Tokens:     snap.Tokens,
		BuiltAt:    builtAt.UTC(),
	}
	for i, rec := range snap.Records {
		out.Cards[i] = rec.Card
		out.Sources[i] = rec.Source
	}
	return out
}

func (s Snapshot) ToIndex() retrieval.Snapshot {
	records := make([]domain.CardRecord, len(s.Cards))
	for i := range s.Cards {
		records[i] = domain.CardRecord{Card: s.Cards[i], Source: s.Sources[i]}
	}
	return retrieval.Snapshot{
		Model:      s.Model,
		Records:    records,
		Embeddings: s.Embeddings,
		Tokens:     s.Tokens,
	}
}

// Validate reports structural problems as ErrCorruptArtifact.
func (s Snapshot) Validate() error {
	if s.Version != int(formatVersion) {
		return corrupt(fmt.Errorf("unsupported snapshot version %d", s.Version))
	}
	if len(s.Sources) != len(s.Cards) {
		return corrupt(fmt.Errorf("sources %d != cards %d", len(s.Sources), len(s.Cards)))
	}
	for i := range s.Cards {
		if err := s.Cards[i].Validate(); err != nil {
			return corrupt(fmt.Errorf("card %d: %w", i, err))
		}
	}
	idx := s.ToIndex()
	if err := idx.Validate(); err != nil {
		return corrupt(err)
	}
	return nil
}

func corrupt(err error) error {
	return domain.WrapError(domain.ErrCorruptArtifact, "decode artifact", err)
}

// Encode writes the magic header followed by a zstd-compressed gob stream.
func Encode(w io.Writer, snap Snapshot) error {
	if _, err := w.Write(append(append([]byte{}, magic...), formatVersion)); err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush artifact: %w", err)
	}
	return nil
}

// Decode reads and validates an artifact written by Encode.
func Decode(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)
	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, header); err != nil {
		return Snapshot{}, corrupt(fmt.Errorf("read header: %w", err))
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return Snapshot{}, corrupt(fmt.Errorf("bad magic %q", header[:len(magic)]))
	}
	if header[len(magic)] != formatVersion {
		return Snapshot{}, corrupt(fmt.Errorf("unsupported format version %d", header[len(magic)]))
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return Snapshot{}, corrupt(fmt.Errorf("open zstd stream: %w", err))
	}
	defer zr.Close()

	var snap Snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return Snapshot{}, corrupt(fmt.Errorf("decode gob: %w", err))
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
