// Package upload turns submitted file content into parsed slot state. Files
// within one upload are parsed concurrently and joined in selection order,
// so file A's rows precede file B's regardless of which parse finishes
// first. A slot is always replaced wholesale.
package upload

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"parcel-audit/internal/domain"
	"parcel-audit/internal/ingest"
	"parcel-audit/internal/store"
	"parcel-audit/pkg/logger"
)

// File is one submitted file: a name and its whole content.
type File struct {
	Name    string
	Content []byte
}

// FileSummary describes one parsed file in a slot.
type FileSummary struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// SlotSummary is the upload state reported for one slot.
type SlotSummary struct {
	Kind        domain.SourceKind `json:"kind"`
	Carrier     domain.Carrier    `json:"carrier,omitempty"`
	Files       []FileSummary     `json:"files"`
	RecordCount int               `json:"record_count"`
	Seq         uint64            `json:"seq"`
	UploadedAt  time.Time         `json:"uploaded_at"`
}

type Service interface {
	Store(kind domain.SourceKind, carrier domain.Carrier, layout string, files []File) (SlotSummary, error)
	List() []SlotSummary
	Clear(kind domain.SourceKind) bool
}

type service struct {
	slots store.SlotStore
}

func NewService(slots store.SlotStore) Service {
	return &service{slots: slots}
}

// Store parses the files and replaces the slot. A file whose content cannot
// be parsed at all contributes zero records; the rest of the batch still
// loads. The error cases are an unknown layout and a stale sequence.
func (s *service) Store(kind domain.SourceKind, carrier domain.Carrier, layout string, files []File) (SlotSummary, error) {
	opts, err := layoutOptions(layout)
	if err != nil {
		return SlotSummary{}, err
	}

	seq := s.slots.NextSeq(kind)

	parsed := make([]domain.UploadedFile, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			records, err := parseFile(f, opts)
			if err != nil {
				logger.GetLogger().WithError(err).WithField("file", f.Name).Warn("Failed to parse uploaded file")
			}
			parsed[i] = domain.UploadedFile{Name: f.Name, Records: records}
		}(i, f)
	}
	wg.Wait()

	slot := domain.SourceSlot{
		Kind:       kind,
		Carrier:    carrier,
		Files:      parsed,
		Seq:        seq,
		UploadedAt: time.Now(),
	}
	if err := s.slots.Put(slot); err != nil {
		return SlotSummary{}, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"slot":    kind,
		"files":   len(parsed),
		"records": slot.RecordCount(),
		"seq":     seq,
	}).Info("Upload slot replaced")

	return summarize(slot), nil
}

func (s *service) List() []SlotSummary {
	state := s.slots.Snapshot()
	var out []SlotSummary
	if state.HasCarrier {
		out = append(out, summarize(state.Carrier))
	}
	if state.HasPOS {
		out = append(out, summarize(state.POS))
	}
	return out
}

func (s *service) Clear(kind domain.SourceKind) bool {
	return s.slots.Clear(kind)
}

func parseFile(f File, opts ingest.Options) ([]domain.RawRecord, error) {
	if ingest.IsXLSX(f.Name) {
		return ingest.ParseXLSX(f.Name, f.Content, opts)
	}
	return ingest.Parse(f.Name, f.Content, opts)
}

// layoutOptions maps the API-level layout names onto header detection
// modes. The default sniffs, which degrades to first-line detection for
// clean files and skips preambles for dirty ones.
func layoutOptions(layout string) (ingest.Options, error) {
	switch layout {
	case "", "auto":
		return ingest.Options{Mode: ingest.HeaderSniff}, nil
	case "firstline":
		return ingest.Options{Mode: ingest.HeaderFirstLine}, nil
	case "fixed9":
		return ingest.Options{Mode: ingest.HeaderFixedSkip, SkipLines: ingest.ReferencePreambleLines}, nil
	}
	return ingest.Options{}, fmt.Errorf("unknown layout %q (want auto, firstline or fixed9)", layout)
}

func summarize(slot domain.SourceSlot) SlotSummary {
	files := make([]FileSummary, 0, len(slot.Files))
	for _, f := range slot.Files {
		files = append(files, FileSummary{Name: f.Name, Records: len(f.Records)})
	}
	return SlotSummary{
		Kind:        slot.Kind,
		Carrier:     slot.Carrier,
		Files:       files,
		RecordCount: slot.RecordCount(),
		Seq:         slot.Seq,
		UploadedAt:  slot.UploadedAt,
	}
}
