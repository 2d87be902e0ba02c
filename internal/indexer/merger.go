package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/segment"
)

// mergeSegments combines the live documents of inputs into one segment's
// data. Ordinals are renumbered densely in input order and deleted documents
// are dropped along with terms left without postings.
func mergeSegments(inputs []*liveSegment) (segment.Data, error) {
	remaps := make([][]int, len(inputs))
	total := 0
	for i, seg := range inputs {
		remap := make([]int, seg.reader.DocCount())
		for doc := range remap {
			if _, gone := seg.deleted[doc]; gone {
				remap[doc] = -1
				continue
			}
			remap[doc] = total
			total++
		}
		remaps[i] = remap
	}

	merged := make(map[index.Term]index.PostingList)
	stored := make([]index.StoredDocument, 0, total)
	norms := make(map[string][]int)
	for i, seg := range inputs {
		data, err := seg.reader.Data()
		if err != nil {
			return segment.Data{}, fmt.Errorf("reading segment %s: %w", seg.reader.Name(), err)
		}
		remap := remaps[i]
		for _, entry := range data.Entries {
			for _, p := range entry.Postings {
				if remap[p.Doc] < 0 {
					continue
				}
				merged[entry.Term] = append(merged[entry.Term], index.Posting{
					Doc:       remap[p.Doc],
					Frequency: p.Frequency,
					Positions: p.Positions,
				})
			}
		}
		for doc, fields := range data.Stored {
			if remap[doc] >= 0 {
				stored = append(stored, fields)
			}
		}
		for field, lengths := range data.Norms {
			out, ok := norms[field]
			if !ok {
				out = make([]int, total)
				norms[field] = out
			}
			for doc, l := range lengths {
				if doc < len(remap) && remap[doc] >= 0 {
					out[remap[doc]] = l
				}
			}
		}
	}

	entries := make([]index.TermEntry, 0, len(merged))
	for term, pl := range merged {
		entries = append(entries, index.TermEntry{Term: term, Postings: pl})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term.Less(entries[j].Term)
	})
	return segment.Data{DocCount: total, Entries: entries, Stored: stored, Norms: norms}, nil
}

// mergeLocked replaces segments[start:start+width] with their merge, commits
// the result and removes the input files.
func (e *Engine) mergeLocked(start, width int) error {
	started := time.Now()
	inputs := e.segments[start : start+width]
	data, err := mergeSegments(inputs)
	if err != nil {
		e.observeMerge("error")
		return err
	}

	var replacement []*liveSegment
	if data.DocCount > 0 {
		name := fmt.Sprintf("seg_%d", e.manifest.NextSegment)
		if _, err := e.writer.Write(name, data); err != nil {
			e.observeMerge("error")
			return fmt.Errorf("writing merged segment: %w", err)
		}
		e.manifest.NextSegment++
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, segment.FileName(name)), e.cfg.PostingsCacheSize)
		if err != nil {
			e.observeMerge("error")
			return fmt.Errorf("opening merged segment: %w", err)
		}
		replacement = append(replacement, &liveSegment{reader: reader, deleted: make(map[int]struct{})})
	}

	names := make([]string, len(inputs))
	old := make([]*liveSegment, len(inputs))
	copy(old, inputs)
	for i, seg := range old {
		names[i] = seg.reader.Name()
	}
	next := make([]*liveSegment, 0, len(e.segments)-width+len(replacement))
	next = append(next, e.segments[:start]...)
	next = append(next, replacement...)
	next = append(next, e.segments[start+width:]...)
	prev := e.segments
	e.segments = next

	if err := e.publishLocked(); err != nil {
		e.segments = prev
		for _, seg := range replacement {
			path := seg.reader.Path()
			seg.reader.Close()
			os.Remove(path)
		}
		e.observeMerge("error")
		return fmt.Errorf("committing merge: %w", err)
	}
	for _, seg := range old {
		path := seg.reader.Path()
		if err := seg.reader.Close(); err != nil {
			e.logger.Error("closing merged-away segment", "segment", seg.reader.Name(), "error", err)
		}
		if err := os.Remove(path); err != nil {
			e.logger.Error("removing merged-away segment", "path", path, "error", err)
		}
	}
	e.observeMerge("ok")
	e.logger.Info("segments merged",
		"inputs", names,
		"docs", data.DocCount,
		"terms", len(data.Entries),
		"active_segments", len(e.segments),
		"duration", time.Since(started),
	)
	return nil
}

func (e *Engine) observeMerge(status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexMergesTotal.WithLabelValues(e.name, status).Inc()
	if status == "ok" {
		e.metrics.SegmentCount.WithLabelValues(e.name).Set(float64(len(e.segments)))
	}
}
