package staging

import (
	"sort"

	"minigit/internal/object"
)

// Status groups paths by how the working directory, the index and the last
// commit disagree. Every slice is sorted.
type Status struct {
	StagedNew         []string `json:"staged_new"`
	StagedModified    []string `json:"staged_modified"`
	StagedDeleted     []string `json:"staged_deleted"`
	NotStagedModified []string `json:"not_staged_modified"`
	NotStagedDeleted  []string `json:"not_staged_deleted"`
	Untracked         []string `json:"untracked"`
}

// Clean reports whether nothing differs anywhere.
func (s *Status) Clean() bool {
	return len(s.StagedNew) == 0 &&
		len(s.StagedModified) == 0 &&
		len(s.StagedDeleted) == 0 &&
		len(s.NotStagedModified) == 0 &&
		len(s.NotStagedDeleted) == 0 &&
		len(s.Untracked) == 0
}

// HasStaged reports whether the next commit would differ from the last one.
func (s *Status) HasStaged() bool {
	return len(s.StagedNew) > 0 || len(s.StagedModified) > 0 || len(s.StagedDeleted) > 0
}

// Classify compares the three path -> hash views.
func Classify(working, staged, committed map[string]object.Hash) *Status {
	paths := make(map[string]struct{}, len(working)+len(staged)+len(committed))
	for _, m := range []map[string]object.Hash{working, staged, committed} {
		for p := range m {
			paths[p] = struct{}{}
		}
	}

	s := &Status{}
	for p := range paths {
		workingHash, inWorking := working[p]
		stagedHash, inIndex := staged[p]
		committedHash, inCommit := committed[p]

		if inIndex {
			switch {
			case !inCommit:
				s.StagedNew = append(s.StagedNew, p)
			case stagedHash != committedHash:
				s.StagedModified = append(s.StagedModified, p)
			}

			switch {
			case !inWorking:
				s.NotStagedDeleted = append(s.NotStagedDeleted, p)
			case workingHash != stagedHash:
				s.NotStagedModified = append(s.NotStagedModified, p)
			}
			continue
		}

		if inCommit {
			s.StagedDeleted = append(s.StagedDeleted, p)
		}
		if inWorking {
			s.Untracked = append(s.Untracked, p)
		}
	}

	for _, list := range [][]string{
		s.StagedNew, s.StagedModified, s.StagedDeleted,
		s.NotStagedModified, s.NotStagedDeleted, s.Untracked,
	} {
		sort.Strings(list)
	}
	return s
}
