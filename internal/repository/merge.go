package repository

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "minigit/internal/errors"
	"minigit/internal/merge"
	"minigit/internal/object"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergeStatus is the outcome class of a merge attempt.
type MergeStatus string

const (
	MergeUpToDate         MergeStatus = "up-to-date"
	MergeFastForward      MergeStatus = "fast-forward"
	MergeClean            MergeStatus = "merged"
	MergeConflicted       MergeStatus = "conflicted"
	MergeNoCommonAncestor MergeStatus = "no-common-ancestor"
)

// MergeRecord is the persisted report of one merge attempt. Merged content is
// never written to the working tree; the record is what callers act on.
type MergeRecord struct {
	ID        string           `json:"id"`
	Branch    string           `json:"branch"`
	Into      string           `json:"into"`
	Ours      object.Hash      `json:"ours"`
	Theirs    object.Hash      `json:"theirs"`
	Base      object.Hash      `json:"base,omitempty"`
	Status    MergeStatus      `json:"status"`
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Merged    []string         `json:"merged,omitempty"`
	Conflicts []merge.Conflict `json:"conflicts,omitempty"`
	CreatedAt time.Time        `json:"created_at"`

	// Content of the merged files, keyed by path. Not persisted.
	Files map[string]string `json:"-"`
}

func (m *MergeRecord) GetID() string { return m.ID }

// Err returns the structured failure for merges that could not be attempted.
// Conflicts are not errors.
func (m *MergeRecord) Err() error {
	if m.Status == MergeNoCommonAncestor {
		return apperrors.NoCommonAncestor(string(m.Ours), string(m.Theirs))
	}
	return nil
}

// Merge merges branch into the current branch and records the outcome.
func (r *Repository) Merge(branch string) (*MergeRecord, error) {
	into, ours, err := r.currentTip()
	if err != nil {
		return nil, err
	}
	other, err := r.refs.Get(branch)
	if err != nil {
		return nil, err
	}
	theirs := other.Commit

	rec := &MergeRecord{
		ID:        uuid.New().String(),
		Branch:    branch,
		Into:      into,
		Ours:      ours,
		Theirs:    theirs,
		CreatedAt: r.now().UTC(),
	}

	switch {
	case ours == theirs:
		rec.Status = MergeUpToDate
		rec.Success = true
		rec.Message = "Already up to date"
	default:
		if err := r.attemptMerge(rec); err != nil {
			return nil, err
		}
	}

	if err := r.merges.Put(rec); err != nil {
		return nil, fmt.Errorf("recording merge: %w", err)
	}

	r.logger.Info("merge",
		zap.String("id", rec.ID),
		zap.String("branch", branch),
		zap.String("into", into),
		zap.String("status", string(rec.Status)),
		zap.Int("conflicts", len(rec.Conflicts)))

	return rec, nil
}

func (r *Repository) attemptMerge(rec *MergeRecord) error {
	base, found := object.Hash(""), false
	if rec.Ours != "" && rec.Theirs != "" {
		done, err := r.linearMerge(rec)
		if err != nil || done {
			return err
		}
		base, found, err = r.commits.FindCommonAncestor(rec.Ours, rec.Theirs)
		if err != nil {
			return err
		}
	}
	if !found {
		rec.Status = MergeNoCommonAncestor
		rec.Message = "No common ancestor"
		return nil
	}
	rec.Base = base

	baseFiles, err := r.commitContents(base)
	if err != nil {
		return err
	}
	oursFiles, err := r.commitContents(rec.Ours)
	if err != nil {
		return err
	}
	theirsFiles, err := r.commitContents(rec.Theirs)
	if err != nil {
		return err
	}

	result := merge.Perform(baseFiles, oursFiles, theirsFiles)
	rec.Success = result.Success
	rec.Conflicts = result.Conflicts
	if result.Success {
		rec.Status = MergeClean
		rec.Merged = result.Paths()
		rec.Files = result.Merged
		rec.Message = fmt.Sprintf("Merged %s into %s", rec.Branch, rec.Into)
	} else {
		rec.Status = MergeConflicted
		rec.Message = fmt.Sprintf("Merge of %s into %s has conflicts in %s",
			rec.Branch, rec.Into, strings.Join(result.ConflictPaths(), ", "))
	}
	return nil
}

// linearMerge settles merges where one tip is an ancestor of the other. It
// reports whether rec was decided.
func (r *Repository) linearMerge(rec *MergeRecord) (bool, error) {
	contained, err := r.commits.IsAncestor(rec.Theirs, rec.Ours)
	if err != nil {
		return false, err
	}
	if contained {
		rec.Status = MergeUpToDate
		rec.Success = true
		rec.Base = rec.Theirs
		rec.Message = "Already up to date"
		return true, nil
	}

	behind, err := r.commits.IsAncestor(rec.Ours, rec.Theirs)
	if err != nil || !behind {
		return false, err
	}
	files, err := r.commitContents(rec.Theirs)
	if err != nil {
		return false, err
	}
	rec.Status = MergeFastForward
	rec.Success = true
	rec.Base = rec.Ours
	rec.Files = files
	for p := range files {
		rec.Merged = append(rec.Merged, p)
	}
	sort.Strings(rec.Merged)
	rec.Message = fmt.Sprintf("Fast-forward %s to %s", rec.Into, rec.Branch)
	return true, nil
}

// MergeRecords returns all recorded merges, oldest first.
func (r *Repository) MergeRecords() ([]*MergeRecord, error) {
	var records []*MergeRecord
	if err := r.merges.List(&records); err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// MergeRecord loads one merge record by ID.
func (r *Repository) MergeRecord(id string) (*MergeRecord, error) {
	var rec MergeRecord
	if err := r.merges.Get(id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
