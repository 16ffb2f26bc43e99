package repository

import (
	"fmt"

	"minigit/internal/object"
	"minigit/internal/tree"

	"go.uber.org/zap"
)

// ObjectProblem is one object that failed verification.
type ObjectProblem struct {
	Hash object.Hash
	Kind string // commit, tree or blob
	Err  error
}

func (p ObjectProblem) String() string {
	return fmt.Sprintf("%s %s: %v", p.Kind, p.Hash.Short(), p.Err)
}

// VerifyReport counts the objects reachable from all branches and lists the
// ones whose stored content no longer matches their hash.
type VerifyReport struct {
	Commits  int
	Trees    int
	Blobs    int
	Problems []ObjectProblem
}

func (v *VerifyReport) OK() bool { return len(v.Problems) == 0 }

// Verify re-reads every object reachable from a branch and checks its digest.
func (r *Repository) Verify() (*VerifyReport, error) {
	branches, err := r.refs.List()
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{}
	seen := make(map[object.Hash]bool)
	check := func(h object.Hash, kind string) bool {
		if seen[h] {
			return false
		}
		seen[h] = true
		if err := r.objects.Verify(h); err != nil {
			report.Problems = append(report.Problems, ObjectProblem{Hash: h, Kind: kind, Err: err})
			return false
		}
		return true
	}

	for _, b := range branches {
		for h := b.Commit; h != "" && check(h, "commit"); {
			report.Commits++
			c, err := r.commits.Get(h)
			if err != nil {
				report.Problems = append(report.Problems, ObjectProblem{Hash: h, Kind: "commit", Err: err})
				break
			}
			if check(c.Tree, "tree") {
				report.Trees++
				r.verifyBlobs(c.Tree, report, check)
			}
			h = c.Parent
		}
	}

	r.logger.Info("verified objects",
		zap.Int("commits", report.Commits),
		zap.Int("trees", report.Trees),
		zap.Int("blobs", report.Blobs),
		zap.Int("problems", len(report.Problems)))

	return report, nil
}

func (r *Repository) verifyBlobs(th object.Hash, report *VerifyReport, check func(object.Hash, string) bool) {
	t, err := tree.Read(r.objects, th)
	if err != nil {
		report.Problems = append(report.Problems, ObjectProblem{Hash: th, Kind: "tree", Err: err})
		return
	}
	for _, p := range t.Files() {
		fh, _ := t.FileHash(p)
		if check(fh, "blob") {
			report.Blobs++
		}
	}
}
