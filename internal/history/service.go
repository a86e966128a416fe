// Package history keeps every analysis run of a document as a commit in a
// per-document git repository.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "analysis.json"

var (
	ErrNoHistory       = errors.New("history: document has no recorded analyses")
	ErrInvalidDocument = errors.New("history: invalid document id")
)

// Snapshot is the analysis produced by one run.
type Snapshot struct {
	Summary             string   `json:"summary"`
	Pros                []string `json:"pros"`
	Cons                []string `json:"cons"`
	PotentialLoopholes  []string `json:"potentialLoopholes"`
	PotentialChallenges []string `json:"potentialChallenges"`
	IsLegal             *bool    `json:"isLegal,omitempty"`
	Authenticity        *string  `json:"authenticity,omitempty"`
	Language            string   `json:"language"`
	Provider            string   `json:"provider"`
	Model               string   `json:"model"`
	PageCount           int      `json:"pageCount"`
}

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Record commits snapshot as the newest run, creating the repository on
// first use. Identical re-runs still get their own commit.
func (s *Service) Record(documentID string, snapshot Snapshot, author, message string) (CommitInfo, error) {
	path, err := s.repoPath(documentID)
	if err != nil {
		return CommitInfo{}, err
	}
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := openOrInit(path)
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@users.visionx.local", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists runs newest first. limit <= 0 means all.
func (s *Service) History(documentID string, limit int) ([]CommitInfo, error) {
	repo, unlock, err := s.open(documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Get returns the snapshot recorded by the commit hash (full or
// abbreviated).
func (s *Service) Get(documentID, hash string) (Snapshot, CommitInfo, error) {
	repo, unlock, err := s.open(documentID)
	if err != nil {
		return Snapshot{}, CommitInfo{}, err
	}
	defer unlock()

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Snapshot{}, CommitInfo{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Snapshot{}, CommitInfo{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	snapshot, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, CommitInfo{}, err
	}
	return snapshot, toCommitInfo(commitObj), nil
}

// Remove deletes the repository of a deleted document.
func (s *Service) Remove(documentID string) error {
	path, err := s.repoPath(documentID)
	if err != nil {
		return err
	}
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove history: %w", err)
	}
	s.lockMu.Lock()
	delete(s.locks, documentID)
	s.lockMu.Unlock()
	return nil
}

func (s *Service) open(documentID string) (*git.Repository, func(), error) {
	path, err := s.repoPath(documentID)
	if err != nil {
		return nil, nil, err
	}
	lock := s.documentLock(documentID)
	lock.Lock()
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		lock.Unlock()
		return nil, nil, ErrNoHistory
	}
	if err != nil {
		lock.Unlock()
		return nil, nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, lock.Unlock, nil
}

func openOrInit(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(documentID string) (string, error) {
	if documentID == "" || documentID != filepath.Base(documentID) || strings.HasPrefix(documentID, ".") {
		return "", ErrInvalidDocument
	}
	return filepath.Join(s.baseDir, documentID), nil
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(contents), &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// FieldChange describes one analysis field that differs between runs.
type FieldChange struct {
	Field   string   `json:"field"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Before  string   `json:"before,omitempty"`
	After   string   `json:"after,omitempty"`
}

// DiffSnapshots compares two runs field by field. List fields report the
// items added and removed.
func DiffSnapshots(from, to Snapshot) []FieldChange {
	changes := make([]FieldChange, 0)
	scalar := func(field, before, after string) {
		if before != after {
			changes = append(changes, FieldChange{Field: field, Before: before, After: after})
		}
	}
	list := func(field string, before, after []string) {
		added := missingFrom(before, after)
		removed := missingFrom(after, before)
		if len(added) > 0 || len(removed) > 0 {
			changes = append(changes, FieldChange{Field: field, Added: added, Removed: removed})
		}
	}

	scalar("summary", from.Summary, to.Summary)
	list("pros", from.Pros, to.Pros)
	list("cons", from.Cons, to.Cons)
	list("potentialLoopholes", from.PotentialLoopholes, to.PotentialLoopholes)
	list("potentialChallenges", from.PotentialChallenges, to.PotentialChallenges)
	scalar("isLegal", boolString(from.IsLegal), boolString(to.IsLegal))
	scalar("authenticity", stringValue(from.Authenticity), stringValue(to.Authenticity))
	scalar("language", from.Language, to.Language)
	scalar("model", from.Model, to.Model)
	return changes
}

// missingFrom returns the items of values that base lacks.
func missingFrom(base, values []string) []string {
	var out []string
	for _, value := range values {
		if !slices.Contains(base, value) {
			out = append(out, value)
		}
	}
	return out
}

func boolString(value *bool) string {
	if value == nil {
		return ""
	}
	if *value {
		return "true"
	}
	return "false"
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
