// Package revisions keeps a git history of every draft write, one repository per chat session.
package revisions

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const draftFile = "draft.md"

var (
	ErrNoHistory       = errors.New("no revisions recorded")
	ErrUnknownRevision = errors.New("unknown revision")

	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,50}$`)
)

type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*repoLock
}

type repoLock struct {
	mu   sync.Mutex
	refs int
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*repoLock),
	}
}

// ValidSessionID reports whether id can name a revision repository.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id) && strings.Trim(id, ".") != ""
}

// Record commits content as the session's newest revision, initialising the repository on first use.
// Writing identical content still produces a commit so the log mirrors every accepted write.
func (s *Service) Record(sessionID, content, author, message string) (Revision, error) {
	path, err := s.repoPath(sessionID)
	if err != nil {
		return Revision{}, err
	}

	defer s.lockRepo(sessionID)()

	repo, err := openOrInit(path)
	if err != nil {
		return Revision{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, draftFile), []byte(content), 0o644); err != nil {
		return Revision{}, fmt.Errorf("write %s: %w", draftFile, err)
	}
	if _, err := worktree.Add(draftFile); err != nil {
		return Revision{}, fmt.Errorf("git add draft: %w", err)
	}

	if author == "" {
		author = "lexdraft"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.lexdraft.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return Revision{}, fmt.Errorf("commit draft: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), nil
}

// History lists revisions newest first. A session without a repository yields ErrNoHistory.
func (s *Service) History(sessionID string, limit int) ([]Revision, error) {
	defer s.lockRepo(sessionID)()

	repo, err := s.open(sessionID)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
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

// ContentAt returns the draft text as of the given revision. hash may be abbreviated.
func (s *Service) ContentAt(sessionID, hash string) (string, error) {
	defer s.lockRepo(sessionID)()

	repo, err := s.open(sessionID)
	if err != nil {
		return "", err
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return "", err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownRevision, hash)
	}

	file, err := commitObj.File(draftFile)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", draftFile, err)
	}
	return file.Contents()
}

func (s *Service) open(sessionID string) (*git.Repository, error) {
	path, err := s.repoPath(sessionID)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
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
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

// repoPath rejects ids that could escape baseDir.
func (s *Service) repoPath(sessionID string) (string, error) {
	if !ValidSessionID(sessionID) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.baseDir, sessionID), nil
}

// lockRepo holds the session's repository until the returned func runs. Entries are dropped
// once no caller holds or waits on them.
func (s *Service) lockRepo(sessionID string) func() {
	s.lockMu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &repoLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.lockMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.lockMu.Lock()
		defer s.lockMu.Unlock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, sessionID)
		}
	}
}

func toRevision(commitObj *object.Commit) Revision {
	return Revision{
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
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrUnknownRevision, hash)
	}
	return *resolved, nil
}
