package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/types"
)

// Checkout is a synced working copy of an application's repository.
type Checkout struct {
	Dir string
	SHA string
}

// ShortSHA returns the abbreviated commit hash used for image tags.
func (c *Checkout) ShortSHA() string {
	if len(c.SHA) < 7 {
		return c.SHA
	}
	return c.SHA[:7]
}

// Workspace owns the directory where application repositories are kept
// checked out, one subdirectory per app.
type Workspace struct {
	root   string
	logger zerolog.Logger
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{
		root:   root,
		logger: log.WithComponent("source"),
	}
}

// Sync brings the app's checkout up to date with its remote branch,
// cloning on first use and fast-forwarding after. A pull that cannot
// fast-forward is an error: local edits to a managed checkout are not
// something to silently merge over.
func (w *Workspace) Sync(ctx context.Context, app *types.App) (*Checkout, error) {
	dir := filepath.Join(w.root, app.Name)
	branch := plumbing.NewBranchReferenceName(app.Branch)

	repo, err := git.PlainOpen(dir)
	switch {
	case err == git.ErrRepositoryNotExists:
		w.logger.Info().Str("app", app.Name).Str("url", app.RepoURL).Msg("cloning repository")
		if err := os.MkdirAll(w.root, 0o755); err != nil {
			return nil, fmt.Errorf("creating source root: %w", err)
		}
		repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           app.RepoURL,
			ReferenceName: branch,
			SingleBranch:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("cloning %s: %w", app.RepoURL, err)
		}
	case err != nil:
		return nil, fmt.Errorf("opening checkout %s: %w", dir, err)
	default:
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("opening worktree %s: %w", dir, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName:    "origin",
			ReferenceName: branch,
			SingleBranch:  true,
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return nil, fmt.Errorf("pulling %s: %w", app.Branch, err)
		}
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD in %s: %w", dir, err)
	}

	checkout := &Checkout{Dir: dir, SHA: head.Hash().String()}
	w.logger.Info().
		Str("app", app.Name).
		Str("branch", app.Branch).
		Str("commit", checkout.ShortSHA()).
		Msg("checkout synced")
	return checkout, nil
}
