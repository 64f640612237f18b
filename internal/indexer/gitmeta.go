package indexer

import (
	git "github.com/go-git/go-git/v5"
)

// gitContext is the repository state captured into document metadata at
// index time, so retrieved passages can report which revision they came
// from.
type gitContext struct {
	Branch string
	Commit string
}

// resolveGitContext detects the current branch and commit for a workspace.
// A workspace that is not a git repository (or has no commits yet) yields
// an empty context; indexing proceeds without revision metadata.
func resolveGitContext(root string) gitContext {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return gitContext{}
	}

	head, err := repo.Head()
	if err != nil {
		return gitContext{}
	}

	ctx := gitContext{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		ctx.Branch = head.Name().Short()
	}
	return ctx
}
