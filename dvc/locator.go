/*
Package dvc resolves datasets versioned with DVC in a git repository to their storage urls
*/
package dvc

import (
	"context"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go-ml.dev/pkg/zorros"
	"path"
	"path/filepath"
	"strings"
)

/*
Reference addresses a DVC tracked file at a revision of a git repository
*/
type Reference struct {
	Path string // relative to the repository root
	Repo string // local repository directory, the current directory if empty
	Rev  string // branch, tag or commit, HEAD if empty
}

func (r Reference) String() string {
	return r.Path + "@" + r.Repo + ":" + r.rev()
}

func (r Reference) repo() string {
	if r.Repo == "" {
		return "."
	}
	return r.Repo
}

func (r Reference) rev() string {
	if r.Rev == "" {
		return "HEAD"
	}
	return r.Rev
}

/*
Locator resolves references, the zero value uses the default remote of the repository
*/
type Locator struct {
	// Remote overrides the default remote name
	Remote string
	// IgnoreLocalConfig disables .dvc/config.local of the working tree
	IgnoreLocalConfig bool
}

/*
GetURL resolves a reference using the default Locator
*/
func GetURL(ctx context.Context, file, repo, rev string) (string, error) {
	return (&Locator{}).GetURL(ctx, Reference{Path: file, Repo: repo, Rev: rev})
}

/*
Resolve finds the output tracking the referenced file and the remote url where its content lives
*/
func (l *Locator) Resolve(ctx context.Context, ref Reference) (*Output, string, error) {
	out, remote, err := l.resolve(ctx, ref)
	if err != nil {
		return nil, "", &ResolutionError{Ref: ref, Err: err}
	}
	return out, remote, nil
}

/*
GetURL returns the storage url of the referenced file content. It reads only committed state
of the repository and the local config, so the same reference resolves to the same url.
*/
func (l *Locator) GetURL(ctx context.Context, ref Reference) (string, error) {
	out, remote, err := l.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	return remote + "/" + out.CachePath(), nil
}

func (l *Locator) resolve(ctx context.Context, ref Reference) (*Output, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	file := path.Clean(filepath.ToSlash(ref.Path))
	if ref.Path == "" || path.IsAbs(file) || strings.HasPrefix(file, "../") {
		return nil, "", zorros.Errorf("path must be relative to the repository root")
	}
	repo, err := git.PlainOpen(ref.repo())
	if err != nil {
		return nil, "", zorros.Wrapf(err, "failed to open git repository %v: %v", ref.repo(), err.Error())
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref.rev()))
	if err != nil {
		return nil, "", zorros.Wrapf(err, "unknown revision %v: %v", ref.rev(), err.Error())
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, "", zorros.Wrapf(err, "revision %v is not a commit: %v", ref.rev(), err.Error())
	}
	out, err := findOutput(commit, file)
	if err != nil {
		return nil, "", err
	}
	if err = out.validate(); err != nil {
		return nil, "", err
	}
	committed, err := contents(commit, ConfigFile)
	if err != nil {
		return nil, "", err
	}
	local := ""
	if !l.IgnoreLocalConfig {
		local = filepath.Join(ref.repo(), filepath.FromSlash(LocalConfigFile))
	}
	remotes, err := parseConfig(committed, local)
	if err != nil {
		return nil, "", err
	}
	remote, err := remotes.url(l.Remote, filepath.Join(ref.repo(), ".dvc"))
	if err != nil {
		return nil, "", err
	}
	return out, remote, nil
}

func contents(commit *object.Commit, file string) ([]byte, error) {
	f, err := commit.File(file)
	if err == object.ErrFileNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, zorros.Trace(err)
	}
	s, err := f.Contents()
	if err != nil {
		return nil, zorros.Trace(err)
	}
	return []byte(s), nil
}

func findOutput(commit *object.Commit, file string) (*Output, error) {
	pointer := file + PointerExt
	bs, err := contents(commit, pointer)
	if err != nil {
		return nil, err
	}
	if bs != nil {
		return findInPointer(bs, pointer)
	}
	if bs, err = contents(commit, LockFile); err != nil {
		return nil, err
	}
	if bs != nil {
		out, err := findInLock(bs, file)
		if err != nil || out != nil {
			return out, err
		}
	}
	return nil, zorros.Errorf("%v is not tracked by dvc at %v", file, commit.Hash.String()[:8])
}
