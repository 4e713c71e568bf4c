package githubapp

import (
	"fmt"

	git "gopkg.in/src-d/go-git.v4"
	gitconfig "gopkg.in/src-d/go-git.v4/config"
	githttp "gopkg.in/src-d/go-git.v4/plumbing/transport/http"
	"gopkg.in/src-d/go-git.v4/storage/memory"

	"github-oauth/internal/secret"
)

// CloneURL builds the HTTPS remote URL for owner/repository on the given
// git host.
func CloneURL(host, owner, repository string) string {
	return fmt.Sprintf("https://%s/%s/%s.git", host, owner, repository)
}

// VerifyRepositoryAccess confirms a freshly minted token grants access to
// the repository by listing its remote refs, the same probe a pipeline's
// later clone will perform. The token travels as x-access-token basic auth
// and never appears in the returned error.
func VerifyRepositoryAccess(remoteURL string, token secret.Text) error {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteURL},
	})

	if _, err := remote.List(&git.ListOptions{
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: token.Reveal(),
		},
	}); err != nil {
		return opError(fmt.Sprintf("list refs of %s", remoteURL), ErrVerificationFailed, err)
	}
	return nil
}
