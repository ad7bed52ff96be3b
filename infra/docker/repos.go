package docker

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/artifactregistry"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/GregMSThompson/dashboard-backend/infra/provider"
)

const repositoryID = "dashboard"

func CreateRepo(ctx *pulumi.Context, prov *gcp.Provider, s provider.Settings) (*artifactregistry.Repository, error) {
	return artifactregistry.NewRepository(ctx, "dashboardRepository", &artifactregistry.RepositoryArgs{
		Format:       pulumi.String("DOCKER"),
		RepositoryId: pulumi.String(repositoryID),
		Location:     pulumi.String(s.Region),
		Description:  pulumi.String("Dashboard API images"),
	},
		pulumi.Provider(prov),
	)
}

// ImageName is the repository path of the API image tagged with tag.
func ImageName(s provider.Settings, tag string) string {
	return fmt.Sprintf("%s-docker.pkg.dev/%s/%s/dashboard-api:%s", s.Region, s.ProjectID, repositoryID, tag)
}

// SourceHash digests the Go sources and module files under root so the
// image is only rebuilt when the server could have changed.
func SourceHash(root string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "infra", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") && d.Name() != "go.mod" && d.Name() != "go.sum" && d.Name() != "Dockerfile" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		io.WriteString(h, path)
		_, err = io.Copy(h, f)
		return err
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16], nil
}
