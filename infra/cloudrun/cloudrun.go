package cloudrun

import (
	"fmt"
	"strconv"

	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/cloudrun"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	dockerrepo "github.com/GregMSThompson/dashboard-backend/infra/docker"
	"github.com/GregMSThompson/dashboard-backend/infra/provider"
)

// maxInstances is fixed at one: each instance caches namespaces and keeps
// edit mode and gestures in memory, so a namespace must have a single writer.
const maxInstances = "1"

// Service is the deployed dashboard API.
type Service struct {
	Account *serviceaccount.Account
	Run     *cloudrun.Service
}

// ServiceArgs carries what the API needs from the other components.
type ServiceArgs struct {
	// KeyName is the KMS key sealing stored values; empty disables sealing.
	KeyName   pulumi.StringInput
	DependsOn []pulumi.Resource
}

func SetupService(ctx *pulumi.Context, prov *gcp.Provider, s provider.Settings, args ServiceArgs) (*Service, error) {
	img, err := buildImage(ctx, s, args.DependsOn...)
	if err != nil {
		return nil, err
	}

	api, err := projects.NewService(ctx, "cloudRunService", &projects.ServiceArgs{
		Service: pulumi.String("run.googleapis.com"),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}

	sa, err := createServiceAccount(ctx, prov, s)
	if err != nil {
		return nil, err
	}

	svc, err := createRunService(ctx, prov, s, img, sa, args.KeyName, api)
	if err != nil {
		return nil, err
	}

	if err := allowInvokers(ctx, prov, s, svc); err != nil {
		return nil, err
	}
	return &Service{Account: sa, Run: svc}, nil
}

func buildImage(ctx *pulumi.Context, s provider.Settings, res ...pulumi.Resource) (*docker.Image, error) {
	tag, err := dockerrepo.SourceHash("..")
	if err != nil {
		return nil, err
	}

	return docker.NewImage(ctx, "dashboardImage", &docker.ImageArgs{
		Build: docker.DockerBuildArgs{
			Platform:   pulumi.String("linux/amd64"),
			Context:    pulumi.String(".."),
			Dockerfile: pulumi.String("../cmd/api/Dockerfile"),
		},
		ImageName: pulumi.String(dockerrepo.ImageName(s, tag)),
	},
		pulumi.DependsOn(res),
	)
}

// Member formats a service account email as an IAM member.
func Member(sa *serviceaccount.Account) pulumi.StringOutput {
	return sa.Email.ApplyT(func(email string) string {
		return fmt.Sprintf("serviceAccount:%s", email)
	}).(pulumi.StringOutput)
}

func createServiceAccount(ctx *pulumi.Context, prov *gcp.Provider, s provider.Settings) (*serviceaccount.Account, error) {
	sa, err := serviceaccount.NewAccount(ctx, "dashboardServiceAccount", &serviceaccount.AccountArgs{
		AccountId:   pulumi.String("dashboard-api"),
		DisplayName: pulumi.String("Dashboard API"),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}

	_, err = projects.NewIAMMember(ctx, "dashboardFirestoreAccess", &projects.IAMMemberArgs{
		Role:    pulumi.String("roles/datastore.user"),
		Member:  Member(sa),
		Project: pulumi.String(s.ProjectID),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}
	return sa, nil
}

func createRunService(ctx *pulumi.Context,
	prov *gcp.Provider,
	s provider.Settings,
	img *docker.Image,
	sa *serviceaccount.Account,
	keyName pulumi.StringInput,
	res ...pulumi.Resource) (*cloudrun.Service, error) {
	crCfg := config.New(ctx, "cloudrun")

	timeout, _ := strconv.Atoi(crCfg.Require("timeout"))
	annotations := templateAnnotations(sizing{
		MinScale:    crCfg.Require("minScale"),
		CPU:         crCfg.Require("cpu"),
		Memory:      crCfg.Require("memory"),
		Concurrency: crCfg.Require("concurrency"),
	})

	env := func(name string, value pulumi.StringInput) *cloudrun.ServiceTemplateSpecContainerEnvArgs {
		return &cloudrun.ServiceTemplateSpecContainerEnvArgs{Name: pulumi.String(name), Value: value}
	}
	envs := cloudrun.ServiceTemplateSpecContainerEnvArray{
		env("PROJECTID", pulumi.String(s.ProjectID)),
		env("LOGLEVEL", pulumi.String(s.LogLevel)),
		env("STOREBACKEND", pulumi.String("firestore")),
		env("AUTHMODE", pulumi.String(s.AuthMode)),
		env("NAMESPACE", pulumi.String(s.Namespace)),
	}
	if keyName != nil {
		envs = append(envs, env("KMSKEYNAME", keyName))
	}

	return cloudrun.NewService(ctx, "dashboardService", &cloudrun.ServiceArgs{
		Location: pulumi.String(s.Region),
		Template: &cloudrun.ServiceTemplateArgs{
			Metadata: &cloudrun.ServiceTemplateMetadataArgs{
				Annotations: annotations,
			},
			Spec: &cloudrun.ServiceTemplateSpecArgs{
				ServiceAccountName: sa.Email,
				TimeoutSeconds:     pulumi.Int(timeout),
				Containers: cloudrun.ServiceTemplateSpecContainerArray{
					&cloudrun.ServiceTemplateSpecContainerArgs{
						Image: img.ImageName,
						Ports: cloudrun.ServiceTemplateSpecContainerPortArray{
							&cloudrun.ServiceTemplateSpecContainerPortArgs{
								ContainerPort: pulumi.Int(8080),
							},
						},
						Envs: envs,
					},
				},
			},
		},
	},
		pulumi.Provider(prov),
		pulumi.DependsOn(res),
	)
}

// sizing is the instance shape read from the cloudrun stack config.
type sizing struct {
	MinScale    string
	CPU         string
	Memory      string
	Concurrency string
}

func templateAnnotations(sz sizing) pulumi.StringMap {
	return pulumi.StringMap{
		"autoscaling.knative.dev/minScale":         pulumi.String(sz.MinScale),
		"autoscaling.knative.dev/maxScale":         pulumi.String(maxInstances),
		"run.googleapis.com/cpu":                   pulumi.String(sz.CPU),
		"run.googleapis.com/memory":                pulumi.String(sz.Memory),
		"run.googleapis.com/cpu-throttling":        pulumi.String("true"),
		"run.googleapis.com/container-concurrency": pulumi.String(sz.Concurrency),
	}
}

// allowInvokers opens the service to the internet. In firebase mode the API
// checks ID tokens itself; header mode is meant for a private network and
// keeps the default of authenticated invokers only.
func allowInvokers(ctx *pulumi.Context, prov *gcp.Provider, s provider.Settings, svc *cloudrun.Service) error {
	if s.AuthMode != "firebase" {
		return nil
	}
	_, err := cloudrun.NewIamMember(ctx, "dashboardPublicInvoker", &cloudrun.IamMemberArgs{
		Service:  svc.Name,
		Location: pulumi.String(s.Region),
		Role:     pulumi.String("roles/run.invoker"),
		Member:   pulumi.String("allUsers"),
	},
		pulumi.Provider(prov),
	)
	return err
}
