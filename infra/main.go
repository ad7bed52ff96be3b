package main

import (
	gcpkms "github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/kms"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/GregMSThompson/dashboard-backend/infra/cloudrun"
	"github.com/GregMSThompson/dashboard-backend/infra/docker"
	"github.com/GregMSThompson/dashboard-backend/infra/firestore"
	"github.com/GregMSThompson/dashboard-backend/infra/identity"
	"github.com/GregMSThompson/dashboard-backend/infra/kms"
	"github.com/GregMSThompson/dashboard-backend/infra/provider"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		s := provider.LoadSettings(ctx)

		prov, err := provider.SetupDefaultProvider(ctx, s)
		if err != nil {
			return err
		}

		deps := []pulumi.Resource{}

		// sign-in is only needed when namespaces come from ID tokens
		if s.AuthMode == "firebase" {
			ident, err := identity.SetupIdentity(ctx, prov)
			if err != nil {
				return err
			}
			deps = append(deps, ident)
		}

		db, err := firestore.SetupFirestore(ctx, prov, s)
		if err != nil {
			return err
		}
		deps = append(deps, db)

		repo, err := docker.CreateRepo(ctx, prov, s)
		if err != nil {
			return err
		}
		deps = append(deps, repo)

		args := cloudrun.ServiceArgs{DependsOn: deps}
		sealed := config.New(ctx, "dashboard").GetBool("sealValues")
		var key *gcpkms.CryptoKey
		if sealed {
			key, err = kms.SetupValueKey(ctx, prov, s)
			if err != nil {
				return err
			}
			args.KeyName = key.ID().ToStringOutput()
		}

		svc, err := cloudrun.SetupService(ctx, prov, s, args)
		if err != nil {
			return err
		}

		if sealed {
			if err := kms.GrantSealing(ctx, prov, key, cloudrun.Member(svc.Account)); err != nil {
				return err
			}
		}

		ctx.Export("url", svc.Run.Statuses.Index(pulumi.Int(0)).Url())
		return nil
	})
}
