package firestore

import (
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/firestore"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/GregMSThompson/dashboard-backend/infra/provider"
)

// SetupFirestore creates the native-mode database the dashboard store keeps
// one collection per namespace in.
func SetupFirestore(ctx *pulumi.Context, prov *gcp.Provider, s provider.Settings) (*firestore.Database, error) {
	api, err := projects.NewService(ctx, "firestoreService", &projects.ServiceArgs{
		Service:          pulumi.String("firestore.googleapis.com"),
		DisableOnDestroy: pulumi.Bool(false),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}

	return firestore.NewDatabase(ctx, "dashboardDatabase", &firestore.DatabaseArgs{
		Name:                  pulumi.String("(default)"),
		Project:               pulumi.String(s.ProjectID),
		LocationId:            pulumi.String(s.Region),
		Type:                  pulumi.String("FIRESTORE_NATIVE"),
		DeleteProtectionState: pulumi.String("DELETE_PROTECTION_ENABLED"),
	},
		pulumi.Provider(prov),
		pulumi.DependsOn([]pulumi.Resource{api}),
	)
}
